package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"journal-billing/internal/service"
)

const maxWebhookBody = 1 << 20

type WebhookController struct {
	verificationService service.VerificationService
	logger              *zap.Logger
}

func NewWebhookController(verificationService service.VerificationService, logger *zap.Logger) *WebhookController {
	return &WebhookController{
		verificationService: verificationService,
		logger:              logger,
	}
}

func (wc *WebhookController) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/razorpay", wc.HandleRazorpayWebhook)
}

func (wc *WebhookController) HandleRazorpayWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "Failed to read request body")
	}

	signature := c.Request().Header.Get("X-Razorpay-Signature")
	if signature == "" {
		return badRequest(c, "Missing Razorpay signature")
	}

	if err := wc.verificationService.HandleRazorpayWebhook(c.Request().Context(), body, signature); err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			wc.logger.Warn("Rejected Razorpay webhook with bad signature", zap.String("ip", c.RealIP()))
		}
		return errorResponse(c, wc.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
	})
}
