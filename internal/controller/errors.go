package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"journal-billing/internal/service"
)

// errorResponse maps a service error to a status and a fixed message. Error
// details are logged, never returned.
func errorResponse(c echo.Context, logger *zap.Logger, err error) error {
	var limitErr *service.UsageLimitError
	if errors.As(err, &limitErr) {
		body := map[string]interface{}{
			"error":  "Free plan limit reached",
			"reason": limitErr.Decision.Reason,
		}
		if limitErr.Decision.CurrentCount != nil {
			body["currentCount"] = *limitErr.Decision.CurrentCount
		}
		if limitErr.Decision.Limit != nil {
			body["limit"] = *limitErr.Decision.Limit
		}
		return c.JSON(http.StatusForbidden, body)
	}

	status, message := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrInvalidSignature):
		status, message = http.StatusBadRequest, "Invalid payment signature"
	case errors.Is(err, service.ErrPriceMismatch):
		status, message = http.StatusBadRequest, "Amount does not match the listed price"
	case errors.Is(err, service.ErrInvalidOrder):
		status, message = http.StatusBadRequest, "Invalid order request"
	case errors.Is(err, service.ErrIntentMismatch):
		status, message = http.StatusBadRequest, "Payment does not match the order"
	case errors.Is(err, service.ErrPaymentNotCaptured):
		status, message = http.StatusBadRequest, "Payment was not completed"
	case errors.Is(err, service.ErrInvalidWebhook):
		status, message = http.StatusBadRequest, "Invalid webhook payload"
	case errors.Is(err, service.ErrInvalidJournalEntry):
		status, message = http.StatusBadRequest, "Invalid journal entry"
	case errors.Is(err, service.ErrPaidPlanActive):
		status, message = http.StatusConflict, "A paid plan is still active"
	case errors.Is(err, service.ErrTooManyOrders):
		status, message = http.StatusTooManyRequests, "Too many order attempts, try again later"
	case errors.Is(err, service.ErrConfigurationMissing):
		message = "Payment gateway is not configured"
	case errors.Is(err, service.ErrGatewayError):
		message = "Payment gateway request failed"
	case errors.Is(err, service.ErrStoreError):
		message = "Failed to update subscription"
	case errors.Is(err, service.ErrJournalStoreError):
		message = "Failed to access journal"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, map[string]string{"error": message})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}
