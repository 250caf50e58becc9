package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"journal-billing/internal/auth"
	"journal-billing/internal/service"
)

type EntitlementController struct {
	entitlementService service.EntitlementService
	logger             *zap.Logger
}

func NewEntitlementController(entitlementService service.EntitlementService, logger *zap.Logger) *EntitlementController {
	return &EntitlementController{
		entitlementService: entitlementService,
		logger:             logger,
	}
}

func (ec *EntitlementController) RegisterRoutes(e *echo.Echo) {
	subscription := e.Group("/api/subscription")

	subscription.GET("", ec.GetSubscription)
	subscription.POST("/free", ec.ActivateFree)
	subscription.GET("/payments", ec.ListPayments)
}

func (ec *EntitlementController) GetSubscription(c echo.Context) error {
	entitlement, err := ec.entitlementService.Get(c.Request().Context(), auth.SessionFrom(c))
	if err != nil {
		return errorResponse(c, ec.logger, err)
	}
	return c.JSON(http.StatusOK, service.NewEntitlementView(entitlement))
}

func (ec *EntitlementController) ActivateFree(c echo.Context) error {
	entitlement, err := ec.entitlementService.ActivateFree(c.Request().Context(), auth.SessionFrom(c))
	if err != nil {
		return errorResponse(c, ec.logger, err)
	}
	return c.JSON(http.StatusOK, service.NewEntitlementView(entitlement))
}

func (ec *EntitlementController) ListPayments(c echo.Context) error {
	payments, err := ec.entitlementService.Payments(c.Request().Context(), auth.SessionFrom(c))
	if err != nil {
		return errorResponse(c, ec.logger, err)
	}
	return c.JSON(http.StatusOK, payments)
}
