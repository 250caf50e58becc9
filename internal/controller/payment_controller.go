package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"journal-billing/internal/auth"
	"journal-billing/internal/model"
	"journal-billing/internal/service"
)

type PaymentController struct {
	orderService        service.OrderService
	verificationService service.VerificationService
	logger              *zap.Logger
}

func NewPaymentController(
	orderService service.OrderService,
	verificationService service.VerificationService,
	logger *zap.Logger,
) *PaymentController {
	return &PaymentController{
		orderService:        orderService,
		verificationService: verificationService,
		logger:              logger,
	}
}

func (pc *PaymentController) RegisterRoutes(e *echo.Echo) {
	payments := e.Group("/api/payments")

	payments.POST("/orders", pc.CreateOrder)
	payments.POST("/razorpay/verify", pc.VerifyRazorpay)
	payments.POST("/paypal/capture", pc.CapturePayPal)
}

type CreateOrderRequest struct {
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	PurchaseType string  `json:"purchaseType"`
	ItemID       string  `json:"itemId"`
	BillingCycle string  `json:"billingCycle"`
}

func (pc *PaymentController) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	intent, err := model.ParseIntent(req.PurchaseType, req.ItemID, req.BillingCycle)
	if err != nil {
		return badRequest(c, "Invalid purchase item")
	}

	order, err := pc.orderService.CreateOrder(c.Request().Context(), auth.SessionFrom(c), model.OrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Intent:   intent,
	})
	if err != nil {
		return errorResponse(c, pc.logger, err)
	}

	return c.JSON(http.StatusOK, order)
}

type VerifyRazorpayRequest struct {
	OrderCreationID   string  `json:"orderCreationId"`
	RazorpayPaymentID string  `json:"razorpayPaymentId"`
	RazorpaySignature string  `json:"razorpaySignature"`
	PlanID            string  `json:"planId"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	BillingCycle      string  `json:"billingCycle"`
}

type VerificationResponse struct {
	Success          bool                     `json:"success"`
	Message          string                   `json:"message"`
	AlreadyProcessed bool                     `json:"alreadyProcessed,omitempty"`
	Subscription     *service.EntitlementView `json:"subscription,omitempty"`
}

func (pc *PaymentController) VerifyRazorpay(c echo.Context) error {
	var req VerifyRazorpayRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := pc.verificationService.VerifyRazorpay(c.Request().Context(), auth.SessionFrom(c), service.RazorpayVerification{
		OrderID:      req.OrderCreationID,
		PaymentID:    req.RazorpayPaymentID,
		Signature:    req.RazorpaySignature,
		PlanID:       req.PlanID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		return errorResponse(c, pc.logger, err)
	}

	return c.JSON(http.StatusOK, verificationResponse(result))
}

type CapturePayPalRequest struct {
	OrderID      string `json:"orderId"`
	PlanID       string `json:"planId"`
	BillingCycle string `json:"billingCycle"`
}

func (pc *PaymentController) CapturePayPal(c echo.Context) error {
	var req CapturePayPalRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := pc.verificationService.CapturePayPal(c.Request().Context(), auth.SessionFrom(c), service.PayPalCapture{
		OrderID:      req.OrderID,
		PlanID:       req.PlanID,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		return errorResponse(c, pc.logger, err)
	}

	return c.JSON(http.StatusOK, verificationResponse(result))
}

func verificationResponse(result *service.VerificationResult) VerificationResponse {
	resp := VerificationResponse{Success: true}
	switch {
	case result.AlreadyProcessed:
		resp.AlreadyProcessed = true
		resp.Message = "Payment already processed"
	case result.Entitlement != nil:
		resp.Message = "Subscription activated"
		view := service.NewEntitlementView(result.Entitlement)
		resp.Subscription = &view
	default:
		resp.Message = "Purchase recorded"
	}
	return resp
}
