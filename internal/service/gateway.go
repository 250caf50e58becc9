package service

import (
	"context"

	"journal-billing/internal/model"
)

// OrderGateway is the gateway selected by PAYMENT_GATEWAY for new orders.
type OrderGateway interface {
	Name() model.Gateway
	CreateOrder(ctx context.Context, req model.GatewayOrderRequest) (*model.GatewayOrder, error)
}

// RazorpayGateway verifies checkout signatures and reads back orders and
// payments.
type RazorpayGateway interface {
	Configured() bool
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	FetchOrder(ctx context.Context, orderID string) (*model.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error)
}

// CaptureGateway confirms token-based orders server side.
type CaptureGateway interface {
	CaptureOrder(ctx context.Context, orderID string) (*model.GatewayCapture, error)
}
