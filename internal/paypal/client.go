package paypal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"go.uber.org/zap"

	"journal-billing/internal/model"
)

// StatusCompleted is the only order status treated as money received.
const StatusCompleted = "COMPLETED"

var (
	ErrOrderCreationFailed = errors.New("failed to create paypal order")
	ErrCaptureFailed       = errors.New("failed to capture paypal order")
	ErrMissingPurchaseUnit = errors.New("paypal order has no purchase unit")
	ErrNotesTooLong        = errors.New("order notes exceed the paypal custom_id limit")
)

type orderAPI interface {
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, captureOrderRequest paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	// Mode is "live" or "sandbox".
	Mode string
}

type Client struct {
	api      orderAPI
	clientID string
	logger   *zap.Logger
}

// NewClient never fails: missing credentials leave the client unconfigured
// and every call returns model.ErrGatewayNotConfigured.
func NewClient(config Config, logger *zap.Logger) *Client {
	c := &Client{clientID: config.ClientID, logger: logger}

	if config.ClientID == "" || config.ClientSecret == "" {
		logger.Warn("PayPal credentials are empty; order creation will fail")
		return c
	}

	apiBase := paypal.APIBaseSandBox
	if strings.EqualFold(config.Mode, "live") {
		apiBase = paypal.APIBaseLive
	}

	sdk, err := paypal.NewClient(config.ClientID, config.ClientSecret, apiBase)
	if err != nil {
		logger.Error("Failed to initialize PayPal client", zap.Error(err))
		return c
	}
	c.api = sdk

	logger.Info("Initialized PayPal client", zap.String("mode", config.Mode))
	return c
}

func (c *Client) Name() model.Gateway {
	return model.GatewayPayPal
}

func (c *Client) CreateOrder(ctx context.Context, req model.GatewayOrderRequest) (*model.GatewayOrder, error) {
	if c.api == nil {
		return nil, model.ErrGatewayNotConfigured
	}

	c.logger.Info("Creating PayPal order",
		zap.Int64("amount", req.AmountMinor),
		zap.String("currency", req.Currency),
		zap.String("receipt", req.Receipt))

	customID, err := encodeNotes(req.Notes)
	if err != nil {
		c.logger.Error("Cannot attach notes to PayPal order", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	unit := paypal.PurchaseUnitRequest{
		ReferenceID: req.Receipt,
		CustomID:    customID,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    FormatMinor(req.AmountMinor),
		},
	}

	order, err := c.api.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{unit}, nil, nil)
	if err != nil {
		c.logger.Error("Failed to create PayPal order", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	c.logger.Info("Created PayPal order", zap.String("order_id", order.ID), zap.String("status", order.Status))
	return &model.GatewayOrder{
		ID:       order.ID,
		Gateway:  model.GatewayPayPal,
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   order.Status,
		Notes:    req.Notes,
		KeyID:    c.clientID,
	}, nil
}

// CaptureOrder captures an approved order server side. An order that was
// already captured fails the capture call, so the order is re-read and its
// own status decides.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*model.GatewayCapture, error) {
	if c.api == nil {
		return nil, model.ErrGatewayNotConfigured
	}

	captured, captureErr := c.api.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if captureErr != nil {
		c.logger.Warn("PayPal capture failed, re-reading order",
			zap.String("order_id", orderID), zap.Error(captureErr))
	} else {
		c.logger.Info("Captured PayPal order",
			zap.String("order_id", captured.ID), zap.String("status", captured.Status))
	}

	order, err := c.api.GetOrder(ctx, orderID)
	if err != nil {
		if captureErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, captureErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	return captureFromOrder(order)
}

func captureFromOrder(order *paypal.Order) (*model.GatewayCapture, error) {
	if len(order.PurchaseUnits) == 0 {
		return nil, ErrMissingPurchaseUnit
	}
	unit := order.PurchaseUnits[0]

	capture := &model.GatewayCapture{
		OrderID: order.ID,
		Status:  order.Status,
		Notes:   decodeNotes(unit.CustomID),
	}
	if unit.Amount != nil {
		capture.Currency = unit.Amount.Currency
		capture.Amount = ParseMinor(unit.Amount.Value)
	}
	if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
		capture.CaptureID = unit.Payments.Captures[0].ID
	}
	return capture, nil
}

// FormatMinor renders minor units as the decimal string PayPal expects.
func FormatMinor(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

// ParseMinor is the inverse of FormatMinor. Unparseable values yield 0.
func ParseMinor(value string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// Notes ride in custom_id as a form-encoded string; PayPal caps the field at
// 127 characters, which the four short note values fit in.
// PayPal caps custom_id at 127 characters, so notes travel under one-letter
// keys.
const maxCustomIDLength = 127

var noteKeys = map[string]string{
	model.NoteUserID:       "u",
	model.NotePurchaseType: "t",
	model.NoteItemID:       "i",
	model.NoteBillingCycle: "c",
}

func encodeNotes(notes map[string]string) (string, error) {
	values := url.Values{}
	for k, v := range notes {
		if short, ok := noteKeys[k]; ok {
			k = short
		}
		values.Set(k, v)
	}
	customID := values.Encode()
	if len(customID) > maxCustomIDLength {
		return "", fmt.Errorf("%w: %d characters", ErrNotesTooLong, len(customID))
	}
	return customID, nil
}

// decodeNotes also accepts the long keys written by earlier orders.
func decodeNotes(customID string) map[string]string {
	notes := map[string]string{}
	values, err := url.ParseQuery(customID)
	if err != nil {
		return notes
	}
	for k := range values {
		notes[k] = values.Get(k)
	}
	for long, short := range noteKeys {
		if v, ok := notes[short]; ok {
			notes[long] = v
			delete(notes, short)
		}
	}
	return notes
}
