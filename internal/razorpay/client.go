package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/razorpay/razorpay-go"
	"go.uber.org/zap"

	"journal-billing/internal/model"
)

var (
	ErrOrderCreationFailed  = errors.New("failed to create razorpay order")
	ErrOrderFetchFailed     = errors.New("failed to fetch razorpay order")
	ErrPaymentFetchFailed   = errors.New("failed to fetch razorpay payment")
	ErrUnexpectedOrderShape = errors.New("unexpected razorpay order response")
)

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Client struct {
	orders        orderAPI
	payments      paymentAPI
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *zap.Logger
}

type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

func NewClient(config Config, logger *zap.Logger) *Client {
	if config.KeyID == "" || config.KeySecret == "" {
		logger.Warn("Razorpay credentials are empty; order creation will fail")
	} else {
		logger.Info("Initializing Razorpay client", zap.String("key_id", maskString(config.KeyID)))
	}

	sdk := razorpay.NewClient(config.KeyID, config.KeySecret)

	return &Client{
		orders:        sdk.Order,
		payments:      sdk.Payment,
		keyID:         config.KeyID,
		keySecret:     config.KeySecret,
		webhookSecret: config.WebhookSecret,
		logger:        logger,
	}
}

func (c *Client) Name() model.Gateway {
	return model.GatewayRazorpay
}

// KeyID is the public key the checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

// Configured reports whether both halves of the key pair are set.
func (c *Client) Configured() bool {
	return c.keyID != "" && c.keySecret != ""
}

func (c *Client) CreateOrder(ctx context.Context, req model.GatewayOrderRequest) (*model.GatewayOrder, error) {
	if !c.Configured() {
		return nil, model.ErrGatewayNotConfigured
	}

	c.logger.Info("Creating Razorpay order",
		zap.Int64("amount", req.AmountMinor),
		zap.String("currency", req.Currency),
		zap.String("receipt", req.Receipt))

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	raw, err := withContext(ctx, func() (map[string]interface{}, error) {
		return c.orders.Create(data, nil)
	})
	if err != nil {
		c.logger.Error("Failed to create Razorpay order", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	order, err := orderFromMap(raw)
	if err != nil {
		return nil, err
	}
	order.KeyID = c.keyID

	c.logger.Info("Created Razorpay order", zap.String("order_id", order.ID))
	return order, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*model.GatewayOrder, error) {
	if !c.Configured() {
		return nil, model.ErrGatewayNotConfigured
	}

	raw, err := withContext(ctx, func() (map[string]interface{}, error) {
		return c.orders.Fetch(orderID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOrderFetchFailed, err)
	}
	return orderFromMap(raw)
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	if !c.Configured() {
		return nil, model.ErrGatewayNotConfigured
	}

	raw, err := withContext(ctx, func() (map[string]interface{}, error) {
		return c.payments.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentFetchFailed, err)
	}

	return &model.GatewayPayment{
		ID:      stringField(raw, "id"),
		OrderID: stringField(raw, "order_id"),
		Status:  stringField(raw, "status"),
		Method:  stringField(raw, "method"),
		Amount:  int64Field(raw, "amount"),
	}, nil
}

// VerifyPaymentSignature checks the checkout handler's signature, an
// HMAC-SHA256 of "orderID|paymentID" keyed with the key secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if c.keySecret == "" {
		c.logger.Warn("Payment signature rejected: no key secret configured")
		return false
	}
	return verifyHMAC(c.keySecret, orderID+"|"+paymentID, signature)
}

// VerifyWebhookSignature checks X-Razorpay-Signature against the raw body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		c.logger.Warn("Webhook signature rejected: no webhook secret configured")
		return false
	}
	return verifyHMAC(c.webhookSecret, string(body), signature)
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(secret, payload, signature string) bool {
	expected, err := hex.DecodeString(Sign(secret, payload))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// withContext bounds an SDK call that does not accept a context.
func withContext(ctx context.Context, call func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := call()
		done <- result{body: body, err: err}
	}()

	select {
	case r := <-done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func orderFromMap(raw map[string]interface{}) (*model.GatewayOrder, error) {
	id := stringField(raw, "id")
	if id == "" {
		return nil, ErrUnexpectedOrderShape
	}

	order := &model.GatewayOrder{
		ID:       id,
		Gateway:  model.GatewayRazorpay,
		Amount:   int64Field(raw, "amount"),
		Currency: stringField(raw, "currency"),
		Receipt:  stringField(raw, "receipt"),
		Status:   stringField(raw, "status"),
		Notes:    map[string]string{},
	}

	// Razorpay returns notes as an object, or as an empty array when unset.
	if notes, ok := raw["notes"].(map[string]interface{}); ok {
		for k, v := range notes {
			if s, ok := v.(string); ok {
				order.Notes[k] = s
			}
		}
	}
	return order, nil
}

func stringField(raw map[string]interface{}, key string) string {
	s, _ := raw[key].(string)
	return s
}

func int64Field(raw map[string]interface{}, key string) int64 {
	switch v := raw[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

func maskString(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-2:]
}
