package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"journal-billing/internal/events"
	"journal-billing/internal/metrics"
	"journal-billing/internal/model"
	"journal-billing/internal/repository"
)

const (
	unknownMethod       = "unknown"
	paypalMethod        = "paypal"
	paypalCompleted     = "COMPLETED"
	eventPaymentCapture = "payment.captured"
)

type RazorpayVerification struct {
	OrderID      string
	PaymentID    string
	Signature    string
	PlanID       string
	Amount       float64
	Currency     string
	BillingCycle string
}

type PayPalCapture struct {
	OrderID      string
	PlanID       string
	BillingCycle string
}

type VerificationResult struct {
	AlreadyProcessed bool
	Intent           model.Intent
	Entitlement      *model.Entitlement
}

type VerificationService interface {
	VerifyRazorpay(ctx context.Context, session *model.Session, req RazorpayVerification) (*VerificationResult, error)
	CapturePayPal(ctx context.Context, session *model.Session, req PayPalCapture) (*VerificationResult, error)
	HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error
}

type DefaultVerificationService struct {
	razorpay        RazorpayGateway
	paypal          CaptureGateway
	entitlementRepo repository.EntitlementRepository
	paymentRepo     repository.PaymentRepository
	publisher       events.Publisher
	retry           RetryConfig
	timeout         time.Duration
	now             func() time.Time
	logger          *zap.Logger
}

func NewVerificationService(
	razorpay RazorpayGateway,
	paypal CaptureGateway,
	entitlementRepo repository.EntitlementRepository,
	paymentRepo repository.PaymentRepository,
	publisher events.Publisher,
	timeout time.Duration,
	logger *zap.Logger,
) VerificationService {
	return &DefaultVerificationService{
		razorpay:        razorpay,
		paypal:          paypal,
		entitlementRepo: entitlementRepo,
		paymentRepo:     paymentRepo,
		publisher:       publisher,
		retry:           DefaultRetryConfig(),
		timeout:         timeout,
		now:             time.Now,
		logger:          logger,
	}
}

// confirmedPayment is a payment the gateway has vouched for, ready to be
// applied.
type confirmedPayment struct {
	userID    string
	gateway   model.Gateway
	paymentID string
	orderID   string
	amount    int64
	currency  string
	method    string
	intent    model.Intent
}

func (s *DefaultVerificationService) VerifyRazorpay(ctx context.Context, session *model.Session, req RazorpayVerification) (*VerificationResult, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}
	if !s.razorpay.Configured() {
		metrics.RecordVerification(string(model.GatewayRazorpay), "not_configured")
		return nil, ErrConfigurationMissing
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		metrics.RecordVerification(string(model.GatewayRazorpay), "invalid_signature")
		return nil, ErrInvalidSignature
	}
	if !s.razorpay.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature) {
		metrics.RecordVerification(string(model.GatewayRazorpay), "invalid_signature")
		s.logger.Warn("Razorpay signature mismatch",
			zap.String("user_id", session.UserID),
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", req.PaymentID))
		return nil, ErrInvalidSignature
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	payment := confirmedPayment{
		userID:    session.UserID,
		gateway:   model.GatewayRazorpay,
		paymentID: req.PaymentID,
		orderID:   req.OrderID,
		amount:    ToMinorUnits(req.Amount),
		currency:  strings.ToUpper(req.Currency),
		method:    unknownMethod,
	}

	var order *model.GatewayOrder
	err := withRetry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		order, err = s.razorpay.FetchOrder(ctx, req.OrderID)
		return err
	})
	if err != nil {
		metrics.RecordVerification(string(model.GatewayRazorpay), "gateway_error")
		s.logger.Error("Could not read back Razorpay order",
			zap.String("user_id", session.UserID),
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayError, err)
	}
	if order.Amount > 0 {
		payment.amount = order.Amount
	}
	if order.Currency != "" {
		payment.currency = order.Currency
	}

	intent, err := resolveIntent(session.UserID, order.Notes, req.PlanID, req.BillingCycle)
	if err != nil {
		metrics.RecordVerification(string(model.GatewayRazorpay), "intent_mismatch")
		s.logger.Warn("Razorpay payment does not match its order",
			zap.String("user_id", session.UserID),
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, err
	}
	payment.intent = intent

	err = withRetry(ctx, s.retry, func(ctx context.Context) error {
		p, err := s.razorpay.FetchPayment(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		if p.Method != "" {
			payment.method = p.Method
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Could not read Razorpay payment method",
			zap.String("payment_id", req.PaymentID), zap.Error(err))
	}

	return s.apply(ctx, payment)
}

// CapturePayPal confirms a PayPal order by capturing it server side. The
// client's word that the payment succeeded is never trusted.
func (s *DefaultVerificationService) CapturePayPal(ctx context.Context, session *model.Session, req PayPalCapture) (*VerificationResult, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrInvalidOrder)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	capture, err := s.paypal.CaptureOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, model.ErrGatewayNotConfigured) {
			metrics.RecordVerification(string(model.GatewayPayPal), "not_configured")
			return nil, ErrConfigurationMissing
		}
		metrics.RecordVerification(string(model.GatewayPayPal), "gateway_error")
		s.logger.Error("PayPal capture failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayError, err)
	}

	if capture.Status != paypalCompleted {
		metrics.RecordVerification(string(model.GatewayPayPal), "not_captured")
		s.logger.Warn("PayPal order not completed",
			zap.String("order_id", req.OrderID), zap.String("status", capture.Status))
		return nil, ErrPaymentNotCaptured
	}

	intent, err := resolveIntent(session.UserID, capture.Notes, req.PlanID, req.BillingCycle)
	if err != nil {
		metrics.RecordVerification(string(model.GatewayPayPal), "intent_mismatch")
		s.logger.Warn("PayPal capture does not match its order",
			zap.String("user_id", session.UserID),
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, err
	}

	paymentID := capture.CaptureID
	if paymentID == "" {
		paymentID = capture.OrderID
	}

	return s.apply(ctx, confirmedPayment{
		userID:    session.UserID,
		gateway:   model.GatewayPayPal,
		paymentID: paymentID,
		orderID:   req.OrderID,
		amount:    capture.Amount,
		currency:  capture.Currency,
		method:    paypalMethod,
		intent:    intent,
	})
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID       string          `json:"id"`
				OrderID  string          `json:"order_id"`
				Amount   int64           `json:"amount"`
				Currency string          `json:"currency"`
				Status   string          `json:"status"`
				Method   string          `json:"method"`
				Notes    json.RawMessage `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleRazorpayWebhook applies payment.captured events. It is the fallback
// for checkouts whose client never posted the verification, and a no-op for
// payments that were already verified.
func (s *DefaultVerificationService) HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.razorpay.VerifyWebhookSignature(body, signature) {
		metrics.RecordVerification(string(model.GatewayRazorpay), "invalid_webhook_signature")
		return ErrInvalidSignature
	}

	var event razorpayWebhook
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	if event.Event != eventPaymentCapture {
		s.logger.Info("Ignoring Razorpay webhook event", zap.String("event", event.Event))
		return nil
	}

	entity := event.Payload.Payment.Entity
	if entity.ID == "" {
		return fmt.Errorf("%w: payment entity has no id", ErrInvalidWebhook)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	notes := decodeEntityNotes(entity.Notes)
	if entity.OrderID != "" {
		var order *model.GatewayOrder
		err := withRetry(ctx, s.retry, func(ctx context.Context) error {
			var err error
			order, err = s.razorpay.FetchOrder(ctx, entity.OrderID)
			return err
		})
		if err != nil {
			s.logger.Warn("Could not read back Razorpay order for webhook",
				zap.String("order_id", entity.OrderID), zap.Error(err))
		} else if len(order.Notes) > 0 {
			notes = order.Notes
		}
	}

	userID := notes[model.NoteUserID]
	intent, err := model.IntentFromNotes(notes)
	if userID == "" || err != nil {
		// Not one of our checkouts, or notes were stripped. Retrying will not
		// change that, so the event is acknowledged.
		s.logger.Warn("Razorpay webhook without correlation notes",
			zap.String("payment_id", entity.ID),
			zap.String("order_id", entity.OrderID))
		return nil
	}

	method := entity.Method
	if method == "" {
		method = unknownMethod
	}

	_, err = s.apply(ctx, confirmedPayment{
		userID:    userID,
		gateway:   model.GatewayRazorpay,
		paymentID: entity.ID,
		orderID:   entity.OrderID,
		amount:    entity.Amount,
		currency:  strings.ToUpper(entity.Currency),
		method:    method,
		intent:    intent,
	})
	return err
}

// apply records the ledger row and moves the entitlement to the purchased
// plan in one transaction. A payment counts as processed only once its plan
// is in place. A ledger failure other than a duplicate is logged and the
// entitlement is still updated on its own.
func (s *DefaultVerificationService) apply(ctx context.Context, p confirmedPayment) (*VerificationResult, error) {
	gateway := string(p.gateway)
	logger := s.logger.With(
		zap.String("user_id", p.userID),
		zap.String("gateway", gateway),
		zap.String("payment_id", p.paymentID),
		zap.String("order_id", p.orderID))

	exists, err := s.paymentRepo.ExistsByGatewayPaymentID(ctx, p.paymentID)
	if err != nil {
		logger.Warn("Duplicate payment check failed", zap.Error(err))
	} else if exists {
		metrics.RecordVerification(gateway, "duplicate")
		logger.Info("Payment already processed")
		return &VerificationResult{AlreadyProcessed: true, Intent: p.intent}, nil
	}

	record := &model.PaymentRecord{
		UserID:           p.userID,
		Gateway:          p.gateway,
		GatewayPaymentID: p.paymentID,
		GatewayOrderID:   p.orderID,
		Amount:           p.amount,
		Currency:         p.currency,
		PurchaseType:     p.intent.PurchaseType(),
		ItemID:           p.intent.ItemID(),
		Status:           model.PaymentSuccess,
		Method:           p.method,
	}

	var entitlement *model.Entitlement
	var end time.Time
	sub, isSubscription := p.intent.(model.SubscriptionIntent)
	if isSubscription {
		record.PlanType = string(sub.PlanID)
		var start time.Time
		start, end = SubscriptionWindow(sub, s.now())
		entitlement = &model.Entitlement{
			UserID:             p.userID,
			PlanType:           sub.PlanID,
			SubscriptionStatus: model.StatusActive,
			SubscriptionStart:  toNullTime(start),
			SubscriptionEnd:    toNullTime(end),
		}
	}

	err = s.paymentRepo.Record(ctx, record, entitlement)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicatePayment):
		metrics.RecordVerification(gateway, "duplicate")
		logger.Info("Payment recorded concurrently, skipping entitlement update")
		return &VerificationResult{AlreadyProcessed: true, Intent: p.intent}, nil
	case errors.Is(err, repository.ErrLedgerWrite):
		logger.Error("Failed to record payment in ledger", zap.Error(err))
		if entitlement != nil {
			if err := s.entitlementRepo.Upsert(ctx, entitlement); err != nil {
				return nil, s.storeError(logger, gateway, err)
			}
		}
	default:
		return nil, s.storeError(logger, gateway, err)
	}

	if !isSubscription {
		metrics.RecordVerification(gateway, "success")
		logger.Info("Book purchase recorded", zap.String("item_id", p.intent.ItemID()))
		return &VerificationResult{Intent: p.intent}, nil
	}

	metrics.RecordVerification(gateway, "success")
	logger.Info("Entitlement activated",
		zap.String("plan_type", string(sub.PlanID)),
		zap.String("billing_cycle", string(sub.Cycle)),
		zap.Time("subscription_end", end))

	if err := s.publisher.Publish(ctx, events.EntitlementActivated, events.EntitlementActivatedEvent{
		UserID:           p.userID,
		PlanType:         string(sub.PlanID),
		BillingCycle:     string(sub.Cycle),
		Gateway:          gateway,
		GatewayPaymentID: p.paymentID,
		SubscriptionEnd:  end,
	}); err != nil {
		logger.Warn("Failed to publish entitlement event", zap.Error(err))
	}

	return &VerificationResult{Intent: p.intent, Entitlement: entitlement}, nil
}

func (s *DefaultVerificationService) storeError(logger *zap.Logger, gateway string, err error) error {
	metrics.RecordVerification(gateway, "store_error")
	logger.Error("Failed to update entitlement after verified payment", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrStoreError, err)
}

func (s *DefaultVerificationService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// resolveIntent prefers the intent recorded on the gateway order at creation
// time. The client-declared plan is a fallback only for orders created without
// notes, and must agree with them when both exist.
func resolveIntent(userID string, notes map[string]string, planID, cycle string) (model.Intent, error) {
	if owner := notes[model.NoteUserID]; owner != "" && owner != userID {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrIntentMismatch)
	}

	if fromNotes, err := model.IntentFromNotes(notes); err == nil {
		if planID != "" && !strings.EqualFold(strings.TrimSpace(planID), fromNotes.ItemID()) {
			return nil, fmt.Errorf("%w: order was for %q, not %q", ErrIntentMismatch, fromNotes.ItemID(), planID)
		}
		return fromNotes, nil
	}

	if strings.TrimSpace(planID) == "" {
		return nil, fmt.Errorf("%w: planId is required", ErrInvalidOrder)
	}
	intent, err := model.ParseIntent(string(model.PurchaseSubscription), planID, cycle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return intent, nil
}

// Razorpay sends notes as an object, or as an empty array when there are
// none.
func decodeEntityNotes(raw json.RawMessage) map[string]string {
	notes := map[string]string{}
	if len(raw) == 0 {
		return notes
	}
	var object map[string]interface{}
	if err := json.Unmarshal(raw, &object); err != nil {
		return notes
	}
	for k, v := range object {
		if s, ok := v.(string); ok {
			notes[k] = s
		}
	}
	return notes
}
