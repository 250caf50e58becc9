package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"journal-billing/internal/metrics"
	"journal-billing/internal/model"
	"journal-billing/internal/ratelimit"
)

type OrderService interface {
	CreateOrder(ctx context.Context, session *model.Session, req model.OrderRequest) (*model.GatewayOrder, error)
}

type DefaultOrderService struct {
	gateway OrderGateway
	catalog *Catalog
	limiter ratelimit.Limiter
	timeout time.Duration
	clock   *receiptClock
	logger  *zap.Logger
}

func NewOrderService(
	gateway OrderGateway,
	catalog *Catalog,
	limiter ratelimit.Limiter,
	timeout time.Duration,
	logger *zap.Logger,
) OrderService {
	return &DefaultOrderService{
		gateway: gateway,
		catalog: catalog,
		limiter: limiter,
		timeout: timeout,
		clock:   processClock,
		logger:  logger,
	}
}

func (s *DefaultOrderService) CreateOrder(ctx context.Context, session *model.Session, req model.OrderRequest) (*model.GatewayOrder, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	currency, err := validateOrder(req)
	if err != nil {
		return nil, err
	}

	amountMinor := ToMinorUnits(req.Amount)
	if err := s.catalog.Check(req.Intent, currency, amountMinor); err != nil {
		s.logger.Warn("Order rejected by price list",
			zap.String("user_id", session.UserID),
			zap.String("item_id", req.Intent.ItemID()),
			zap.Int64("amount", amountMinor),
			zap.Error(err))
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "orders:"+session.UserID)
		if err != nil {
			s.logger.Warn("Order rate limiter unavailable, allowing request", zap.Error(err))
		} else if !allowed {
			return nil, ErrTooManyOrders
		}
	}

	gatewayReq := model.GatewayOrderRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     newReceipt(s.clock, session.UserID),
		Notes:       model.NotesFor(session.UserID, req.Intent),
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	gateway := string(s.gateway.Name())
	order, err := s.gateway.CreateOrder(ctx, gatewayReq)
	if err != nil {
		if errors.Is(err, model.ErrGatewayNotConfigured) {
			metrics.RecordOrder(gateway, "not_configured")
			s.logger.Error("Order creation attempted without gateway credentials", zap.String("gateway", gateway))
			return nil, ErrConfigurationMissing
		}
		metrics.RecordOrder(gateway, "gateway_error")
		s.logger.Error("Gateway order creation failed",
			zap.String("gateway", gateway),
			zap.String("user_id", session.UserID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayError, err)
	}

	metrics.RecordOrder(gateway, "success")
	s.logger.Info("Order created",
		zap.String("gateway", gateway),
		zap.String("order_id", order.ID),
		zap.String("user_id", session.UserID),
		zap.String("receipt", gatewayReq.Receipt))
	return order, nil
}

func validateOrder(req model.OrderRequest) (string, error) {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrInvalidOrder)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrInvalidOrder)
		}
	}

	if req.Intent == nil {
		return "", fmt.Errorf("%w: purchase intent is required", ErrInvalidOrder)
	}
	return currency, nil
}

// ToMinorUnits converts a major-unit amount to the gateway's minor unit,
// rounding to the nearest integer.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// receiptClock hands out strictly increasing nanosecond timestamps.
type receiptClock struct {
	last atomic.Int64
	now  func() time.Time
}

var processClock = &receiptClock{now: time.Now}

func (c *receiptClock) next() int64 {
	for {
		now := c.now().UnixNano()
		last := c.last.Load()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// newReceipt builds rcpt_<nanos>_<user fragment>. Gateways cap receipts at 40
// characters.
func newReceipt(clock *receiptClock, userID string) string {
	fragment := userID
	if len(fragment) > 8 {
		fragment = fragment[:8]
	}
	return fmt.Sprintf("rcpt_%d_%s", clock.next(), fragment)
}
