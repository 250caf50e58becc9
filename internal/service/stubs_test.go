package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"journal-billing/internal/model"
	"journal-billing/internal/razorpay"
	"journal-billing/internal/repository"
)

type stubEntitlementRepo struct {
	mu          sync.Mutex
	rows        map[string]*model.Entitlement
	getErr      error
	upsertErr   error
	getCalls    int
	upsertCalls int
}

func newStubEntitlementRepo() *stubEntitlementRepo {
	return &stubEntitlementRepo{rows: map[string]*model.Entitlement{}}
}

func (r *stubEntitlementRepo) GetByUserID(_ context.Context, userID string) (*model.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	row, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (r *stubEntitlementRepo) Upsert(_ context.Context, e *model.Entitlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertCalls++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	copied := *e
	r.rows[e.UserID] = &copied
	return nil
}

func (r *stubEntitlementRepo) ExpireLapsed(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (r *stubEntitlementRepo) ListEndingBetween(context.Context, time.Time, time.Time) ([]model.Entitlement, error) {
	return nil, nil
}

// stubPaymentRepo keeps the ledger in memory. When entitlements is set,
// Record applies the entitlement through it and drops the ledger row if that
// fails, like the SQL transaction does.
type stubPaymentRepo struct {
	mu           sync.Mutex
	records      []model.PaymentRecord
	entitlements *stubEntitlementRepo
	recordErr    error
	existsErr    error
	recordCalls  int
}

func (r *stubPaymentRepo) Record(ctx context.Context, p *model.PaymentRecord, e *model.Entitlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordCalls++
	if errors.Is(r.recordErr, repository.ErrDuplicatePayment) {
		return r.recordErr
	}
	if r.recordErr != nil {
		return fmt.Errorf("%w: %w", repository.ErrLedgerWrite, r.recordErr)
	}
	for _, rec := range r.records {
		if rec.GatewayPaymentID == p.GatewayPaymentID {
			return repository.ErrDuplicatePayment
		}
	}
	if e != nil && r.entitlements != nil {
		if err := r.entitlements.Upsert(ctx, e); err != nil {
			return err
		}
	}
	r.records = append(r.records, *p)
	return nil
}

func (r *stubPaymentRepo) ExistsByGatewayPaymentID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsErr != nil {
		return false, r.existsErr
	}
	for _, rec := range r.records {
		if rec.GatewayPaymentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubPaymentRepo) ListByUserID(_ context.Context, userID string) ([]model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PaymentRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type stubJournalRepo struct {
	counts     map[model.ResourceKind]int
	countErr   error
	createErr  error
	countCalls int
	trades     []model.Trade
	watch      []model.WatchItem
}

func newStubJournalRepo() *stubJournalRepo {
	return &stubJournalRepo{counts: map[model.ResourceKind]int{}}
}

func (r *stubJournalRepo) CreateTrade(_ context.Context, t *model.Trade) error {
	if r.createErr != nil {
		return r.createErr
	}
	t.ID = "trade-1"
	r.trades = append(r.trades, *t)
	r.counts[model.ResourceTrade]++
	return nil
}

func (r *stubJournalRepo) ListTrades(context.Context, string) ([]model.Trade, error) {
	return r.trades, nil
}

func (r *stubJournalRepo) CreateWatchItem(_ context.Context, item *model.WatchItem) error {
	if r.createErr != nil {
		return r.createErr
	}
	item.ID = "watch-1"
	r.watch = append(r.watch, *item)
	r.counts[model.ResourceWatch]++
	return nil
}

func (r *stubJournalRepo) ListWatchItems(context.Context, string) ([]model.WatchItem, error) {
	return r.watch, nil
}

func (r *stubJournalRepo) CountByUser(_ context.Context, _ string, kind model.ResourceKind) (int, error) {
	r.countCalls++
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.counts[kind], nil
}

type stubOrderGateway struct {
	name     model.Gateway
	err      error
	calls    int
	requests []model.GatewayOrderRequest
}

func (g *stubOrderGateway) Name() model.Gateway {
	if g.name == "" {
		return model.GatewayRazorpay
	}
	return g.name
}

func (g *stubOrderGateway) CreateOrder(_ context.Context, req model.GatewayOrderRequest) (*model.GatewayOrder, error) {
	g.calls++
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &model.GatewayOrder{
		ID:       "order_abc",
		Gateway:  g.Name(),
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}, nil
}

// stubRazorpay signs with a real secret so the service exercises the actual
// HMAC check.
type stubRazorpay struct {
	secret        string
	webhookSecret string
	unconfigured  bool
	order         *model.GatewayOrder
	orderErr      error
	payment       *model.GatewayPayment
	paymentErr    error
	fetchCalls    int
}

func (r *stubRazorpay) Configured() bool { return !r.unconfigured }

func (r *stubRazorpay) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return razorpay.Sign(r.secret, orderID+"|"+paymentID) == signature
}

func (r *stubRazorpay) VerifyWebhookSignature(body []byte, signature string) bool {
	return razorpay.Sign(r.webhookSecret, string(body)) == signature
}

func (r *stubRazorpay) FetchOrder(context.Context, string) (*model.GatewayOrder, error) {
	r.fetchCalls++
	if r.orderErr != nil {
		return nil, r.orderErr
	}
	if r.order == nil {
		return &model.GatewayOrder{}, nil
	}
	return r.order, nil
}

func (r *stubRazorpay) FetchPayment(context.Context, string) (*model.GatewayPayment, error) {
	if r.paymentErr != nil {
		return nil, r.paymentErr
	}
	if r.payment == nil {
		return &model.GatewayPayment{}, nil
	}
	return r.payment, nil
}

type stubPayPal struct {
	capture *model.GatewayCapture
	err     error
	calls   int
}

func (p *stubPayPal) CaptureOrder(context.Context, string) (*model.GatewayCapture, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.capture, nil
}

type stubPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return p.err
}

func (p *stubPublisher) Close() {}

type stubLimiter struct {
	allow bool
	err   error
	calls int
}

func (l *stubLimiter) Allow(context.Context, string) (bool, error) {
	l.calls++
	return l.allow, l.err
}

func intPtr(i int) *int { return &i }
