package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"journal-billing/internal/model"
	"journal-billing/internal/repository"
)

const (
	maxSymbolLength = 32
	maxNotesLength  = 2000
)

type CreateTradeRequest struct {
	Symbol     string
	Side       string
	Quantity   float64
	EntryPrice float64
	ExitPrice  *float64
	Notes      string
	TradedAt   *time.Time
}

type CreateWatchItemRequest struct {
	Symbol string
	Notes  string
}

// TradeView is the API shape of a trade.
type TradeView struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       model.TradeSide `json:"side"`
	Quantity   float64         `json:"quantity"`
	EntryPrice float64         `json:"entryPrice"`
	ExitPrice  *float64        `json:"exitPrice,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	TradedAt   time.Time       `json:"tradedAt"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func NewTradeView(t model.Trade) TradeView {
	return TradeView{
		ID:         t.ID,
		Symbol:     t.Symbol,
		Side:       t.Side,
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		ExitPrice:  fromNullFloat(t.ExitPrice),
		Notes:      t.Notes,
		TradedAt:   t.TradedAt,
		CreatedAt:  t.CreatedAt,
	}
}

type JournalService interface {
	CreateTrade(ctx context.Context, session *model.Session, req CreateTradeRequest) (*model.Trade, error)
	ListTrades(ctx context.Context, session *model.Session) ([]model.Trade, error)
	AddWatchItem(ctx context.Context, session *model.Session, req CreateWatchItemRequest) (*model.WatchItem, error)
	ListWatchItems(ctx context.Context, session *model.Session) ([]model.WatchItem, error)
	Usage(ctx context.Context, session *model.Session, kind model.ResourceKind) (model.UsageDecision, error)
}

type DefaultJournalService struct {
	journalRepo repository.JournalRepository
	guard       UsageGuard
	logger      *zap.Logger
}

func NewJournalService(journalRepo repository.JournalRepository, guard UsageGuard, logger *zap.Logger) JournalService {
	return &DefaultJournalService{
		journalRepo: journalRepo,
		guard:       guard,
		logger:      logger,
	}
}

func (s *DefaultJournalService) CreateTrade(ctx context.Context, session *model.Session, req CreateTradeRequest) (*model.Trade, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	trade, err := validateTrade(req)
	if err != nil {
		return nil, err
	}
	trade.UserID = session.UserID

	if err := s.admit(ctx, session.UserID, model.ResourceTrade); err != nil {
		return nil, err
	}

	if err := s.journalRepo.CreateTrade(ctx, trade); err != nil {
		s.logger.Error("Failed to create trade", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrJournalStoreError, err)
	}
	return trade, nil
}

func (s *DefaultJournalService) ListTrades(ctx context.Context, session *model.Session) ([]model.Trade, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	trades, err := s.journalRepo.ListTrades(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJournalStoreError, err)
	}
	return trades, nil
}

func (s *DefaultJournalService) AddWatchItem(ctx context.Context, session *model.Session, req CreateWatchItemRequest) (*model.WatchItem, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	symbol, err := normalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if len(req.Notes) > maxNotesLength {
		return nil, fmt.Errorf("%w: notes are too long", ErrInvalidJournalEntry)
	}

	if err := s.admit(ctx, session.UserID, model.ResourceWatch); err != nil {
		return nil, err
	}

	item := &model.WatchItem{
		UserID: session.UserID,
		Symbol: symbol,
		Notes:  strings.TrimSpace(req.Notes),
	}
	if err := s.journalRepo.CreateWatchItem(ctx, item); err != nil {
		s.logger.Error("Failed to create watch item", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrJournalStoreError, err)
	}
	return item, nil
}

func (s *DefaultJournalService) ListWatchItems(ctx context.Context, session *model.Session) ([]model.WatchItem, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	items, err := s.journalRepo.ListWatchItems(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJournalStoreError, err)
	}
	return items, nil
}

// Usage reports what the guard would decide for the next creation without
// creating anything.
func (s *DefaultJournalService) Usage(ctx context.Context, session *model.Session, kind model.ResourceKind) (model.UsageDecision, error) {
	if session == nil || session.UserID == "" {
		return model.UsageDecision{}, ErrUnauthorized
	}
	if kind != model.ResourceTrade && kind != model.ResourceWatch {
		return model.UsageDecision{}, fmt.Errorf("%w: unknown resource kind %q", ErrInvalidJournalEntry, kind)
	}
	return s.guard.Check(ctx, session.UserID, kind), nil
}

func (s *DefaultJournalService) admit(ctx context.Context, userID string, kind model.ResourceKind) error {
	decision := s.guard.Check(ctx, userID, kind)
	if !decision.Allowed {
		s.logger.Info("Usage limit reached", zap.String("user_id", userID), zap.String("kind", string(kind)))
		return &UsageLimitError{Kind: kind, Decision: decision}
	}
	return nil
}

func validateTrade(req CreateTradeRequest) (*model.Trade, error) {
	symbol, err := normalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}

	side := model.TradeSide(strings.ToLower(strings.TrimSpace(req.Side)))
	if side != model.SideLong && side != model.SideShort {
		return nil, fmt.Errorf("%w: side must be long or short", ErrInvalidJournalEntry)
	}
	if !positive(req.Quantity) {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidJournalEntry)
	}
	if !positive(req.EntryPrice) {
		return nil, fmt.Errorf("%w: entry price must be positive", ErrInvalidJournalEntry)
	}
	if req.ExitPrice != nil && !positive(*req.ExitPrice) {
		return nil, fmt.Errorf("%w: exit price must be positive", ErrInvalidJournalEntry)
	}
	if len(req.Notes) > maxNotesLength {
		return nil, fmt.Errorf("%w: notes are too long", ErrInvalidJournalEntry)
	}

	trade := &model.Trade{
		Symbol:     symbol,
		Side:       side,
		Quantity:   req.Quantity,
		EntryPrice: req.EntryPrice,
		ExitPrice:  toNullFloat(req.ExitPrice),
		Notes:      strings.TrimSpace(req.Notes),
	}
	if req.TradedAt != nil {
		trade.TradedAt = req.TradedAt.UTC()
	}
	return trade, nil
}

func normalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", fmt.Errorf("%w: symbol is required", ErrInvalidJournalEntry)
	}
	if len(symbol) > maxSymbolLength {
		return "", fmt.Errorf("%w: symbol is too long", ErrInvalidJournalEntry)
	}
	return symbol, nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
