package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"journal-billing/internal/model"
)

type JournalRepository interface {
	CreateTrade(ctx context.Context, trade *model.Trade) error
	ListTrades(ctx context.Context, userID string) ([]model.Trade, error)
	CreateWatchItem(ctx context.Context, item *model.WatchItem) error
	ListWatchItems(ctx context.Context, userID string) ([]model.WatchItem, error)
	CountByUser(ctx context.Context, userID string, kind model.ResourceKind) (int, error)
}

type SQLJournalRepository struct {
	db *sqlx.DB
}

func NewJournalRepository(db *sqlx.DB) JournalRepository {
	return &SQLJournalRepository{
		db: db,
	}
}

var resourceTables = map[model.ResourceKind]string{
	model.ResourceTrade: "trades",
	model.ResourceWatch: "watchlist",
}

func (r *SQLJournalRepository) CreateTrade(ctx context.Context, trade *model.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	trade.CreatedAt = time.Now().UTC()
	if trade.TradedAt.IsZero() {
		trade.TradedAt = trade.CreatedAt
	}

	query := `
		INSERT INTO trades (
			id, user_id, symbol, side, quantity,
			entry_price, exit_price, notes, traded_at, created_at
		) VALUES (
			:id, :user_id, :symbol, :side, :quantity,
			:entry_price, :exit_price, :notes, :traded_at, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, trade)
	return err
}

func (r *SQLJournalRepository) ListTrades(ctx context.Context, userID string) ([]model.Trade, error) {
	var trades []model.Trade

	query := r.db.Rebind(`
		SELECT * FROM trades
		WHERE user_id = ?
		ORDER BY traded_at DESC
	`)

	if err := r.db.SelectContext(ctx, &trades, query, userID); err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *SQLJournalRepository) CreateWatchItem(ctx context.Context, item *model.WatchItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO watchlist (id, user_id, symbol, notes, created_at)
		VALUES (:id, :user_id, :symbol, :notes, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, item)
	return err
}

func (r *SQLJournalRepository) ListWatchItems(ctx context.Context, userID string) ([]model.WatchItem, error) {
	var items []model.WatchItem

	query := r.db.Rebind(`
		SELECT * FROM watchlist
		WHERE user_id = ?
		ORDER BY created_at DESC
	`)

	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, err
	}
	return items, nil
}

// CountByUser is the usage counter: the number of rows of the given kind the
// user owns.
func (r *SQLJournalRepository) CountByUser(ctx context.Context, userID string, kind model.ResourceKind) (int, error) {
	table, ok := resourceTables[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownResource, kind)
	}

	var count int
	query := r.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = ?`, table))
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, err
	}
	return count, nil
}
