package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"journal-billing/internal/model"
)

type EntitlementRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.Entitlement, error)
	Upsert(ctx context.Context, entitlement *model.Entitlement) error
	ExpireLapsed(ctx context.Context, now time.Time) ([]string, error)
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Entitlement, error)
}

type SQLEntitlementRepository struct {
	db *sqlx.DB
}

func NewEntitlementRepository(db *sqlx.DB) EntitlementRepository {
	return &SQLEntitlementRepository{
		db: db,
	}
}

// GetByUserID returns nil, nil when the user has no settings row yet.
func (r *SQLEntitlementRepository) GetByUserID(ctx context.Context, userID string) (*model.Entitlement, error) {
	var entitlement model.Entitlement

	query := r.db.Rebind(`
		SELECT user_id, plan_type, subscription_status,
			subscription_start, subscription_end, updated_at
		FROM user_settings
		WHERE user_id = ?
	`)

	err := r.db.GetContext(ctx, &entitlement, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &entitlement, nil
}

func (r *SQLEntitlementRepository) Upsert(ctx context.Context, entitlement *model.Entitlement) error {
	entitlement.UpdatedAt = time.Now().UTC()

	_, err := r.db.NamedExecContext(ctx, upsertEntitlementQuery(r.db), entitlement)
	return err
}

// ExpireLapsed flips active paid rows whose window has closed to inactive and
// returns the affected user ids.
func (r *SQLEntitlementRepository) ExpireLapsed(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var userIDs []string
	selectQuery := r.db.Rebind(`
		SELECT user_id FROM user_settings
		WHERE subscription_status = ? AND plan_type <> ?
			AND subscription_end IS NOT NULL AND subscription_end < ?
	`)
	if err := tx.SelectContext(ctx, &userIDs, selectQuery, model.StatusActive, model.PlanFree, now); err != nil {
		tx.Rollback()
		return nil, err
	}

	if len(userIDs) == 0 {
		tx.Rollback()
		return nil, nil
	}

	updateQuery, args, err := sqlx.In(`
		UPDATE user_settings
		SET subscription_status = ?, updated_at = ?
		WHERE user_id IN (?)
	`, model.StatusInactive, now, userIDs)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, r.db.Rebind(updateQuery), args...); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (r *SQLEntitlementRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Entitlement, error) {
	var entitlements []model.Entitlement

	query := r.db.Rebind(`
		SELECT user_id, plan_type, subscription_status,
			subscription_start, subscription_end, updated_at
		FROM user_settings
		WHERE subscription_status = ? AND plan_type <> ?
			AND subscription_end >= ? AND subscription_end < ?
		ORDER BY subscription_end
	`)

	err := r.db.SelectContext(ctx, &entitlements, query, model.StatusActive, model.PlanFree, from, to)
	if err != nil {
		return nil, err
	}

	return entitlements, nil
}
