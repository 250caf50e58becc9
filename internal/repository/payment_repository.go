package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"journal-billing/internal/model"
)

// PaymentRepository is the append-only payment ledger. gateway_payment_id is
// unique; there is no update or delete.
type PaymentRepository interface {
	Record(ctx context.Context, payment *model.PaymentRecord, entitlement *model.Entitlement) error
	ExistsByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (bool, error)
	ListByUserID(ctx context.Context, userID string) ([]model.PaymentRecord, error)
}

type SQLPaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &SQLPaymentRepository{
		db: db,
	}
}

// Record inserts the ledger row and, when entitlement is non-nil, upserts the
// user's entitlement in the same transaction. Either both land or neither
// does. It returns ErrDuplicatePayment when the gateway payment id is already
// in the ledger, and wraps ErrLedgerWrite when the ledger insert itself fails.
func (r *SQLPaymentRepository) Record(ctx context.Context, payment *model.PaymentRecord, entitlement *model.Entitlement) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	result, err := tx.NamedExecContext(ctx, insertPaymentQuery(r.db), payment)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
	if rows == 0 {
		tx.Rollback()
		return ErrDuplicatePayment
	}

	if entitlement != nil {
		entitlement.UpdatedAt = time.Now().UTC()
		if _, err := tx.NamedExecContext(ctx, upsertEntitlementQuery(r.db), entitlement); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLPaymentRepository) ExistsByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (bool, error) {
	var count int

	query := r.db.Rebind(`
		SELECT COUNT(*) FROM payments
		WHERE gateway_payment_id = ?
	`)

	if err := r.db.GetContext(ctx, &count, query, gatewayPaymentID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SQLPaymentRepository) ListByUserID(ctx context.Context, userID string) ([]model.PaymentRecord, error) {
	var payments []model.PaymentRecord

	query := r.db.Rebind(`
		SELECT * FROM payments
		WHERE user_id = ?
		ORDER BY created_at DESC
	`)

	if err := r.db.SelectContext(ctx, &payments, query, userID); err != nil {
		return nil, err
	}
	return payments, nil
}
