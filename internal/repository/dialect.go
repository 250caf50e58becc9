package repository

import (
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrDuplicatePayment = errors.New("payment already recorded")
	ErrLedgerWrite      = errors.New("payment ledger write failed")
	ErrUnknownResource  = errors.New("unknown resource kind")
)

func isMySQL(db *sqlx.DB) bool {
	return db.DriverName() == "mysql"
}

// upsertEntitlementQuery returns the insert-or-replace statement for the
// user_settings row in the dialect of db.
func upsertEntitlementQuery(db *sqlx.DB) string {
	if isMySQL(db) {
		return `
		INSERT INTO user_settings (
			user_id, plan_type, subscription_status,
			subscription_start, subscription_end, updated_at
		) VALUES (
			:user_id, :plan_type, :subscription_status,
			:subscription_start, :subscription_end, :updated_at
		)
		ON DUPLICATE KEY UPDATE
			plan_type = VALUES(plan_type),
			subscription_status = VALUES(subscription_status),
			subscription_start = VALUES(subscription_start),
			subscription_end = VALUES(subscription_end),
			updated_at = VALUES(updated_at)
	`
	}
	return `
		INSERT INTO user_settings (
			user_id, plan_type, subscription_status,
			subscription_start, subscription_end, updated_at
		) VALUES (
			:user_id, :plan_type, :subscription_status,
			:subscription_start, :subscription_end, :updated_at
		)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			subscription_status = EXCLUDED.subscription_status,
			subscription_start = EXCLUDED.subscription_start,
			subscription_end = EXCLUDED.subscription_end,
			updated_at = EXCLUDED.updated_at
	`
}

// insertPaymentQuery returns an insert that silently skips rows whose
// gateway_payment_id already exists.
func insertPaymentQuery(db *sqlx.DB) string {
	columns := `(
			id, user_id, gateway, gateway_payment_id, gateway_order_id,
			amount, currency, plan_type, purchase_type, item_id,
			status, method, created_at
		) VALUES (
			:id, :user_id, :gateway, :gateway_payment_id, :gateway_order_id,
			:amount, :currency, :plan_type, :purchase_type, :item_id,
			:status, :method, :created_at
		)`
	if isMySQL(db) {
		return `INSERT IGNORE INTO payments ` + columns
	}
	return `INSERT INTO payments ` + columns + `
		ON CONFLICT (gateway_payment_id) DO NOTHING`
}
