package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal-billing/internal/model"
)

func setupMockDB(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, driver), mock
}

func TestEntitlementRepository_GetByUserID_Found(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewEntitlementRepository(db)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_settings")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "plan_type", "subscription_status",
			"subscription_start", "subscription_end", "updated_at",
		}).AddRow("u1", "pro", "active", start, end, start))

	ent, err := repo.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, ent)
	assert.Equal(t, model.PlanPro, ent.PlanType)
	assert.Equal(t, model.StatusActive, ent.SubscriptionStatus)
	assert.True(t, ent.SubscriptionEnd.Valid)
	assert.Equal(t, end, ent.SubscriptionEnd.Time)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementRepository_GetByUserID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewEntitlementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	ent, err := repo.GetByUserID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, ent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementRepository_Upsert_Dialects(t *testing.T) {
	tests := []struct {
		driver string
		clause string
	}{
		{driver: "pgx", clause: "ON CONFLICT (user_id) DO UPDATE"},
		{driver: "mysql", clause: "ON DUPLICATE KEY UPDATE"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, mock := setupMockDB(t, tt.driver)
			repo := NewEntitlementRepository(db)

			mock.ExpectExec(regexp.QuoteMeta(tt.clause)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.Upsert(context.Background(), &model.Entitlement{
				UserID:             "u1",
				PlanType:           model.PlanPro,
				SubscriptionStatus: model.StatusActive,
			})
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEntitlementRepository_ExpireLapsed(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewEntitlementRepository(db)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM user_settings")).
		WithArgs("active", "free", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_settings")).
		WithArgs("inactive", now, "u1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	ids, err := repo.ExpireLapsed(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementRepository_ExpireLapsed_NothingToDo(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewEntitlementRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM user_settings")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	ids, err := repo.ExpireLapsed(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testPayment() *model.PaymentRecord {
	return &model.PaymentRecord{
		UserID:           "u1",
		Gateway:          model.GatewayRazorpay,
		GatewayPaymentID: "pay_1",
		GatewayOrderID:   "order_1",
		Amount:           99900,
		Currency:         "INR",
		Status:           model.PaymentSuccess,
	}
}

func testEntitlement() *model.Entitlement {
	return &model.Entitlement{
		UserID:             "u1",
		PlanType:           model.PlanPro,
		SubscriptionStatus: model.StatusActive,
	}
}

func TestPaymentRepository_Record(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (gateway_payment_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := testPayment()
	entitlement := testEntitlement()
	require.NoError(t, repo.Record(context.Background(), payment, entitlement))
	assert.NotEmpty(t, payment.ID)
	assert.False(t, payment.CreatedAt.IsZero())
	assert.False(t, entitlement.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Record_LedgerOnly(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Record(context.Background(), testPayment(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Record_Duplicate(t *testing.T) {
	db, mock := setupMockDB(t, "mysql")
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO payments")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Record(context.Background(), &model.PaymentRecord{GatewayPaymentID: "pay_1"}, testEntitlement())
	assert.ErrorIs(t, err, ErrDuplicatePayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Record_EntitlementFailureRollsBackLedger(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_settings")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Record(context.Background(), testPayment(), testEntitlement())
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NotErrorIs(t, err, ErrLedgerWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Record_LedgerFailure(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Record(context.Background(), testPayment(), testEntitlement())
	assert.ErrorIs(t, err, ErrLedgerWrite)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ExistsByGatewayPaymentID(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE gateway_payment_id = $1")).
		WithArgs("pay_1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsByGatewayPaymentID(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepository_CountByUser(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewJournalRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM trades WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM watchlist WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	trades, err := repo.CountByUser(context.Background(), "u1", model.ResourceTrade)
	require.NoError(t, err)
	assert.Equal(t, 7, trades)

	watch, err := repo.CountByUser(context.Background(), "u1", model.ResourceWatch)
	require.NoError(t, err)
	assert.Equal(t, 2, watch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepository_CountByUser_UnknownKind(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewJournalRepository(db)

	_, err := repo.CountByUser(context.Background(), "u1", model.ResourceKind("notes"))
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepository_CreateTrade(t *testing.T) {
	db, mock := setupMockDB(t, "pgx")
	repo := NewJournalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trades")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	trade := &model.Trade{UserID: "u1", Symbol: "NIFTY", Side: model.SideLong, Quantity: 1, EntryPrice: 100}
	require.NoError(t, repo.CreateTrade(context.Background(), trade))
	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, trade.CreatedAt, trade.TradedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
