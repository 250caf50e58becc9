package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "pgx", cfg.DB.Driver)
	assert.Equal(t, "razorpay", cfg.Payment.Gateway)
	assert.Equal(t, 15*time.Second, cfg.Payment.GatewayTimeout)
	assert.Equal(t, 10, cfg.Usage.FreeLimit)
	assert.Equal(t, "session", cfg.Auth.CookieName)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("PAYMENT_GATEWAY", "PayPal")
	t.Setenv("PAYMENT_GATEWAY_TIMEOUT", "10s")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("USAGE_FREE_LIMIT", "25")
	t.Setenv("DB_DRIVER", "mysql")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "paypal", cfg.Payment.Gateway)
	assert.Equal(t, 10*time.Second, cfg.Payment.GatewayTimeout)
	assert.Equal(t, "rzp_test_key", cfg.Razorpay.KeyID)
	assert.Equal(t, 25, cfg.Usage.FreeLimit)
	assert.Equal(t, "mysql", cfg.DB.Driver)
}

func TestLoad_RejectsUnknownGateway(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("PAYMENT_GATEWAY", "stripe")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	mysql := DBConfig{Driver: "mysql", User: "u", Password: "p", Host: "h", Port: "3306", DBName: "d"}
	assert.Equal(t, "u:p@tcp(h:3306)/d?parseTime=true", mysql.GetDSN())

	pg := DBConfig{Driver: "pgx", User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=require", pg.GetDSN())

	pg.URL = "postgres://override"
	assert.Equal(t, "postgres://override", pg.GetDSN())
}
