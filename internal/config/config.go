package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Razorpay  RazorpayConfig  `mapstructure:"razorpay"`
	PayPal    PayPalConfig    `mapstructure:"paypal"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Usage     UsageConfig     `mapstructure:"usage"`
	Order     OrderConfig     `mapstructure:"order"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type PaymentConfig struct {
	Gateway        string        `mapstructure:"gateway"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
}

type RazorpayConfig struct {
	KeyID         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type PayPalConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Mode         string `mapstructure:"mode"`
}

type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	CookieName string `mapstructure:"cookie_name"`
}

type UsageConfig struct {
	FreeLimit int `mapstructure:"free_limit"`
}

type OrderConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LapseSpec    string `mapstructure:"lapse_spec"`
	ReminderSpec string `mapstructure:"reminder_spec"`
	ReminderDays int    `mapstructure:"reminder_days"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GetDSN returns the data source name for the configured driver. DB_URL wins
// when it is set.
func (c *DBConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

var defaults = map[string]interface{}{
	"server.port":            "8080",
	"server.request_timeout": 30 * time.Second,
	"server.allowed_origins": []string{"*"},

	"db.driver":   "pgx",
	"db.url":      "",
	"db.host":     "localhost",
	"db.port":     "5432",
	"db.user":     "journal",
	"db.password": "journal",
	"db.name":     "journal",
	"db.ssl_mode": "disable",

	"payment.gateway":         "razorpay",
	"payment.gateway_timeout": 15 * time.Second,

	"razorpay.key_id":         "",
	"razorpay.key_secret":     "",
	"razorpay.webhook_secret": "",

	"paypal.client_id":     "",
	"paypal.client_secret": "",
	"paypal.mode":          "sandbox",

	"auth.jwt_secret":  "",
	"auth.cookie_name": "session",

	"usage.free_limit": 10,

	"order.rate_limit":  5,
	"order.rate_window": time.Minute,

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,

	"rabbitmq.url":      "",
	"rabbitmq.exchange": "journal.events",

	"scheduler.enabled":       true,
	"scheduler.lapse_spec":    "@every 1h",
	"scheduler.reminder_spec": "0 9 * * *",
	"scheduler.reminder_days": 3,

	"log.level": "info",
}

// Load reads configuration from the environment. Keys map to upper-case
// variables with dots replaced by underscores, e.g. razorpay.key_id is
// RAZORPAY_KEY_ID.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.Payment.Gateway = strings.ToLower(strings.TrimSpace(cfg.Payment.Gateway))
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Payment.Gateway {
	case "razorpay", "paypal":
	default:
		return fmt.Errorf("unsupported PAYMENT_GATEWAY %q", c.Payment.Gateway)
	}
	switch c.DB.Driver {
	case "pgx", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.Usage.FreeLimit <= 0 {
		return fmt.Errorf("USAGE_FREE_LIMIT must be positive, got %d", c.Usage.FreeLimit)
	}
	return nil
}
