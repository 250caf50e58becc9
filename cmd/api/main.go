package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"journal-billing/internal/auth"
	"journal-billing/internal/config"
	"journal-billing/internal/controller"
	"journal-billing/internal/events"
	"journal-billing/internal/metrics"
	journalmw "journal-billing/internal/middleware"
	"journal-billing/internal/paypal"
	"journal-billing/internal/ratelimit"
	"journal-billing/internal/razorpay"
	"journal-billing/internal/repository"
	"journal-billing/internal/scheduler"
	"journal-billing/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting journal billing service",
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("payment_gateway", cfg.Payment.Gateway))

	db, err := setupDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	entitlementRepo := repository.NewEntitlementRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	journalRepo := repository.NewJournalRepository(db)

	razorpayClient := razorpay.NewClient(razorpay.Config{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
	}, logger.Named("razorpay"))
	paypalClient := paypal.NewClient(paypal.Config{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Mode:         cfg.PayPal.Mode,
	}, logger.Named("paypal"))

	var orderGateway service.OrderGateway = razorpayClient
	if cfg.Payment.Gateway == "paypal" {
		orderGateway = paypalClient
	}

	limiter, redisClient := setupLimiter(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := setupPublisher(cfg, logger)
	defer publisher.Close()

	orderService := service.NewOrderService(
		orderGateway,
		service.DefaultCatalog(),
		limiter,
		cfg.Payment.GatewayTimeout,
		logger.Named("orders"),
	)
	verificationService := service.NewVerificationService(
		razorpayClient,
		paypalClient,
		entitlementRepo,
		paymentRepo,
		publisher,
		cfg.Payment.GatewayTimeout,
		logger.Named("verification"),
	)
	entitlementService := service.NewEntitlementService(entitlementRepo, paymentRepo, logger.Named("entitlements"))
	usageGuard := service.NewUsageGuard(entitlementRepo, journalRepo, cfg.Usage.FreeLimit, logger.Named("usage"))
	journalService := service.NewJournalService(journalRepo, usageGuard, logger.Named("journal"))

	paymentController := controller.NewPaymentController(orderService, verificationService, logger)
	webhookController := controller.NewWebhookController(verificationService, logger)
	entitlementController := controller.NewEntitlementController(entitlementService, logger)
	journalController := controller.NewJournalController(journalService, logger)

	resolver := auth.NewResolver(cfg.Auth.JWTSecret, cfg.Auth.CookieName, logger.Named("auth"))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(journalmw.RequestLogger(logger.Named("http")))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowCredentials: true,
	}))
	e.Use(middleware.ContextTimeout(cfg.Server.RequestTimeout))
	e.Use(metrics.Middleware())
	e.Use(resolver.Middleware())

	paymentController.RegisterRoutes(e)
	webhookController.RegisterRoutes(e)
	entitlementController.RegisterRoutes(e)
	journalController.RegisterRoutes(e)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	e.GET("/metrics", metrics.Handler())

	var cronScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewJobs(entitlementRepo, publisher, cfg.Scheduler.ReminderDays, logger.Named("jobs"))
		cronScheduler = scheduler.NewScheduler(jobs, scheduler.Config{
			LapseSpec:    cfg.Scheduler.LapseSpec,
			ReminderSpec: cfg.Scheduler.ReminderSpec,
		}, logger.Named("scheduler"))
		cronScheduler.Start()
	}

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cronScheduler != nil {
		select {
		case <-cronScheduler.Stop().Done():
		case <-ctx.Done():
			logger.Warn("Scheduled jobs still running at shutdown")
		}
	}
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func setupDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.DB.Driver, cfg.DB.GetDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// setupLimiter shares order limits through Redis when REDIS_ADDR is set and
// falls back to per-process buckets otherwise.
func setupLimiter(cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, *redis.Client) {
	if cfg.Redis.Addr == "" {
		logger.Info("Using in-process order rate limiter")
		return ratelimit.NewMemoryLimiter(cfg.Order.RateLimit, cfg.Order.RateWindow), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, order rate limiting fails open until it recovers",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	return ratelimit.NewRedisLimiter(client, "", cfg.Order.RateLimit, cfg.Order.RateWindow), client
}

func setupPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.RabbitMQ.URL == "" {
		return events.NewNoopPublisher(logger.Named("events"))
	}

	publisher, err := events.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger.Named("events"))
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ, events will be dropped", zap.Error(err))
		return events.NewNoopPublisher(logger.Named("events"))
	}
	return publisher
}
