package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_orders_total",
			Help: "Gateway order creation attempts by outcome",
		},
		[]string{"gateway", "outcome"},
	)

	paymentsVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_payment_verifications_total",
			Help: "Payment verification attempts by outcome",
		},
		[]string{"gateway", "outcome"},
	)

	usageDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_usage_decisions_total",
			Help: "Usage guard decisions by resource kind and reason",
		},
		[]string{"kind", "reason"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_subscriptions_expired_total",
			Help: "Subscriptions flipped to inactive by the lapse sweep",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(paymentsVerifiedTotal)
	prometheus.MustRegister(usageDecisionsTotal)
	prometheus.MustRegister(subscriptionsExpiredTotal)
}

func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := strconv.Itoa(c.Response().Status)

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func RecordOrder(gateway, outcome string) {
	ordersCreatedTotal.WithLabelValues(gateway, outcome).Inc()
}

func RecordVerification(gateway, outcome string) {
	paymentsVerifiedTotal.WithLabelValues(gateway, outcome).Inc()
}

func RecordUsageDecision(kind, reason string) {
	usageDecisionsTotal.WithLabelValues(kind, reason).Inc()
}

func RecordExpired(n int) {
	subscriptionsExpiredTotal.Add(float64(n))
}
