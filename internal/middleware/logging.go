package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"journal-billing/internal/auth"
)

// RequestLogger logs one line per request once the handler has written its
// response.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Int("status", c.Response().Status),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.String("ip", c.RealIP()),
				zap.Duration("latency", time.Since(start)),
				zap.String("user-agent", req.UserAgent()),
			}
			if session := auth.SessionFrom(c); session != nil {
				fields = append(fields, zap.String("user_id", session.UserID))
			}

			if c.Response().Status >= 500 {
				logger.Error("HTTP Request", fields...)
			} else {
				logger.Info("HTTP Request", fields...)
			}
			return nil
		}
	}
}
