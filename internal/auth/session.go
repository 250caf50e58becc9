package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"journal-billing/internal/model"
)

const sessionContextKey = "session"

var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// Resolver turns the session token issued by the auth provider into a
// model.Session. Tokens are HS256 JWTs whose "sub" claim is the user id.
type Resolver struct {
	secret     []byte
	cookieName string
	logger     *zap.Logger
}

func NewResolver(secret, cookieName string, logger *zap.Logger) *Resolver {
	return &Resolver{
		secret:     []byte(secret),
		cookieName: cookieName,
		logger:     logger,
	}
}

// Resolve reads the session cookie, falling back to a Bearer Authorization
// header.
func (r *Resolver) Resolve(c echo.Context) (*model.Session, error) {
	token := ""
	if cookie, err := c.Cookie(r.cookieName); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" {
		header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			token = strings.TrimSpace(header[7:])
		}
	}
	if token == "" {
		return nil, ErrNoToken
	}
	return r.Parse(token)
}

func (r *Resolver) Parse(tokenString string) (*model.Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &model.Session{UserID: userID}, nil
}

// Middleware attaches the resolved session to the echo context. Requests
// without a valid token pass through with no session; the services decide
// whether that is an error.
func (r *Resolver) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := r.Resolve(c)
			if err != nil {
				if !errors.Is(err, ErrNoToken) {
					r.logger.Debug("Rejected session token",
						zap.String("path", c.Path()), zap.Error(err))
				}
			} else {
				c.Set(sessionContextKey, session)
			}
			return next(c)
		}
	}
}

// SessionFrom returns the session set by Middleware, or nil.
func SessionFrom(c echo.Context) *model.Session {
	session, _ := c.Get(sessionContextKey).(*model.Session)
	return session
}

// IssueToken signs a session token for userID. The auth provider issues
// tokens in production; this is used by tooling and tests.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}
