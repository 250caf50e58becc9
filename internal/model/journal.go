package model

import (
	"database/sql"
	"time"
)

// Session identifies the caller of a request. It is resolved once per request
// and passed explicitly to every service call.
type Session struct {
	UserID string
}

type ResourceKind string

const (
	ResourceWatch ResourceKind = "watch"
	ResourceTrade ResourceKind = "trade"
)

const (
	ReasonSubscriptionActive = "subscription_active"
	ReasonWithinLimit        = "within_limit"
	ReasonLimitReached       = "LIMIT_REACHED"
)

// UsageDecision is the usage guard's answer for one creation attempt.
type UsageDecision struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason"`
	CurrentCount *int   `json:"currentCount,omitempty"`
	Limit        *int   `json:"limit,omitempty"`
}

type TradeSide string

const (
	SideLong  TradeSide = "long"
	SideShort TradeSide = "short"
)

type Trade struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"userId" db:"user_id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Side       TradeSide       `json:"side" db:"side"`
	Quantity   float64         `json:"quantity" db:"quantity"`
	EntryPrice float64         `json:"entryPrice" db:"entry_price"`
	ExitPrice  sql.NullFloat64 `json:"-" db:"exit_price"`
	Notes      string          `json:"notes" db:"notes"`
	TradedAt   time.Time       `json:"tradedAt" db:"traded_at"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

type WatchItem struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Notes     string    `json:"notes" db:"notes"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
