package model

import (
	"database/sql"
	"time"
)

type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanTrial   PlanType = "trial"
	PlanPro     PlanType = "pro"
	PlanPremium PlanType = "premium"
)

// IsTrial reports whether the plan identifier names a trial plan.
func (p PlanType) IsTrial() bool {
	return p == PlanTrial
}

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusInactive SubscriptionStatus = "inactive"
)

// Entitlement is the per-user settings row that records what the user may access.
type Entitlement struct {
	UserID             string             `json:"userId" db:"user_id"`
	PlanType           PlanType           `json:"planType" db:"plan_type"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus" db:"subscription_status"`
	SubscriptionStart  sql.NullTime       `json:"-" db:"subscription_start"`
	SubscriptionEnd    sql.NullTime       `json:"-" db:"subscription_end"`
	UpdatedAt          time.Time          `json:"updatedAt" db:"updated_at"`
}

// HasPaidAccess reports whether the row grants unlimited usage. The
// subscription end date is not consulted; lapsed rows are flipped to inactive
// by the scheduler.
func (e *Entitlement) HasPaidAccess() bool {
	if e == nil || e.PlanType == PlanFree || e.PlanType == "" {
		return false
	}
	return e.SubscriptionStatus == StatusActive || e.SubscriptionStatus == StatusTrialing
}

type Gateway string

const (
	GatewayRazorpay Gateway = "razorpay"
	GatewayPayPal   Gateway = "paypal"
)

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentRecord is an append-only ledger row written once per verified payment.
type PaymentRecord struct {
	ID               string        `json:"id" db:"id"`
	UserID           string        `json:"userId" db:"user_id"`
	Gateway          Gateway       `json:"gateway" db:"gateway"`
	GatewayPaymentID string        `json:"gatewayPaymentId" db:"gateway_payment_id"`
	GatewayOrderID   string        `json:"gatewayOrderId" db:"gateway_order_id"`
	Amount           int64         `json:"amount" db:"amount"`
	Currency         string        `json:"currency" db:"currency"`
	PlanType         string        `json:"planType" db:"plan_type"`
	PurchaseType     PurchaseType  `json:"purchaseType" db:"purchase_type"`
	ItemID           string        `json:"itemId" db:"item_id"`
	Status           PaymentStatus `json:"status" db:"status"`
	Method           string        `json:"method" db:"method"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
}
