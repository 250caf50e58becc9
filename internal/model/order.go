package model

import (
	"errors"
	"fmt"
	"strings"
)

type PurchaseType string

const (
	PurchaseSubscription PurchaseType = "subscription"
	PurchaseBook         PurchaseType = "book"
)

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

var (
	ErrUnknownPurchaseType = errors.New("unknown purchase type")
	ErrMissingItemID       = errors.New("item id is required")
	ErrUnknownBillingCycle = errors.New("unknown billing cycle")

	// ErrGatewayNotConfigured is returned by gateway adapters whose
	// credentials are absent.
	ErrGatewayNotConfigured = errors.New("payment gateway credentials are not configured")
)

// Intent is what the payer is buying. It is either a SubscriptionIntent or a
// BookIntent.
type Intent interface {
	PurchaseType() PurchaseType
	ItemID() string
	isIntent()
}

type SubscriptionIntent struct {
	PlanID PlanType
	Cycle  BillingCycle
}

func (SubscriptionIntent) PurchaseType() PurchaseType { return PurchaseSubscription }
func (i SubscriptionIntent) ItemID() string           { return string(i.PlanID) }
func (SubscriptionIntent) isIntent()                  {}

type BookIntent struct {
	BookID string
}

func (BookIntent) PurchaseType() PurchaseType { return PurchaseBook }
func (i BookIntent) ItemID() string           { return i.BookID }
func (BookIntent) isIntent()                  {}

// ParseBillingCycle accepts the client spellings of a billing cycle. An empty
// value means monthly.
func ParseBillingCycle(raw string) (BillingCycle, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "monthly", "month":
		return CycleMonthly, nil
	case "annual", "yearly", "year":
		return CycleAnnual, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownBillingCycle, raw)
	}
}

// ParseIntent resolves the loosely typed purchaseType/itemId pair sent by
// clients. An empty purchase type is a subscription.
func ParseIntent(purchaseType, itemID, cycle string) (Intent, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, ErrMissingItemID
	}

	switch PurchaseType(strings.ToLower(strings.TrimSpace(purchaseType))) {
	case "", PurchaseSubscription:
		c, err := ParseBillingCycle(cycle)
		if err != nil {
			return nil, err
		}
		return SubscriptionIntent{PlanID: PlanType(strings.ToLower(itemID)), Cycle: c}, nil
	case PurchaseBook:
		return BookIntent{BookID: itemID}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPurchaseType, purchaseType)
	}
}

// OrderRequest is the client's request to start a checkout.
type OrderRequest struct {
	Amount   float64
	Currency string
	Intent   Intent
}

// Correlation note keys attached to every gateway order.
const (
	NoteUserID       = "userId"
	NotePurchaseType = "purchaseType"
	NoteItemID       = "itemId"
	NoteBillingCycle = "billingCycle"
)

// GatewayOrderRequest is what the order service hands to a gateway adapter.
type GatewayOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the handle for an order held by the remote gateway.
type GatewayOrder struct {
	ID       string            `json:"id"`
	Gateway  Gateway           `json:"gateway"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Status   string            `json:"status,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
	KeyID    string            `json:"keyId,omitempty"`
}

// GatewayPayment is the subset of a gateway payment entity the service reads.
type GatewayPayment struct {
	ID      string
	OrderID string
	Status  string
	Method  string
	Amount  int64
}

// GatewayCapture is the result of confirming a token-based gateway order.
type GatewayCapture struct {
	OrderID   string
	CaptureID string
	Status    string
	Amount    int64
	Currency  string
	Notes     map[string]string
}

// IntentFromNotes rebuilds the purchase intent stored on a gateway order.
func IntentFromNotes(notes map[string]string) (Intent, error) {
	return ParseIntent(notes[NotePurchaseType], notes[NoteItemID], notes[NoteBillingCycle])
}

// NotesFor builds the correlation notes for an order placed by userID.
func NotesFor(userID string, intent Intent) map[string]string {
	notes := map[string]string{
		NoteUserID:       userID,
		NotePurchaseType: string(intent.PurchaseType()),
		NoteItemID:       intent.ItemID(),
	}
	if sub, ok := intent.(SubscriptionIntent); ok {
		notes[NoteBillingCycle] = string(sub.Cycle)
	}
	return notes
}
