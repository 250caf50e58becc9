package service

import (
	"errors"
	"fmt"

	"journal-billing/internal/model"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrConfigurationMissing = errors.New("payment gateway is not configured")
	ErrGatewayError         = errors.New("payment gateway request failed")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrStoreError           = errors.New("entitlement store error")
	ErrJournalStoreError    = errors.New("journal store error")

	ErrInvalidOrder        = errors.New("invalid order request")
	ErrPriceMismatch       = errors.New("amount does not match the listed price")
	ErrTooManyOrders       = errors.New("too many order attempts")
	ErrIntentMismatch      = errors.New("payment does not match the order")
	ErrPaymentNotCaptured  = errors.New("payment has not been captured")
	ErrInvalidWebhook      = errors.New("invalid webhook payload")
	ErrPaidPlanActive      = errors.New("a paid plan is still active")
	ErrInvalidJournalEntry = errors.New("invalid journal entry")
)

// UsageLimitError is returned when the usage guard denies a creation.
type UsageLimitError struct {
	Kind     model.ResourceKind
	Decision model.UsageDecision
}

func (e *UsageLimitError) Error() string {
	if e.Decision.CurrentCount != nil && e.Decision.Limit != nil {
		return fmt.Sprintf("usage limit reached for %s: %d/%d", e.Kind, *e.Decision.CurrentCount, *e.Decision.Limit)
	}
	return fmt.Sprintf("usage limit reached for %s", e.Kind)
}
