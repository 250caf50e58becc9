package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journal-billing/internal/model"
)

func TestCatalog_Check(t *testing.T) {
	c := DefaultCatalog()
	pro := model.SubscriptionIntent{PlanID: model.PlanPro, Cycle: model.CycleMonthly}

	assert.NoError(t, c.Check(pro, "inr", 99900))
	assert.ErrorIs(t, c.Check(pro, "INR", 99800), ErrPriceMismatch)
	assert.ErrorIs(t, c.Check(pro, "GBP", 99900), ErrInvalidOrder)
	assert.ErrorIs(t, c.Check(model.BookIntent{BookID: "unknown"}, "INR", 1), ErrInvalidOrder)
	assert.ErrorIs(t, c.Check(model.SubscriptionIntent{PlanID: model.PlanTrial, Cycle: model.CycleAnnual}, "INR", 9900), ErrInvalidOrder)

	price, ok := c.Price(model.BookIntent{BookID: "price-action-playbook"}, "usd")
	require.True(t, ok)
	assert.Equal(t, int64(899), price)
}

func TestCatalog_SetPlanPriceOverrides(t *testing.T) {
	c := NewCatalog()
	intent := model.SubscriptionIntent{PlanID: model.PlanPro, Cycle: model.CycleAnnual}

	_, ok := c.Price(intent, "EUR")
	assert.False(t, ok)

	c.SetPlanPrice(model.PlanPro, model.CycleAnnual, "eur", 11999)
	assert.NoError(t, c.Check(intent, "EUR", 11999))
}
