package service

import (
	"fmt"
	"strings"

	"journal-billing/internal/model"
)

// Catalog is the server-held price list. Prices are in minor units keyed by
// upper-case currency code.
type Catalog struct {
	plans map[model.PlanType]map[model.BillingCycle]map[string]int64
	books map[string]map[string]int64
}

func NewCatalog() *Catalog {
	return &Catalog{
		plans: map[model.PlanType]map[model.BillingCycle]map[string]int64{},
		books: map[string]map[string]int64{},
	}
}

// DefaultCatalog carries the published prices of the journal's plans and
// books.
func DefaultCatalog() *Catalog {
	c := NewCatalog()

	c.SetPlanPrice(model.PlanTrial, model.CycleMonthly, "INR", 9900)
	c.SetPlanPrice(model.PlanTrial, model.CycleMonthly, "USD", 199)

	c.SetPlanPrice(model.PlanPro, model.CycleMonthly, "INR", 99900)
	c.SetPlanPrice(model.PlanPro, model.CycleAnnual, "INR", 999900)
	c.SetPlanPrice(model.PlanPro, model.CycleMonthly, "USD", 1299)
	c.SetPlanPrice(model.PlanPro, model.CycleAnnual, "USD", 12999)

	c.SetPlanPrice(model.PlanPremium, model.CycleMonthly, "INR", 199900)
	c.SetPlanPrice(model.PlanPremium, model.CycleAnnual, "INR", 1999900)
	c.SetPlanPrice(model.PlanPremium, model.CycleMonthly, "USD", 2499)
	c.SetPlanPrice(model.PlanPremium, model.CycleAnnual, "USD", 24999)

	c.SetBookPrice("trading-psychology", "INR", 49900)
	c.SetBookPrice("trading-psychology", "USD", 699)
	c.SetBookPrice("price-action-playbook", "INR", 69900)
	c.SetBookPrice("price-action-playbook", "USD", 899)

	return c
}

func (c *Catalog) SetPlanPrice(plan model.PlanType, cycle model.BillingCycle, currency string, minor int64) {
	if c.plans[plan] == nil {
		c.plans[plan] = map[model.BillingCycle]map[string]int64{}
	}
	if c.plans[plan][cycle] == nil {
		c.plans[plan][cycle] = map[string]int64{}
	}
	c.plans[plan][cycle][strings.ToUpper(currency)] = minor
}

func (c *Catalog) SetBookPrice(bookID, currency string, minor int64) {
	if c.books[bookID] == nil {
		c.books[bookID] = map[string]int64{}
	}
	c.books[bookID][strings.ToUpper(currency)] = minor
}

// Price returns the listed price for intent in currency.
func (c *Catalog) Price(intent model.Intent, currency string) (int64, bool) {
	currency = strings.ToUpper(currency)

	switch in := intent.(type) {
	case model.SubscriptionIntent:
		price, ok := c.plans[in.PlanID][in.Cycle][currency]
		return price, ok
	case model.BookIntent:
		price, ok := c.books[in.BookID][currency]
		return price, ok
	default:
		return 0, false
	}
}

// Check rejects an amount that differs from the listed price. Unlisted items
// are rejected as invalid orders.
func (c *Catalog) Check(intent model.Intent, currency string, amountMinor int64) error {
	price, ok := c.Price(intent, currency)
	if !ok {
		return fmt.Errorf("%w: %s %q is not sold in %s", ErrInvalidOrder, intent.PurchaseType(), intent.ItemID(), currency)
	}
	if price != amountMinor {
		return fmt.Errorf("%w: expected %d, got %d", ErrPriceMismatch, price, amountMinor)
	}
	return nil
}
