package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"journal-billing/internal/model"
)

func TestUsageGuard_FreeUserAtLimit(t *testing.T) {
	entitlements := newStubEntitlementRepo()
	journal := newStubJournalRepo()
	journal.counts[model.ResourceTrade] = 10
	guard := NewUsageGuard(entitlements, journal, DefaultFreeLimit, zaptest.NewLogger(t))

	decision := guard.Check(context.Background(), "u1", model.ResourceTrade)

	assert.False(t, decision.Allowed)
	assert.Equal(t, model.ReasonLimitReached, decision.Reason)
	require.NotNil(t, decision.CurrentCount)
	require.NotNil(t, decision.Limit)
	assert.Equal(t, 10, *decision.CurrentCount)
	assert.Equal(t, 10, *decision.Limit)
}

func TestUsageGuard_FreeUserBelowLimit(t *testing.T) {
	journal := newStubJournalRepo()
	journal.counts[model.ResourceWatch] = 9
	guard := NewUsageGuard(newStubEntitlementRepo(), journal, DefaultFreeLimit, zaptest.NewLogger(t))

	decision := guard.Check(context.Background(), "u1", model.ResourceWatch)

	assert.True(t, decision.Allowed)
	assert.Equal(t, model.ReasonWithinLimit, decision.Reason)
	assert.Equal(t, intPtr(9), decision.CurrentCount)
	assert.Equal(t, intPtr(10), decision.Limit)
}

func TestUsageGuard_CountsPerKind(t *testing.T) {
	journal := newStubJournalRepo()
	journal.counts[model.ResourceTrade] = 10
	journal.counts[model.ResourceWatch] = 2
	guard := NewUsageGuard(newStubEntitlementRepo(), journal, DefaultFreeLimit, zaptest.NewLogger(t))

	assert.False(t, guard.Check(context.Background(), "u1", model.ResourceTrade).Allowed)
	assert.True(t, guard.Check(context.Background(), "u1", model.ResourceWatch).Allowed)
}

func TestUsageGuard_PaidPlansSkipCounting(t *testing.T) {
	tests := []struct {
		name   string
		plan   model.PlanType
		status model.SubscriptionStatus
	}{
		{name: "pro active", plan: model.PlanPro, status: model.StatusActive},
		{name: "premium active", plan: model.PlanPremium, status: model.StatusActive},
		{name: "trial trialing", plan: model.PlanTrial, status: model.StatusTrialing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entitlements := newStubEntitlementRepo()
			entitlements.rows["u1"] = &model.Entitlement{UserID: "u1", PlanType: tt.plan, SubscriptionStatus: tt.status}
			journal := newStubJournalRepo()
			journal.counts[model.ResourceTrade] = 1000000
			guard := NewUsageGuard(entitlements, journal, DefaultFreeLimit, zaptest.NewLogger(t))

			decision := guard.Check(context.Background(), "u1", model.ResourceTrade)

			assert.True(t, decision.Allowed)
			assert.Equal(t, model.ReasonSubscriptionActive, decision.Reason)
			assert.Nil(t, decision.CurrentCount)
			assert.Nil(t, decision.Limit)
			assert.Zero(t, journal.countCalls)
		})
	}
}

func TestUsageGuard_InactivePaidPlanIsLimited(t *testing.T) {
	entitlements := newStubEntitlementRepo()
	entitlements.rows["u1"] = &model.Entitlement{UserID: "u1", PlanType: model.PlanPro, SubscriptionStatus: model.StatusInactive}
	journal := newStubJournalRepo()
	journal.counts[model.ResourceTrade] = 10
	guard := NewUsageGuard(entitlements, journal, DefaultFreeLimit, zaptest.NewLogger(t))

	decision := guard.Check(context.Background(), "u1", model.ResourceTrade)
	assert.False(t, decision.Allowed)
	assert.Equal(t, model.ReasonLimitReached, decision.Reason)
}

func TestUsageGuard_FreeActiveIsLimited(t *testing.T) {
	entitlements := newStubEntitlementRepo()
	entitlements.rows["u1"] = &model.Entitlement{UserID: "u1", PlanType: model.PlanFree, SubscriptionStatus: model.StatusActive}
	journal := newStubJournalRepo()
	journal.counts[model.ResourceTrade] = 10
	guard := NewUsageGuard(entitlements, journal, DefaultFreeLimit, zaptest.NewLogger(t))

	assert.False(t, guard.Check(context.Background(), "u1", model.ResourceTrade).Allowed)
}

func TestUsageGuard_FailsClosed(t *testing.T) {
	t.Run("entitlement read fails", func(t *testing.T) {
		entitlements := newStubEntitlementRepo()
		entitlements.getErr = errors.New("connection refused")
		journal := newStubJournalRepo()
		guard := NewUsageGuard(entitlements, journal, DefaultFreeLimit, zaptest.NewLogger(t))

		decision := guard.Check(context.Background(), "u1", model.ResourceTrade)
		assert.False(t, decision.Allowed)
		assert.Equal(t, model.ReasonLimitReached, decision.Reason)
		assert.Nil(t, decision.CurrentCount)
		assert.Zero(t, journal.countCalls)
	})

	t.Run("count fails", func(t *testing.T) {
		journal := newStubJournalRepo()
		journal.countErr = errors.New("timeout")
		guard := NewUsageGuard(newStubEntitlementRepo(), journal, DefaultFreeLimit, zaptest.NewLogger(t))

		decision := guard.Check(context.Background(), "u1", model.ResourceTrade)
		assert.False(t, decision.Allowed)
		assert.Equal(t, model.ReasonLimitReached, decision.Reason)
		assert.Nil(t, decision.Limit)
	})
}

func TestUsageGuard_NonPositiveLimitUsesDefault(t *testing.T) {
	journal := newStubJournalRepo()
	journal.counts[model.ResourceTrade] = 9
	guard := NewUsageGuard(newStubEntitlementRepo(), journal, 0, zaptest.NewLogger(t))

	decision := guard.Check(context.Background(), "u1", model.ResourceTrade)
	assert.True(t, decision.Allowed)
	assert.Equal(t, intPtr(DefaultFreeLimit), decision.Limit)
}
