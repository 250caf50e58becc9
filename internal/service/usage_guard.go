package service

import (
	"context"

	"go.uber.org/zap"

	"journal-billing/internal/metrics"
	"journal-billing/internal/model"
	"journal-billing/internal/repository"
)

// DefaultFreeLimit is the free-tier ceiling per resource kind.
const DefaultFreeLimit = 10

// UsageGuard decides whether a user may create one more item of a kind.
//
// The check holds no lock and reserves nothing: two concurrent creations can
// both be allowed and leave a free user one over the ceiling. The guard also
// trusts subscription_status as written and does not compare
// subscription_end with the clock; lapsed rows are flipped to inactive by the
// scheduler's sweep.
type UsageGuard interface {
	Check(ctx context.Context, userID string, kind model.ResourceKind) model.UsageDecision
}

type DefaultUsageGuard struct {
	entitlementRepo repository.EntitlementRepository
	journalRepo     repository.JournalRepository
	limit           int
	logger          *zap.Logger
}

func NewUsageGuard(
	entitlementRepo repository.EntitlementRepository,
	journalRepo repository.JournalRepository,
	limit int,
	logger *zap.Logger,
) UsageGuard {
	if limit <= 0 {
		limit = DefaultFreeLimit
	}
	return &DefaultUsageGuard{
		entitlementRepo: entitlementRepo,
		journalRepo:     journalRepo,
		limit:           limit,
		logger:          logger,
	}
}

// Check fails closed: if either the entitlement or the count cannot be read,
// the answer is LIMIT_REACHED.
func (g *DefaultUsageGuard) Check(ctx context.Context, userID string, kind model.ResourceKind) model.UsageDecision {
	decision := g.check(ctx, userID, kind)
	metrics.RecordUsageDecision(string(kind), decision.Reason)
	return decision
}

func (g *DefaultUsageGuard) check(ctx context.Context, userID string, kind model.ResourceKind) model.UsageDecision {
	entitlement, err := g.entitlementRepo.GetByUserID(ctx, userID)
	if err != nil {
		g.logger.Error("Usage guard could not read entitlement, denying",
			zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
		return model.UsageDecision{Allowed: false, Reason: model.ReasonLimitReached}
	}

	if entitlement.HasPaidAccess() {
		return model.UsageDecision{Allowed: true, Reason: model.ReasonSubscriptionActive}
	}

	count, err := g.journalRepo.CountByUser(ctx, userID, kind)
	if err != nil {
		g.logger.Error("Usage guard could not count items, denying",
			zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
		return model.UsageDecision{Allowed: false, Reason: model.ReasonLimitReached}
	}

	limit := g.limit
	if count >= limit {
		return model.UsageDecision{
			Allowed:      false,
			Reason:       model.ReasonLimitReached,
			CurrentCount: &count,
			Limit:        &limit,
		}
	}
	return model.UsageDecision{
		Allowed:      true,
		Reason:       model.ReasonWithinLimit,
		CurrentCount: &count,
		Limit:        &limit,
	}
}
