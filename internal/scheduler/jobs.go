package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"journal-billing/internal/events"
	"journal-billing/internal/metrics"
	"journal-billing/internal/repository"
)

const jobTimeout = 2 * time.Minute

// Jobs holds the periodic entitlement maintenance tasks.
type Jobs struct {
	entitlementRepo repository.EntitlementRepository
	publisher       events.Publisher
	reminderWindow  time.Duration
	now             func() time.Time
	logger          *zap.Logger
}

func NewJobs(
	entitlementRepo repository.EntitlementRepository,
	publisher events.Publisher,
	reminderDays int,
	logger *zap.Logger,
) *Jobs {
	if reminderDays <= 0 {
		reminderDays = 3
	}
	return &Jobs{
		entitlementRepo: entitlementRepo,
		publisher:       publisher,
		reminderWindow:  time.Duration(reminderDays) * 24 * time.Hour,
		now:             time.Now,
		logger:          logger,
	}
}

// ExpireLapsedSubscriptions marks paid rows whose window has closed as
// inactive, so the usage guard sees them as free again.
func (j *Jobs) ExpireLapsedSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := j.now().UTC()
	userIDs, err := j.entitlementRepo.ExpireLapsed(ctx, now)
	if err != nil {
		j.logger.Error("Lapse sweep failed", zap.Error(err))
		return
	}
	if len(userIDs) == 0 {
		j.logger.Debug("Lapse sweep found nothing to expire")
		return
	}

	metrics.RecordExpired(len(userIDs))
	j.logger.Info("Expired lapsed subscriptions", zap.Int("count", len(userIDs)))

	for _, userID := range userIDs {
		err := j.publisher.Publish(ctx, events.SubscriptionExpired, events.SubscriptionExpiredEvent{
			UserID:    userID,
			ExpiredAt: now,
		})
		if err != nil {
			j.logger.Warn("Failed to publish expiry event", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// SendRenewalReminders announces paid plans that end within the reminder
// window. Delivery of the actual reminder belongs to the consumer.
func (j *Jobs) SendRenewalReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := j.now().UTC()
	ending, err := j.entitlementRepo.ListEndingBetween(ctx, now, now.Add(j.reminderWindow))
	if err != nil {
		j.logger.Error("Renewal reminder query failed", zap.Error(err))
		return
	}

	sent := 0
	for _, e := range ending {
		if !e.SubscriptionEnd.Valid {
			continue
		}
		err := j.publisher.Publish(ctx, events.RenewalDue, events.RenewalDueEvent{
			UserID:          e.UserID,
			PlanType:        string(e.PlanType),
			SubscriptionEnd: e.SubscriptionEnd.Time,
		})
		if err != nil {
			j.logger.Warn("Failed to publish renewal reminder", zap.String("user_id", e.UserID), zap.Error(err))
			continue
		}
		sent++
	}
	j.logger.Info("Renewal reminders published", zap.Int("count", sent))
}
