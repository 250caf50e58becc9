package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"journal-billing/internal/model"
	"journal-billing/internal/repository"
)

const (
	trialPeriodDays   = 7
	monthlyPeriodDays = 30
	annualPeriodDays  = 365
)

// SubscriptionWindow returns the window a purchase of intent grants when
// bought at now. A new purchase replaces any earlier window.
func SubscriptionWindow(intent model.SubscriptionIntent, now time.Time) (start, end time.Time) {
	start = now.UTC()
	switch {
	case intent.PlanID.IsTrial():
		end = start.AddDate(0, 0, trialPeriodDays)
	case intent.Cycle == model.CycleAnnual:
		end = start.AddDate(0, 0, annualPeriodDays)
	default:
		end = start.AddDate(0, 0, monthlyPeriodDays)
	}
	return start, end
}

// EntitlementView is the API shape of an entitlement row.
type EntitlementView struct {
	UserID             string                   `json:"userId"`
	PlanType           model.PlanType           `json:"planType"`
	SubscriptionStatus model.SubscriptionStatus `json:"subscriptionStatus"`
	SubscriptionStart  *time.Time               `json:"subscriptionStart,omitempty"`
	SubscriptionEnd    *time.Time               `json:"subscriptionEnd,omitempty"`
	HasPaidAccess      bool                     `json:"hasPaidAccess"`
}

func NewEntitlementView(e *model.Entitlement) EntitlementView {
	return EntitlementView{
		UserID:             e.UserID,
		PlanType:           e.PlanType,
		SubscriptionStatus: e.SubscriptionStatus,
		SubscriptionStart:  fromNullTime(e.SubscriptionStart),
		SubscriptionEnd:    fromNullTime(e.SubscriptionEnd),
		HasPaidAccess:      e.HasPaidAccess(),
	}
}

type EntitlementService interface {
	Get(ctx context.Context, session *model.Session) (*model.Entitlement, error)
	ActivateFree(ctx context.Context, session *model.Session) (*model.Entitlement, error)
	Payments(ctx context.Context, session *model.Session) ([]model.PaymentRecord, error)
}

type DefaultEntitlementService struct {
	entitlementRepo repository.EntitlementRepository
	paymentRepo     repository.PaymentRepository
	now             func() time.Time
	logger          *zap.Logger
}

func NewEntitlementService(
	entitlementRepo repository.EntitlementRepository,
	paymentRepo repository.PaymentRepository,
	logger *zap.Logger,
) EntitlementService {
	return &DefaultEntitlementService{
		entitlementRepo: entitlementRepo,
		paymentRepo:     paymentRepo,
		now:             time.Now,
		logger:          logger,
	}
}

// Get returns the caller's entitlement. Users without a row are reported as
// free and inactive.
func (s *DefaultEntitlementService) Get(ctx context.Context, session *model.Session) (*model.Entitlement, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	entitlement, err := s.entitlementRepo.GetByUserID(ctx, session.UserID)
	if err != nil {
		s.logger.Error("Failed to read entitlement", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	if entitlement == nil {
		return &model.Entitlement{
			UserID:             session.UserID,
			PlanType:           model.PlanFree,
			SubscriptionStatus: model.StatusInactive,
		}, nil
	}
	return entitlement, nil
}

// ActivateFree is the explicit free-tier grant. It refuses to downgrade a
// paid plan whose window is still open.
func (s *DefaultEntitlementService) ActivateFree(ctx context.Context, session *model.Session) (*model.Entitlement, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	now := s.now().UTC()
	existing, err := s.entitlementRepo.GetByUserID(ctx, session.UserID)
	if err != nil {
		s.logger.Error("Failed to read entitlement", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	if existing.HasPaidAccess() && (!existing.SubscriptionEnd.Valid || existing.SubscriptionEnd.Time.After(now)) {
		return nil, ErrPaidPlanActive
	}

	entitlement := &model.Entitlement{
		UserID:             session.UserID,
		PlanType:           model.PlanFree,
		SubscriptionStatus: model.StatusActive,
		SubscriptionStart:  toNullTime(now),
	}
	if err := s.entitlementRepo.Upsert(ctx, entitlement); err != nil {
		s.logger.Error("Failed to activate free plan", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}

	s.logger.Info("Free plan activated", zap.String("user_id", session.UserID))
	return entitlement, nil
}

// Payments returns the caller's ledger, newest first.
func (s *DefaultEntitlementService) Payments(ctx context.Context, session *model.Session) ([]model.PaymentRecord, error) {
	if session == nil || session.UserID == "" {
		return nil, ErrUnauthorized
	}

	payments, err := s.paymentRepo.ListByUserID(ctx, session.UserID)
	if err != nil {
		s.logger.Error("Failed to list payments", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	if payments == nil {
		payments = []model.PaymentRecord{}
	}
	return payments, nil
}
