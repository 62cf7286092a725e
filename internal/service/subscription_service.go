package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/billing"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type subscriptionRepository interface {
	FindLatest(ctx context.Context, branchID string) (*models.BranchSubscription, error)
	AnyActive(ctx context.Context, branchIDs []string, today time.Time) (bool, error)
}

// SubscriptionService answers whether a branch has paid platform access.
type SubscriptionService struct {
	repo    subscriptionRepository
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewSubscriptionService constructs SubscriptionService.
func NewSubscriptionService(repo subscriptionRepository, cache *CacheService, metrics *MetricsService, ttl time.Duration, loc *time.Location, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SubscriptionService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, loc: loc, logger: logger, now: time.Now}
}

func (s *SubscriptionService) today() time.Time {
	return billing.Today(s.now(), s.loc)
}

// HasActiveSubscription reports whether the branch has an active, paid, unexpired subscription.
func (s *SubscriptionService) HasActiveSubscription(ctx context.Context, branchID string) (bool, error) {
	var cached bool
	if s.cache.Get(ctx, subscriptionCacheKey(branchID), &cached) {
		return cached, nil
	}
	active, err := s.repo.AnyActive(ctx, []string{branchID}, s.today())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subscription")
	}
	s.cache.Set(ctx, subscriptionCacheKey(branchID), active, s.ttl)
	return active, nil
}

// HasAnyActive reports whether at least one of the branches is subscribed.
func (s *SubscriptionService) HasAnyActive(ctx context.Context, branchIDs []string) (bool, error) {
	for _, id := range branchIDs {
		active, err := s.HasActiveSubscription(ctx, id)
		if err != nil {
			return false, err
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// RecordBlocked counts a request rejected for lack of subscription.
func (s *SubscriptionService) RecordBlocked() {
	s.metrics.RecordSubscriptionBlock()
}

// Status returns the branch's latest subscription with the days left on it.
func (s *SubscriptionService) Status(ctx context.Context, branchID string) (*models.SubscriptionStatus, error) {
	status := &models.SubscriptionStatus{BranchID: branchID}
	sub, err := s.repo.FindLatest(ctx, branchID)
	if errors.Is(err, sql.ErrNoRows) {
		return status, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subscription")
	}
	today := s.today()
	status.Subscription = sub
	status.Active = sub.IsActive && sub.PaymentStatus == models.SubscriptionPaid && !sub.Expired(today)
	if status.Active {
		status.DaysRemaining = sub.DaysRemaining(today)
	}
	return status, nil
}
