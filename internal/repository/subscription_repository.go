package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// SubscriptionRepository reads branch subscriptions.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository constructs the repository.
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindLatest returns the branch's subscription with the furthest end date.
func (r *SubscriptionRepository) FindLatest(ctx context.Context, branchID string) (*models.BranchSubscription, error) {
	const query = `SELECT bs.id, bs.branch_id, p.name AS plan_name, bs.start_date, bs.end_date, bs.payment_status,
        bs.amount_paid, bs.is_active, bs.created_at
        FROM branch_subscriptions bs
        JOIN subscription_plans p ON p.id = bs.plan_id
        WHERE bs.branch_id = $1
        ORDER BY bs.end_date DESC, bs.created_at DESC LIMIT 1`
	var sub models.BranchSubscription
	if err := r.db.GetContext(ctx, &sub, query, branchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find branch subscription: %w", err)
	}
	return &sub, nil
}

// AnyActive reports whether at least one of the branches holds a paid, active, unexpired subscription.
func (r *SubscriptionRepository) AnyActive(ctx context.Context, branchIDs []string, today time.Time) (bool, error) {
	if len(branchIDs) == 0 {
		return false, nil
	}
	const query = `SELECT EXISTS (
        SELECT 1 FROM branch_subscriptions
        WHERE branch_id = ANY($1) AND is_active = TRUE AND payment_status = $2 AND end_date >= $3)`
	var active bool
	if err := r.db.GetContext(ctx, &active, query, pq.Array(branchIDs), models.SubscriptionPaid, today); err != nil {
		return false, fmt.Errorf("check active subscription: %w", err)
	}
	return active, nil
}
