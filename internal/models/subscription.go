package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription payment states.
const (
	SubscriptionPending   = "pending"
	SubscriptionPaid      = "paid"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// BranchSubscription is a branch's paid access period to the platform.
type BranchSubscription struct {
	ID            string          `db:"id" json:"id"`
	BranchID      string          `db:"branch_id" json:"branch_id"`
	PlanName      string          `db:"plan_name" json:"plan_name"`
	StartDate     time.Time       `db:"start_date" json:"start_date"`
	EndDate       time.Time       `db:"end_date" json:"end_date"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	AmountPaid    decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Expired reports whether the subscription ended before today.
func (s BranchSubscription) Expired(today time.Time) bool {
	return dateOnly(s.EndDate).Before(dateOnly(today))
}

// DaysRemaining counts whole days until the end date, 0 once expired.
func (s BranchSubscription) DaysRemaining(today time.Time) int {
	if s.Expired(today) {
		return 0
	}
	return int(dateOnly(s.EndDate).Sub(dateOnly(today)).Hours() / 24)
}

// SubscriptionStatus is the response of the subscription endpoint.
type SubscriptionStatus struct {
	BranchID      string              `json:"branch_id"`
	Active        bool                `json:"active"`
	DaysRemaining int                 `json:"days_remaining"`
	Subscription  *BranchSubscription `json:"subscription,omitempty"`
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
