package models

import (
	"time"

	"github.com/lib/pq"
)

// DebtSummary is the per-student aggregate rewritten by every reconciliation.
// SkippedEnrollments lists active enrollments left out of the last run for missing pricing.
type DebtSummary struct {
	StudentID              string         `db:"student_id" json:"student_id"`
	TotalDebt              int64          `db:"total_debt" json:"total_debt"`
	Balance                int64          `db:"balance" json:"balance"`
	CurrentPeriodRemaining int64          `db:"current_period_remaining" json:"current_period_remaining"`
	LastPaymentDate        *time.Time     `db:"last_payment_date" json:"last_payment_date,omitempty"`
	Version                int64          `db:"version" json:"version"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
	SkippedEnrollments     pq.StringArray `db:"skipped_enrollments" json:"skipped_enrollments,omitempty"`
}

// DebtTrigger records what caused a reconciliation.
type DebtTrigger string

const (
	DebtTriggerPayment DebtTrigger = "payment"
	DebtTriggerManual  DebtTrigger = "manual"
)

// DebtSnapshot is an append-only record of one reconciliation's inputs and outputs.
type DebtSnapshot struct {
	ID                     string      `db:"id" json:"id"`
	StudentID              string      `db:"student_id" json:"student_id"`
	ComputedAt             time.Time   `db:"computed_at" json:"computed_at"`
	Trigger                DebtTrigger `db:"trigger" json:"trigger"`
	InputsHash             string      `db:"inputs_hash" json:"inputs_hash"`
	TotalRequired          int64       `db:"total_required" json:"total_required"`
	TotalPaid              int64       `db:"total_paid" json:"total_paid"`
	TotalDebt              int64       `db:"total_debt" json:"total_debt"`
	Balance                int64       `db:"balance" json:"balance"`
	CurrentPeriodRemaining int64       `db:"current_period_remaining" json:"current_period_remaining"`
	Version                int64       `db:"version" json:"version"`
}

// Debtor is a row of the branch debtors list.
type Debtor struct {
	StudentID       string     `db:"student_id" json:"student_id"`
	FullName        string     `db:"full_name" json:"full_name"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	TotalDebt       int64      `db:"total_debt" json:"total_debt"`
	LastPaymentDate *time.Time `db:"last_payment_date" json:"last_payment_date,omitempty"`
}
