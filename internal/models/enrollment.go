package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive   EnrollmentStatus = "ACTIVE"
	EnrollmentStatusInactive EnrollmentStatus = "INACTIVE"
	EnrollmentStatusArchived EnrollmentStatus = "ARCHIVED"
)

// Valid reports whether the status is known.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusInactive, EnrollmentStatusArchived:
		return true
	default:
		return false
	}
}

// Enrollment captures a student's membership in one group.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	GroupID   string           `db:"group_id" json:"group_id"`
	JoinedAt  time.Time        `db:"joined_at" json:"joined_at"`
	LeftAt    *time.Time       `db:"left_at" json:"left_at,omitempty"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with the group's pricing and branch.
type EnrollmentDetail struct {
	Enrollment
	StudentName    string              `db:"student_name" json:"student_name"`
	GroupName      string              `db:"group_name" json:"group_name"`
	BranchID       string              `db:"branch_id" json:"branch_id"`
	PricePerMonth  decimal.NullDecimal `db:"price_per_month" json:"price_per_month"`
	LessonsPerWeek *int                `db:"lessons_per_week" json:"lessons_per_week,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	GroupID   string
	BranchIDs []string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}

// EnrollRequest registers a student into a group.
type EnrollRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	GroupID   string     `json:"group_id" validate:"required"`
	JoinedAt  *time.Time `json:"joined_at"`
}

// WithdrawRequest closes an enrollment.
type WithdrawRequest struct {
	Status EnrollmentStatus `json:"status" validate:"omitempty,oneof=INACTIVE ARCHIVED"`
}
