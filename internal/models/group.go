package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group is a class of students sharing a teacher, a schedule and a monthly price.
type Group struct {
	ID             string              `db:"id" json:"id"`
	BranchID       string              `db:"branch_id" json:"branch_id"`
	Name           string              `db:"name" json:"name"`
	TeacherID      *string             `db:"teacher_id" json:"teacher_id,omitempty"`
	PricePerMonth  decimal.NullDecimal `db:"price_per_month" json:"price_per_month"`
	LessonsPerWeek *int                `db:"lessons_per_week" json:"lessons_per_week,omitempty"`
	MaxStudents    int                 `db:"max_students" json:"max_students"`
	Active         bool                `db:"active" json:"active"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// DefaultMaxStudents is the capacity of a group created without one.
const DefaultMaxStudents = 15

// IsFull reports whether active enrollments have reached the group's capacity.
func (g Group) IsFull(activeEnrollments int) bool {
	return g.MaxStudents > 0 && activeEnrollments >= g.MaxStudents
}

// GroupFilter defines filter criteria for listing groups.
type GroupFilter struct {
	BranchID  string
	BranchIDs []string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
}

// GroupPricing is the billing view of a group.
type GroupPricing struct {
	GroupID        string              `db:"id" json:"group_id"`
	MonthlyPrice   decimal.NullDecimal `db:"price_per_month" json:"monthly_price"`
	LessonsPerWeek *int                `db:"lessons_per_week" json:"lessons_per_week,omitempty"`
}

// UpsertGroupRequest is the payload for creating or updating a group.
type UpsertGroupRequest struct {
	BranchID       string           `json:"branch_id" validate:"required"`
	Name           string           `json:"name" validate:"required,min=1,max=120"`
	TeacherID      *string          `json:"teacher_id"`
	PricePerMonth  *decimal.Decimal `json:"price_per_month"`
	LessonsPerWeek *int             `json:"lessons_per_week" validate:"omitempty,min=1,max=14"`
	MaxStudents    *int             `json:"max_students" validate:"omitempty,min=1"`
	Active         *bool            `json:"active"`
}
