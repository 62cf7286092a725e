package models

import "time"

// Student represents a learner registered in a branch.
type Student struct {
	ID          string     `db:"id" json:"id"`
	BranchID    string     `db:"branch_id" json:"branch_id"`
	FullName    string     `db:"full_name" json:"full_name"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	ParentPhone *string    `db:"parent_phone" json:"parent_phone,omitempty"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	BranchID  string
	BranchIDs []string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	BranchID    string     `json:"branch_id" validate:"required"`
	FullName    string     `json:"full_name" validate:"required,min=2,max=150"`
	Phone       *string    `json:"phone" validate:"omitempty,max=20"`
	ParentPhone *string    `json:"parent_phone" validate:"omitempty,max=20"`
	BirthDate   *time.Time `json:"birth_date"`
}
