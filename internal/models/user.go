package models

import "time"

// UserRole represents the closed set of roles known to the platform.
type UserRole string

const (
	RoleOwner   UserRole = "OWNER"
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleParent  UserRole = "PARENT"
)

// Valid reports whether the role belongs to the enum.
func (r UserRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	default:
		return false
	}
}

// BranchScoped reports whether the role is limited to the branches it is assigned to.
func (r UserRole) BranchScoped() bool {
	return r != RoleOwner
}

// Capability names an action a role may perform.
type Capability string

const (
	CapPaymentsWrite    Capability = "payments:write"
	CapPaymentsRead     Capability = "payments:read"
	CapDebtsRead        Capability = "debts:read"
	CapDebtsReconcile   Capability = "debts:reconcile"
	CapAttendanceWrite  Capability = "attendance:write"
	CapEnrollmentsWrite Capability = "enrollments:write"
	CapGroupsWrite      Capability = "groups:write"
	CapStudentsWrite    Capability = "students:write"
	CapReportsRead      Capability = "reports:read"
)

var roleCapabilities = map[UserRole][]Capability{
	RoleOwner: {
		CapPaymentsWrite, CapPaymentsRead, CapDebtsRead, CapDebtsReconcile, CapAttendanceWrite,
		CapEnrollmentsWrite, CapGroupsWrite, CapStudentsWrite, CapReportsRead,
	},
	RoleAdmin: {
		CapPaymentsWrite, CapPaymentsRead, CapDebtsRead, CapDebtsReconcile, CapAttendanceWrite,
		CapEnrollmentsWrite, CapGroupsWrite, CapStudentsWrite, CapReportsRead,
	},
	RoleTeacher: {CapAttendanceWrite, CapDebtsRead},
	RoleStudent: {CapDebtsRead},
	RoleParent:  {CapDebtsRead},
}

// CapabilitiesFor resolves the capability table entry for a role. Unknown roles get none.
func CapabilitiesFor(role UserRole) []Capability {
	caps := roleCapabilities[role]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Phone        string     `db:"phone" json:"phone"`
	Email        *string    `db:"email" json:"email,omitempty"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page inputs the same way every list endpoint does.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
