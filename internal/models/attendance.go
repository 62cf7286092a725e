package models

import "time"

// AttendanceStatus is the presence mark for one lesson.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance is one row per (enrollment, calendar date).
type Attendance struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	Date         time.Time        `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Note         *string          `db:"note" json:"note,omitempty"`
	MarkedBy     *string          `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// MarkAttendanceRequest marks one lesson for an enrollment.
type MarkAttendanceRequest struct {
	Date   time.Time        `json:"date" validate:"required"`
	Status AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
	Note   *string          `json:"note" validate:"omitempty,max=255"`
}
