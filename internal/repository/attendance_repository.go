package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// AttendanceRepository stores one attendance mark per (enrollment, date).
type AttendanceRepository struct {
	db DBTX
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db DBTX) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts a mark or replaces the existing one for the same date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, enrollment_id, date, status, note, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (enrollment_id, date)
DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id, enrollment_id, date, status, note, marked_by, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.EnrollmentID, record.Date, record.Status, record.Note, record.MarkedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// ListByEnrollment returns marks in the inclusive date range, oldest first.
func (r *AttendanceRepository) ListByEnrollment(ctx context.Context, enrollmentID string, from, to time.Time) ([]models.Attendance, error) {
	const query = `SELECT id, enrollment_id, date, status, note, marked_by, created_at, updated_at
FROM attendance WHERE enrollment_id = $1 AND date >= $2 AND date <= $3 ORDER BY date`
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, enrollmentID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// CountPresent counts present marks in the inclusive date range.
func (r *AttendanceRepository) CountPresent(ctx context.Context, enrollmentID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance WHERE enrollment_id = $1 AND status = $2 AND date >= $3 AND date <= $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, enrollmentID, models.AttendanceStatusPresent, from, to); err != nil {
		return 0, fmt.Errorf("count present lessons: %w", err)
	}
	return count, nil
}
