package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.group_id, e.joined_at, e.left_at, e.status, e.created_at,
        s.full_name AS student_name, g.name AS group_name, g.branch_id, g.price_per_month, g.lessons_per_week
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN study_groups g ON g.id = e.group_id`

const uniqueViolation = "23505"

var (
	// ErrDuplicateActiveEnrollment reports that the student already has an ACTIVE enrollment in the group.
	ErrDuplicateActiveEnrollment = errors.New("active enrollment already exists")
	// ErrEnrollmentNotActive reports a status change on an enrollment that already left ACTIVE.
	ErrEnrollmentNotActive = errors.New("enrollment is not active")
)

// IsUniqueViolation reports whether err carries a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db DBTX
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("e.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.BranchIDs != nil {
		conditions = append(conditions, fmt.Sprintf("g.branch_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.BranchIDs))
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY e.joined_at DESC, e.id LIMIT %d OFFSET %d", enrollmentDetailSelect, clause, limit, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM enrollments e JOIN study_groups g ON g.id = e.group_id` + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment with its group pricing.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.id = $1"
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &detail, nil
}

// ListActiveByStudent returns the student's ACTIVE enrollments joined with group pricing.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.student_id = $1 AND e.status = $2 ORDER BY e.joined_at, e.id"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// ExistsActive checks whether the (student, group) pair already has an ACTIVE enrollment.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, groupID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, groupID, models.EnrollmentStatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.JoinedAt.IsZero() {
		enrollment.JoinedAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.CreatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, group_id, joined_at, left_at, status, created_at)
        VALUES (:id, :student_id, :group_id, :joined_at, :left_at, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateActiveEnrollment
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// CountActiveByGroup returns the number of ACTIVE enrollments in a group.
func (r *EnrollmentRepository) CountActiveByGroup(ctx context.Context, groupID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE group_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// UpdateStatus moves an ACTIVE enrollment out of ACTIVE. Rows are never deleted.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, leftAt, models.EnrollmentStatusActive)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if affected == 0 {
		return ErrEnrollmentNotActive
	}
	return nil
}
