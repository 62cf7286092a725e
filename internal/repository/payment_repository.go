package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const paymentColumns = `id, enrollment_id, student_id, branch_id, amount, payment_date, method, receipt_number, note, recorded_by, inactive_enrollment, created_at`

// PaymentRepository appends and reads tuition payments. There is no update or delete.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create appends a payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (` + paymentColumns + `)
        VALUES (:id, :enrollment_id, :student_id, :branch_id, :amount, :payment_date, :method, :receipt_number, :note, :recorded_by, :inactive_enrollment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// SumByEnrollment totals every payment ever recorded for the enrollment.
func (r *PaymentRepository) SumByEnrollment(ctx context.Context, enrollmentID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE enrollment_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

// LastPaymentDate returns the latest payment date across the student's enrollments.
func (r *PaymentRepository) LastPaymentDate(ctx context.Context, studentID string) (*time.Time, error) {
	const query = `SELECT MAX(payment_date) FROM payments WHERE student_id = $1`
	var last *time.Time
	if err := r.db.GetContext(ctx, &last, query, studentID); err != nil {
		return nil, fmt.Errorf("last payment date: %w", err)
	}
	return last, nil
}

// List returns payments newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.BranchIDs != nil {
		conditions = append(conditions, fmt.Sprintf("branch_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.BranchIDs))
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("payment_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("payment_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM payments%s ORDER BY payment_date DESC, created_at DESC LIMIT %d OFFSET %d", paymentColumns, clause, limit, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}
