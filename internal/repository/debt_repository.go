package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// ErrVersionConflict reports that the debt summary changed since it was read.
var ErrVersionConflict = errors.New("debt summary version conflict")

const debtColumns = `student_id, total_debt, balance, current_period_remaining, last_payment_date, version, created_at, updated_at, skipped_enrollments`

// DebtRepository stores per-student debt summaries and their snapshot history.
type DebtRepository struct {
	db DBTX
}

// NewDebtRepository constructs the repository.
func NewDebtRepository(db DBTX) *DebtRepository {
	return &DebtRepository{db: db}
}

// Get returns the student's summary or sql.ErrNoRows when none was written yet.
func (r *DebtRepository) Get(ctx context.Context, studentID string) (*models.DebtSummary, error) {
	query := `SELECT ` + debtColumns + ` FROM debt_summaries WHERE student_id = $1`
	var summary models.DebtSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get debt summary: %w", err)
	}
	return &summary, nil
}

// Save replaces the summary if its stored version still equals summary.Version,
// creating it when summary.Version is zero. On success summary.Version is advanced.
func (r *DebtRepository) Save(ctx context.Context, summary *models.DebtSummary) error {
	now := time.Now().UTC()
	skipped := summary.SkippedEnrollments
	if skipped == nil {
		skipped = pq.StringArray{}
	}
	var (
		res sql.Result
		err error
	)
	if summary.Version == 0 {
		const insert = `INSERT INTO debt_summaries (` + debtColumns + `)
        VALUES ($1, $2, $3, $4, $5, 1, $6, $6, $7)
        ON CONFLICT (student_id) DO NOTHING`
		res, err = r.db.ExecContext(ctx, insert, summary.StudentID, summary.TotalDebt, summary.Balance,
			summary.CurrentPeriodRemaining, summary.LastPaymentDate, now, skipped)
	} else {
		const update = `UPDATE debt_summaries SET total_debt = $2, balance = $3, current_period_remaining = $4,
        last_payment_date = $5, version = version + 1, updated_at = $6, skipped_enrollments = $8
        WHERE student_id = $1 AND version = $7`
		res, err = r.db.ExecContext(ctx, update, summary.StudentID, summary.TotalDebt, summary.Balance,
			summary.CurrentPeriodRemaining, summary.LastPaymentDate, now, summary.Version, skipped)
	}
	if err != nil {
		return fmt.Errorf("save debt summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save debt summary rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	if summary.Version == 0 {
		summary.CreatedAt = now
	}
	summary.Version++
	summary.UpdatedAt = now
	return nil
}

// AppendSnapshot records one reconciliation in the history table.
func (r *DebtRepository) AppendSnapshot(ctx context.Context, snapshot *models.DebtSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.ComputedAt.IsZero() {
		snapshot.ComputedAt = time.Now().UTC()
	}
	const query = `INSERT INTO debt_snapshots (id, student_id, computed_at, trigger, inputs_hash, total_required, total_paid,
        total_debt, balance, current_period_remaining, version)
        VALUES (:id, :student_id, :computed_at, :trigger, :inputs_hash, :total_required, :total_paid,
        :total_debt, :balance, :current_period_remaining, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("append debt snapshot: %w", err)
	}
	return nil
}

// History returns the newest snapshots first.
func (r *DebtRepository) History(ctx context.Context, studentID string, limit int) ([]models.DebtSnapshot, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, student_id, computed_at, trigger, inputs_hash, total_required, total_paid, total_debt,
        balance, current_period_remaining, version
        FROM debt_snapshots WHERE student_id = $1 ORDER BY computed_at DESC LIMIT $2`
	var snapshots []models.DebtSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list debt snapshots: %w", err)
	}
	return snapshots, nil
}

// ListDebtors returns the branch's students with a positive debt, largest first.
func (r *DebtRepository) ListDebtors(ctx context.Context, branchID string) ([]models.Debtor, error) {
	const query = `SELECT s.id AS student_id, s.full_name, s.phone, d.total_debt, d.last_payment_date
        FROM debt_summaries d
        JOIN students s ON s.id = d.student_id
        WHERE s.branch_id = $1 AND d.total_debt > 0
        ORDER BY d.total_debt DESC, s.full_name`
	var debtors []models.Debtor
	if err := r.db.SelectContext(ctx, &debtors, query, branchID); err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	return debtors, nil
}
