package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// FinanceRepository stores branch expenses and extra incomes and aggregates them with payments.
type FinanceRepository struct {
	db DBTX
}

// NewFinanceRepository constructs the repository.
func NewFinanceRepository(db DBTX) *FinanceRepository {
	return &FinanceRepository{db: db}
}

// CreateExpense inserts an expense.
func (r *FinanceRepository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	expense.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO expenses (id, branch_id, category, is_salary, amount, method, date, description, recipient, receipt_number, created_by, created_at)
        VALUES (:id, :branch_id, :category, :is_salary, :amount, :method, :date, :description, :recipient, :receipt_number, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, expense); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// CreateIncome inserts an additional income.
func (r *FinanceRepository) CreateIncome(ctx context.Context, income *models.AdditionalIncome) error {
	if income.ID == "" {
		income.ID = uuid.NewString()
	}
	income.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO additional_incomes (id, branch_id, title, amount, method, date, description, receipt_number, created_by, created_at)
        VALUES (:id, :branch_id, :title, :amount, :method, :date, :description, :receipt_number, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, income); err != nil {
		return fmt.Errorf("create income: %w", err)
	}
	return nil
}

// Totals sums a branch's payments, incomes and expenses in the inclusive date range.
func (r *FinanceRepository) Totals(ctx context.Context, branchID string, from, to time.Time) (*models.FinanceTotals, error) {
	const query = `SELECT
        (SELECT COALESCE(SUM(amount), 0) FROM payments WHERE branch_id = $1 AND payment_date BETWEEN $2 AND $3) AS student_payments,
        (SELECT COALESCE(SUM(amount), 0) FROM additional_incomes WHERE branch_id = $1 AND date BETWEEN $2 AND $3) AS additional_incomes,
        (SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE branch_id = $1 AND date BETWEEN $2 AND $3 AND is_salary) AS salary_expenses,
        (SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE branch_id = $1 AND date BETWEEN $2 AND $3 AND NOT is_salary) AS other_expenses`
	var totals models.FinanceTotals
	if err := r.db.GetContext(ctx, &totals, query, branchID, from, to); err != nil {
		return nil, fmt.Errorf("finance totals: %w", err)
	}
	return &totals, nil
}
