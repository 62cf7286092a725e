package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is money spent by a branch. Salary expenses are reported separately.
type Expense struct {
	ID            string          `db:"id" json:"id"`
	BranchID      string          `db:"branch_id" json:"branch_id"`
	Category      string          `db:"category" json:"category"`
	IsSalary      bool            `db:"is_salary" json:"is_salary"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        PaymentMethod   `db:"method" json:"method"`
	Date          time.Time       `db:"date" json:"date"`
	Description   *string         `db:"description" json:"description,omitempty"`
	Recipient     *string         `db:"recipient" json:"recipient,omitempty"`
	ReceiptNumber *string         `db:"receipt_number" json:"receipt_number,omitempty"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// AdditionalIncome is branch income outside tuition.
type AdditionalIncome struct {
	ID            string          `db:"id" json:"id"`
	BranchID      string          `db:"branch_id" json:"branch_id"`
	Title         string          `db:"title" json:"title"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        PaymentMethod   `db:"method" json:"method"`
	Date          time.Time       `db:"date" json:"date"`
	Description   *string         `db:"description" json:"description,omitempty"`
	ReceiptNumber *string         `db:"receipt_number" json:"receipt_number,omitempty"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// CreateExpenseRequest records an expense.
type CreateExpenseRequest struct {
	BranchID      string          `json:"branch_id" validate:"required"`
	Category      string          `json:"category" validate:"required,max=100"`
	IsSalary      bool            `json:"is_salary"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method" validate:"omitempty,oneof=cash card transfer other"`
	Date          *time.Time      `json:"date"`
	Description   *string         `json:"description"`
	Recipient     *string         `json:"recipient" validate:"omitempty,max=200"`
	ReceiptNumber *string         `json:"receipt_number" validate:"omitempty,max=50"`
}

// CreateIncomeRequest records an additional income.
type CreateIncomeRequest struct {
	BranchID      string          `json:"branch_id" validate:"required"`
	Title         string          `json:"title" validate:"required,max=255"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method" validate:"omitempty,oneof=cash card transfer other"`
	Date          *time.Time      `json:"date"`
	Description   *string         `json:"description"`
	ReceiptNumber *string         `json:"receipt_number" validate:"omitempty,max=50"`
}

// FinanceTotals are the raw sums a report is built from.
type FinanceTotals struct {
	StudentPayments   decimal.Decimal `db:"student_payments"`
	AdditionalIncomes decimal.Decimal `db:"additional_incomes"`
	SalaryExpenses    decimal.Decimal `db:"salary_expenses"`
	OtherExpenses     decimal.Decimal `db:"other_expenses"`
}

// FinanceReport summarises a branch's income and expenses over a date range.
type FinanceReport struct {
	BranchID          string          `json:"branch_id"`
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	StudentPayments   decimal.Decimal `json:"student_payments"`
	AdditionalIncomes decimal.Decimal `json:"additional_incomes"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	SalaryExpenses    decimal.Decimal `json:"salary_expenses"`
	OtherExpenses     decimal.Decimal `json:"other_expenses"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	NetProfit         decimal.Decimal `json:"net_profit"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
