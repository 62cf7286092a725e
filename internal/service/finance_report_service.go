package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/billing"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/export"
)

type financeRepository interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	CreateIncome(ctx context.Context, income *models.AdditionalIncome) error
	Totals(ctx context.Context, branchID string, from, to time.Time) (*models.FinanceTotals, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FinanceReportService builds branch income statements and records expenses and extra income.
type FinanceReportService struct {
	repo      financeRepository
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewFinanceReportService constructs FinanceReportService.
func NewFinanceReportService(repo financeRepository, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *FinanceReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FinanceReportService{repo: repo, validator: validate, logger: logger, loc: loc, now: func() time.Time { return time.Now().UTC() }}
}

// Build sums the branch's money movements between from and to inclusive.
func (s *FinanceReportService) Build(ctx context.Context, branchID string, from, to time.Time) (*models.FinanceReport, error) {
	if branchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "branch_id is required")
	}
	from, to = billing.Date(from), billing.Date(to)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	totals, err := s.repo.Totals(ctx, branchID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate finances")
	}
	income := totals.StudentPayments.Add(totals.AdditionalIncomes)
	expenses := totals.SalaryExpenses.Add(totals.OtherExpenses)
	return &models.FinanceReport{
		BranchID:          branchID,
		From:              from,
		To:                to,
		StudentPayments:   totals.StudentPayments,
		AdditionalIncomes: totals.AdditionalIncomes,
		TotalIncome:       income,
		SalaryExpenses:    totals.SalaryExpenses,
		OtherExpenses:     totals.OtherExpenses,
		TotalExpenses:     expenses,
		NetProfit:         income.Sub(expenses),
		GeneratedAt:       s.now(),
	}, nil
}

// ExportReport renders a report as CSV or PDF.
func (s *FinanceReportService) ExportReport(report *models.FinanceReport, format export.Format) (*ExportFile, error) {
	data := export.Dataset{
		Title: fmt.Sprintf("Finance report %s - %s", report.From.Format("2006-01-02"), report.To.Format("2006-01-02")),
		Columns: []export.Column{
			{Key: "item", Label: "Item"},
			{Key: "amount", Label: "Amount", Numeric: true},
		},
		Rows: []map[string]string{
			{"item": "Student payments", "amount": report.StudentPayments.StringFixed(2)},
			{"item": "Additional incomes", "amount": report.AdditionalIncomes.StringFixed(2)},
			{"item": "Salary expenses", "amount": report.SalaryExpenses.StringFixed(2)},
			{"item": "Other expenses", "amount": report.OtherExpenses.StringFixed(2)},
		},
		Totals: [][2]string{
			{"Total income", report.TotalIncome.StringFixed(2)},
			{"Total expenses", report.TotalExpenses.StringFixed(2)},
			{"Net profit", report.NetProfit.StringFixed(2)},
		},
	}
	name := fmt.Sprintf("finance_%s_%s_%s", report.BranchID, report.From.Format("20060102"), report.To.Format("20060102"))
	return s.render(format, name, data)
}

// ExportDebtors renders a branch's debtors list as CSV or PDF.
func (s *FinanceReportService) ExportDebtors(branchID string, debtors []models.Debtor, format export.Format) (*ExportFile, error) {
	data := export.Dataset{
		Title: "Debtors",
		Columns: []export.Column{
			{Key: "student", Label: "Student"},
			{Key: "phone", Label: "Phone"},
			{Key: "debt", Label: "Debt", Numeric: true},
			{Key: "last_payment", Label: "Last payment"},
		},
	}
	var total int64
	for _, d := range debtors {
		row := map[string]string{"student": d.FullName, "debt": fmt.Sprintf("%d", d.TotalDebt)}
		if d.Phone != nil {
			row["phone"] = *d.Phone
		}
		if d.LastPaymentDate != nil {
			row["last_payment"] = d.LastPaymentDate.Format("2006-01-02")
		}
		data.Rows = append(data.Rows, row)
		total += d.TotalDebt
	}
	data.Totals = [][2]string{{"Total debt", fmt.Sprintf("%d", total)}}
	return s.render(format, "debtors_"+branchID, data)
}

func (s *FinanceReportService) render(format export.Format, name string, data export.Dataset) (*ExportFile, error) {
	out, err := export.Render(format, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{Filename: name + "." + string(format), ContentType: format.ContentType(), Data: out}, nil
}

// RecordExpense stores a branch expense.
func (s *FinanceReportService) RecordExpense(ctx context.Context, req models.CreateExpenseRequest, createdBy string) (*models.Expense, error) {
	if !req.Amount.IsPositive() {
		return nil, appErrors.ErrInvalidAmount
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid expense payload")
	}
	expense := &models.Expense{
		ID:            uuid.NewString(),
		BranchID:      req.BranchID,
		Category:      req.Category,
		IsSalary:      req.IsSalary,
		Amount:        req.Amount,
		Method:        defaultMethod(req.Method),
		Date:          s.dateOrToday(req.Date),
		Description:   req.Description,
		Recipient:     req.Recipient,
		ReceiptNumber: req.ReceiptNumber,
		CreatedBy:     createdBy,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record expense")
	}
	return expense, nil
}

// RecordIncome stores additional branch income.
func (s *FinanceReportService) RecordIncome(ctx context.Context, req models.CreateIncomeRequest, createdBy string) (*models.AdditionalIncome, error) {
	if !req.Amount.IsPositive() {
		return nil, appErrors.ErrInvalidAmount
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid income payload")
	}
	income := &models.AdditionalIncome{
		ID:            uuid.NewString(),
		BranchID:      req.BranchID,
		Title:         req.Title,
		Amount:        req.Amount,
		Method:        defaultMethod(req.Method),
		Date:          s.dateOrToday(req.Date),
		Description:   req.Description,
		ReceiptNumber: req.ReceiptNumber,
		CreatedBy:     createdBy,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateIncome(ctx, income); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record income")
	}
	return income, nil
}

func (s *FinanceReportService) dateOrToday(d *time.Time) time.Time {
	if d != nil {
		return billing.Date(*d)
	}
	return billing.Today(s.now(), s.loc)
}

func defaultMethod(m models.PaymentMethod) models.PaymentMethod {
	if m == "" {
		return models.PaymentMethodCash
	}
	return m
}
