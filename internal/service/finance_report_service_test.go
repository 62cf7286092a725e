package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/export"
)

type mockFinanceRepo struct {
	totals   models.FinanceTotals
	expenses []models.Expense
	incomes  []models.AdditionalIncome
	from, to time.Time
}

func (m *mockFinanceRepo) CreateExpense(ctx context.Context, expense *models.Expense) error {
	m.expenses = append(m.expenses, *expense)
	return nil
}

func (m *mockFinanceRepo) CreateIncome(ctx context.Context, income *models.AdditionalIncome) error {
	m.incomes = append(m.incomes, *income)
	return nil
}

func (m *mockFinanceRepo) Totals(ctx context.Context, branchID string, from, to time.Time) (*models.FinanceTotals, error) {
	m.from, m.to = from, to
	t := m.totals
	return &t, nil
}

func newTestFinanceService(repo *mockFinanceRepo) *FinanceReportService {
	svc := NewFinanceReportService(repo, nil, nil, time.UTC)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestFinanceReportBuild(t *testing.T) {
	repo := &mockFinanceRepo{totals: models.FinanceTotals{
		StudentPayments:   decimal.NewFromInt(5000000),
		AdditionalIncomes: decimal.NewFromInt(250000),
		SalaryExpenses:    decimal.NewFromInt(2000000),
		OtherExpenses:     decimal.RequireFromString("350000.50"),
	}}
	svc := newTestFinanceService(repo)

	report, err := svc.Build(context.Background(), "b1", time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "5250000", report.TotalIncome.String())
	assert.Equal(t, "2350000.5", report.TotalExpenses.String())
	assert.Equal(t, "2899999.5", report.NetProfit.String())
	assert.Equal(t, 0, repo.from.Hour())

	file, err := svc.ExportReport(report, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Contains(t, string(file.Data), "Net profit,2899999.50")

	pdf, err := svc.ExportReport(report, export.FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Data, []byte("%PDF")))
}

func TestFinanceReportBuildRejectsInvertedRange(t *testing.T) {
	svc := newTestFinanceService(&mockFinanceRepo{})

	_, err := svc.Build(context.Background(), "b1", fixedNow, fixedNow.AddDate(0, 0, -1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFinanceRecordExpenseAndIncome(t *testing.T) {
	repo := &mockFinanceRepo{}
	svc := newTestFinanceService(repo)
	ctx := context.Background()

	_, err := svc.RecordExpense(ctx, models.CreateExpenseRequest{BranchID: "b1", Category: "rent", Amount: decimal.Zero}, "admin")
	assert.Equal(t, appErrors.ErrInvalidAmount.Code, appErrors.FromError(err).Code)

	expense, err := svc.RecordExpense(ctx, models.CreateExpenseRequest{BranchID: "b1", Category: "salary", IsSalary: true, Amount: decimal.NewFromInt(1500000)}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCash, expense.Method)
	assert.True(t, expense.Date.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)))

	income, err := svc.RecordIncome(ctx, models.CreateIncomeRequest{BranchID: "b1", Title: "Book sales", Amount: decimal.NewFromInt(90000), Method: models.PaymentMethodCard}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCard, income.Method)
	assert.Len(t, repo.expenses, 1)
	assert.Len(t, repo.incomes, 1)
}

func TestFinanceExportDebtors(t *testing.T) {
	svc := newTestFinanceService(&mockFinanceRepo{})
	phone := "+998901234567"
	paid := time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC)

	file, err := svc.ExportDebtors("b1", []models.Debtor{
		{StudentID: "s1", FullName: "Aziza", Phone: &phone, TotalDebt: 300000, LastPaymentDate: &paid},
		{StudentID: "s2", FullName: "Bekzod", TotalDebt: 150000},
	}, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "debtors_b1.csv", file.Filename)
	body := string(file.Data)
	assert.Contains(t, body, "Aziza,+998901234567,300000,2024-02-20")
	assert.Contains(t, body, "Total debt,,,450000")
}
