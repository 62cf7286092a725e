package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/export"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, role models.UserRole, branches ...string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:       "user-1",
		Role:         role,
		Capabilities: models.CapabilitiesFor(role),
		BranchIDs:    branches,
	})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type stubStudents struct {
	student *models.Student
	err     error
}

func (s *stubStudents) Get(ctx context.Context, id string) (*models.Student, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.student, nil
}

type stubEnrollments struct {
	detail *models.EnrollmentDetail
	err    error
}

func (s *stubEnrollments) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

type paymentServiceMock struct {
	receipt *models.PaymentReceipt
	err     error
	got     models.RecordPaymentRequest
	calls   int
}

func (m *paymentServiceMock) RecordPayment(ctx context.Context, req models.RecordPaymentRequest) (*models.PaymentReceipt, error) {
	m.calls++
	m.got = req
	return m.receipt, m.err
}

func (m *paymentServiceMock) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	return []models.Payment{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func TestPaymentHandlerRecord(t *testing.T) {
	svc := &paymentServiceMock{receipt: &models.PaymentReceipt{
		Payment: models.Payment{ID: "pay-1", Amount: 200000, InactiveEnrollment: true},
		Debt:    models.DebtSummary{StudentID: "stu-1", TotalDebt: 400000},
	}}
	h := NewPaymentHandler(svc, &stubEnrollments{detail: &models.EnrollmentDetail{BranchID: "br-1"}})

	payload, _ := json.Marshal(map[string]interface{}{"enrollment_id": "enr-1", "amount": 200000})
	c, w := newGinContext(http.MethodPost, "/payments", payload)
	withClaims(c, models.RoleAdmin, "br-1")

	h.Record(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-1", svc.got.RecordedBy)
	body := decodeEnvelope(t, w)
	meta, ok := body["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, meta["inactive_enrollment"])
}

func TestPaymentHandlerRejectsNonPositiveAmount(t *testing.T) {
	svc := &paymentServiceMock{}
	h := NewPaymentHandler(svc, &stubEnrollments{detail: &models.EnrollmentDetail{BranchID: "br-1"}})

	payload, _ := json.Marshal(map[string]interface{}{"enrollment_id": "enr-1", "amount": 0})
	c, w := newGinContext(http.MethodPost, "/payments", payload)
	withClaims(c, models.RoleAdmin, "br-1")

	h.Record(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.calls)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_AMOUNT", body["error"].(map[string]interface{})["code"])
}

func TestPaymentHandlerForeignBranch(t *testing.T) {
	svc := &paymentServiceMock{}
	h := NewPaymentHandler(svc, &stubEnrollments{detail: &models.EnrollmentDetail{BranchID: "br-2"}})

	payload, _ := json.Marshal(map[string]interface{}{"enrollment_id": "enr-1", "amount": 1000})
	c, w := newGinContext(http.MethodPost, "/payments", payload)
	withClaims(c, models.RoleAdmin, "br-1")

	h.Record(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, svc.calls)
}

func TestPaymentHandlerUnknownEnrollment(t *testing.T) {
	h := NewPaymentHandler(&paymentServiceMock{}, &stubEnrollments{err: appErrors.ErrEnrollmentNotFound})

	payload, _ := json.Marshal(map[string]interface{}{"enrollment_id": "missing", "amount": 1000})
	c, w := newGinContext(http.MethodPost, "/payments", payload)
	withClaims(c, models.RoleOwner)

	h.Record(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

type debtServiceMock struct {
	summary *models.DebtSummary
	debtors []models.Debtor
	err     error
}

func (m *debtServiceMock) GetSummary(ctx context.Context, studentID string) (*models.DebtSummary, error) {
	return m.summary, m.err
}

func (m *debtServiceMock) History(ctx context.Context, studentID string, limit int) ([]models.DebtSnapshot, error) {
	return []models.DebtSnapshot{{StudentID: studentID}}, m.err
}

func (m *debtServiceMock) Reconcile(ctx context.Context, studentID string, actor service.Actor) (*models.DebtSummary, error) {
	return m.summary, m.err
}

func (m *debtServiceMock) ListDebtors(ctx context.Context, branchID string) ([]models.Debtor, error) {
	return m.debtors, m.err
}

type debtorExporterMock struct {
	format export.Format
}

func (m *debtorExporterMock) ExportDebtors(branchID string, debtors []models.Debtor, format export.Format) (*service.ExportFile, error) {
	m.format = format
	return &service.ExportFile{Filename: "debtors.csv", ContentType: format.ContentType(), Data: []byte("a,b\n")}, nil
}

func TestDebtHandlerSummary(t *testing.T) {
	svc := &debtServiceMock{summary: &models.DebtSummary{StudentID: "stu-1", TotalDebt: 600000}}
	h := NewDebtHandler(svc, &stubStudents{student: &models.Student{ID: "stu-1", BranchID: "br-1"}}, &debtorExporterMock{})

	c, w := newGinContext(http.MethodGet, "/students/stu-1/debt", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	withClaims(c, models.RoleTeacher, "br-1")

	h.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 600000, data["total_debt"])
}

func TestDebtHandlerSummaryOutsideBranch(t *testing.T) {
	svc := &debtServiceMock{summary: &models.DebtSummary{StudentID: "stu-1"}}
	h := NewDebtHandler(svc, &stubStudents{student: &models.Student{ID: "stu-1", BranchID: "br-9"}}, &debtorExporterMock{})

	c, w := newGinContext(http.MethodGet, "/students/stu-1/debt", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	withClaims(c, models.RoleParent, "br-1")

	h.Summary(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDebtHandlerReconcileConflict(t *testing.T) {
	svc := &debtServiceMock{err: appErrors.ErrConcurrentUpdate}
	h := NewDebtHandler(svc, &stubStudents{student: &models.Student{ID: "stu-1", BranchID: "br-1"}}, &debtorExporterMock{})

	c, w := newGinContext(http.MethodPost, "/students/stu-1/debt/reconcile", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	withClaims(c, models.RoleAdmin, "br-1")

	h.Reconcile(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDebtHandlerDebtorsExport(t *testing.T) {
	exporter := &debtorExporterMock{}
	svc := &debtServiceMock{debtors: []models.Debtor{{StudentID: "stu-1", FullName: "Ali", TotalDebt: 1000}}}
	h := NewDebtHandler(svc, &stubStudents{}, exporter)

	c, w := newGinContext(http.MethodGet, "/branches/br-1/debtors?format=csv", nil)
	c.Params = gin.Params{{Key: "id", Value: "br-1"}}
	withClaims(c, models.RoleOwner)

	h.Debtors(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatCSV, exporter.format)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "debtors.csv")
}

func TestDebtHandlerDebtorsRejectsUnknownFormat(t *testing.T) {
	h := NewDebtHandler(&debtServiceMock{}, &stubStudents{}, &debtorExporterMock{})

	c, w := newGinContext(http.MethodGet, "/branches/br-1/debtors?format=xlsx", nil)
	c.Params = gin.Params{{Key: "id", Value: "br-1"}}
	withClaims(c, models.RoleOwner)

	h.Debtors(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

type studentServiceMock struct {
	filter models.StudentFilter
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.filter = filter
	return []models.Student{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, BranchID: "br-1"}, nil
}

func (m *studentServiceMock) Create(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: "stu-new", BranchID: req.BranchID, FullName: req.FullName}, nil
}

func TestStudentHandlerListScopesBranches(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	c, w := newGinContext(http.MethodGet, "/students", nil)
	withClaims(c, models.RoleAdmin, "br-1", "br-2")

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"br-1", "br-2"}, svc.filter.BranchIDs)
}

func TestStudentHandlerListOwnerSeesAll(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	c, w := newGinContext(http.MethodGet, "/students", nil)
	withClaims(c, models.RoleOwner)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.filter.BranchIDs)
}

func TestStudentHandlerListWithoutBranches(t *testing.T) {
	h := NewStudentHandler(&studentServiceMock{})

	c, w := newGinContext(http.MethodGet, "/students", nil)
	withClaims(c, models.RoleAdmin)

	h.List(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestStudentHandlerCreateForeignBranch(t *testing.T) {
	h := NewStudentHandler(&studentServiceMock{})

	payload, _ := json.Marshal(models.CreateStudentRequest{BranchID: "br-2", FullName: "Ali Valiyev"})
	c, w := newGinContext(http.MethodPost, "/students", payload)
	withClaims(c, models.RoleAdmin, "br-1")

	h.Create(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

type financeServiceMock struct {
	from, to time.Time
}

func (m *financeServiceMock) Build(ctx context.Context, branchID string, from, to time.Time) (*models.FinanceReport, error) {
	m.from, m.to = from, to
	return &models.FinanceReport{BranchID: branchID, From: from, To: to}, nil
}

func (m *financeServiceMock) ExportReport(report *models.FinanceReport, format export.Format) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "finance.pdf", ContentType: format.ContentType(), Data: []byte("%PDF")}, nil
}

func (m *financeServiceMock) RecordExpense(ctx context.Context, req models.CreateExpenseRequest, createdBy string) (*models.Expense, error) {
	return &models.Expense{ID: "exp-1", BranchID: req.BranchID, CreatedBy: createdBy}, nil
}

func (m *financeServiceMock) RecordIncome(ctx context.Context, req models.CreateIncomeRequest, createdBy string) (*models.AdditionalIncome, error) {
	return nil, errors.New("unused")
}

func TestFinanceHandlerReport(t *testing.T) {
	svc := &financeServiceMock{}
	h := NewFinanceHandler(svc, true)

	c, w := newGinContext(http.MethodGet, "/finance/report?branch_id=br-1&from=2024-01-01&to=2024-01-31&format=pdf", nil)
	withClaims(c, models.RoleOwner)

	h.Report(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, 31, svc.to.Day())
}

func TestFinanceHandlerReportRequiresRange(t *testing.T) {
	h := NewFinanceHandler(&financeServiceMock{}, true)

	c, w := newGinContext(http.MethodGet, "/finance/report?branch_id=br-1&from=2024-01-01", nil)
	withClaims(c, models.RoleOwner)

	h.Report(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinanceHandlerDisabled(t *testing.T) {
	h := NewFinanceHandler(&financeServiceMock{}, false)

	c, w := newGinContext(http.MethodGet, "/finance/report?branch_id=br-1", nil)
	withClaims(c, models.RoleOwner)

	h.Report(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})

	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
}
