package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/export"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type financeService interface {
	Build(ctx context.Context, branchID string, from, to time.Time) (*models.FinanceReport, error)
	ExportReport(report *models.FinanceReport, format export.Format) (*service.ExportFile, error)
	RecordExpense(ctx context.Context, req models.CreateExpenseRequest, createdBy string) (*models.Expense, error)
	RecordIncome(ctx context.Context, req models.CreateIncomeRequest, createdBy string) (*models.AdditionalIncome, error)
}

// FinanceHandler serves branch finance reports and bookkeeping entries.
type FinanceHandler struct {
	service financeService
	enabled bool
}

// NewFinanceHandler constructs FinanceHandler. Disabled handlers answer 404 on reports.
func NewFinanceHandler(svc financeService, enabled bool) *FinanceHandler {
	return &FinanceHandler{service: svc, enabled: enabled}
}

// Report godoc
// @Summary Branch finance report
// @Tags Finance
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param branch_id query string true "Branch ID"
// @Param from query string true "YYYY-MM-DD"
// @Param to query string true "YYYY-MM-DD"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /finance/report [get]
func (h *FinanceHandler) Report(c *gin.Context) {
	if !h.enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "finance reports are disabled"))
		return
	}
	branchID := c.Query("branch_id")
	if branchID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "branch_id is required"))
		return
	}
	if err := ensureBranch(c, branchID); err != nil {
		response.Error(c, err)
		return
	}
	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if from == nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}

	report, err := h.service.Build(c.Request.Context(), branchID, *from, *to)
	if err != nil {
		response.Error(c, err)
		return
	}
	raw := c.Query("format")
	if raw == "" {
		response.JSON(c, http.StatusOK, report, nil)
		return
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	file, err := h.service.ExportReport(report, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// CreateExpense godoc
// @Summary Record a branch expense
// @Tags Finance
// @Accept json
// @Produce json
// @Param payload body models.CreateExpenseRequest true "Expense"
// @Success 201 {object} response.Envelope
// @Router /finance/expenses [post]
func (h *FinanceHandler) CreateExpense(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid expense payload"))
		return
	}
	if err := ensureBranch(c, req.BranchID); err != nil {
		response.Error(c, err)
		return
	}
	expense, err := h.service.RecordExpense(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, expense)
}

// CreateIncome godoc
// @Summary Record additional branch income
// @Tags Finance
// @Accept json
// @Produce json
// @Param payload body models.CreateIncomeRequest true "Income"
// @Success 201 {object} response.Envelope
// @Router /finance/incomes [post]
func (h *FinanceHandler) CreateIncome(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateIncomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid income payload"))
		return
	}
	if err := ensureBranch(c, req.BranchID); err != nil {
		response.Error(c, err)
		return
	}
	income, err := h.service.RecordIncome(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, income)
}
