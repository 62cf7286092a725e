package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/export"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type debtService interface {
	GetSummary(ctx context.Context, studentID string) (*models.DebtSummary, error)
	History(ctx context.Context, studentID string, limit int) ([]models.DebtSnapshot, error)
	Reconcile(ctx context.Context, studentID string, actor service.Actor) (*models.DebtSummary, error)
	ListDebtors(ctx context.Context, branchID string) ([]models.Debtor, error)
}

type debtorExporter interface {
	ExportDebtors(branchID string, debtors []models.Debtor, format export.Format) (*service.ExportFile, error)
}

// DebtHandler serves per-student debt summaries and branch debtor lists.
type DebtHandler struct {
	service  debtService
	students studentGetter
	exporter debtorExporter
}

// NewDebtHandler constructs DebtHandler.
func NewDebtHandler(svc debtService, students studentGetter, exporter debtorExporter) *DebtHandler {
	return &DebtHandler{service: svc, students: students, exporter: exporter}
}

// Summary godoc
// @Summary Get a student's debt summary
// @Tags Debts
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/debt [get]
func (h *DebtHandler) Summary(c *gin.Context) {
	studentID, ok := h.authorizeStudent(c)
	if !ok {
		return
	}
	summary, err := h.service.GetSummary(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// History godoc
// @Summary List reconciliation snapshots
// @Tags Debts
// @Produce json
// @Param id path string true "Student ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/debt/history [get]
func (h *DebtHandler) History(c *gin.Context) {
	studentID, ok := h.authorizeStudent(c)
	if !ok {
		return
	}
	snapshots, err := h.service.History(c.Request.Context(), studentID, parseQueryInt(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, nil)
}

// Reconcile godoc
// @Summary Recompute a student's debt
// @Tags Debts
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/debt/reconcile [post]
func (h *DebtHandler) Reconcile(c *gin.Context) {
	studentID, ok := h.authorizeStudent(c)
	if !ok {
		return
	}
	summary, err := h.service.Reconcile(c.Request.Context(), studentID, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(summary.SkippedEnrollments) > 0 {
		response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"skipped_enrollments": len(summary.SkippedEnrollments)})
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Debtors godoc
// @Summary List students with outstanding debt in a branch
// @Tags Debts
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Branch ID"
// @Param format query string false "csv or pdf to download instead of JSON"
// @Success 200 {object} response.Envelope
// @Router /branches/{id}/debtors [get]
func (h *DebtHandler) Debtors(c *gin.Context) {
	branchID := c.Param("id")
	debtors, err := h.service.ListDebtors(c.Request.Context(), branchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	raw := c.Query("format")
	if raw == "" {
		response.JSON(c, http.StatusOK, debtors, nil)
		return
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	file, err := h.exporter.ExportDebtors(branchID, debtors, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func (h *DebtHandler) authorizeStudent(c *gin.Context) (string, bool) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	if err := ensureBranch(c, student.BranchID); err != nil {
		response.Error(c, err)
		return "", false
	}
	return student.ID, true
}
