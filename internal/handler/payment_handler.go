package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type paymentService interface {
	RecordPayment(ctx context.Context, req models.RecordPaymentRequest) (*models.PaymentReceipt, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error)
}

// PaymentHandler records tuition payments.
type PaymentHandler struct {
	service     paymentService
	enrollments enrollmentGetter
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(svc paymentService, enrollments enrollmentGetter) *PaymentHandler {
	return &PaymentHandler{service: svc, enrollments: enrollments}
}

// Record godoc
// @Summary Record a tuition payment
// @Description Stores the payment and recomputes the student's debt in one transaction
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	if req.Amount <= 0 {
		response.Error(c, appErrors.ErrInvalidAmount)
		return
	}

	enrollment, err := h.enrollments.Get(c.Request.Context(), req.EnrollmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := ensureBranch(c, enrollment.BranchID); err != nil {
		response.Error(c, err)
		return
	}

	req.RecordedBy = claims.UserID
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	receipt, err := h.service.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if receipt.Payment.InactiveEnrollment {
		middleware.SetMeta(c, "inactive_enrollment", true)
	}
	response.Created(c, receipt, middleware.ExtractMeta(c))
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param branch_id query string false "Branch ID"
// @Param student_id query string false "Student ID"
// @Param enrollment_id query string false "Enrollment ID"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	branches, err := branchScope(c, c.Query("branch_id"))
	if err != nil {
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
	filter := models.PaymentFilter{
		BranchIDs:    branches,
		StudentID:    c.Query("student_id"),
		EnrollmentID: c.Query("enrollment_id"),
		From:         from,
		To:           to,
		Page:         parseQueryInt(c, "page", 1),
		PageSize:     parseQueryInt(c, "page_size", 20),
	}
	payments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}
