package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, enrollmentID string, req models.MarkAttendanceRequest, markedBy string) (*models.Attendance, error)
	List(ctx context.Context, enrollmentID string, from, to time.Time) ([]models.Attendance, error)
}

type enrollmentGetter interface {
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// AttendanceHandler records lesson attendance per enrollment.
type AttendanceHandler struct {
	service     attendanceService
	enrollments enrollmentGetter
	now         func() time.Time
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(svc attendanceService, enrollments enrollmentGetter) *AttendanceHandler {
	return &AttendanceHandler{service: svc, enrollments: enrollments, now: time.Now}
}

// Mark godoc
// @Summary Mark attendance for a lesson
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.MarkAttendanceRequest true "Attendance mark"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	if !h.authorize(c, c.Param("id")) {
		return
	}
	mark, err := h.service.Mark(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}

// List godoc
// @Summary List attendance for an enrollment
// @Tags Attendance
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param from query string false "YYYY-MM-DD, defaults to the first of this month"
// @Param to query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
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
	now := h.now()
	if to == nil {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		to = &today
	}
	if from == nil {
		first := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
		from = &first
	}
	if !h.authorize(c, c.Param("id")) {
		return
	}
	marks, err := h.service.List(c.Request.Context(), c.Param("id"), *from, *to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

func (h *AttendanceHandler) authorize(c *gin.Context, enrollmentID string) bool {
	enrollment, err := h.enrollments.Get(c.Request.Context(), enrollmentID)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if err := ensureBranch(c, enrollment.BranchID); err != nil {
		response.Error(c, err)
		return false
	}
	return true
}
