package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/billing"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	ListByEnrollment(ctx context.Context, enrollmentID string, from, to time.Time) ([]models.Attendance, error)
	CountPresent(ctx context.Context, enrollmentID string, from, to time.Time) (int, error)
}

type enrollmentFinder interface {
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// AttendanceService records lesson attendance per enrollment.
type AttendanceService struct {
	repo        attendanceRepository
	enrollments enrollmentFinder
	debts       debtReconciler
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewAttendanceService constructs AttendanceService. Marks inside the current month refresh the student's debt when debts is set.
func NewAttendanceService(repo attendanceRepository, enrollments enrollmentFinder, debts debtReconciler, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{
		repo:        repo,
		enrollments: enrollments,
		debts:       debts,
		validator:   validate,
		logger:      logger,
		loc:         loc,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Mark upserts the attendance of one enrollment on one date.
func (s *AttendanceService) Mark(ctx context.Context, enrollmentID string, req models.MarkAttendanceRequest, markedBy string) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
	}

	today := billing.Today(s.now(), s.loc)
	date := billing.Date(req.Date)
	if date.After(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance date is in the future")
	}
	if date.Before(billing.Date(enrollment.JoinedAt)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance date precedes enrollment")
	}

	record := &models.Attendance{EnrollmentID: enrollmentID, Date: date, Status: req.Status, Note: req.Note}
	if markedBy != "" {
		record.MarkedBy = &markedBy
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}

	if s.debts != nil && billing.SameMonth(date, today) {
		if _, err := s.debts.Reconcile(ctx, enrollment.StudentID, Actor{}); err != nil {
			s.logger.Warn("debt refresh after attendance failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
	}
	return stored, nil
}

// List returns the marks of an enrollment between from and to inclusive.
func (s *AttendanceService) List(ctx context.Context, enrollmentID string, from, to time.Time) ([]models.Attendance, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if _, err := s.enrollments.Get(ctx, enrollmentID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByEnrollment(ctx, enrollmentID, billing.Date(from), billing.Date(to))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// CountPresentLessons counts present marks between from and to inclusive; zero when none.
func (s *AttendanceService) CountPresentLessons(ctx context.Context, enrollmentID string, from, to time.Time) (int, error) {
	count, err := s.repo.CountPresent(ctx, enrollmentID, billing.Date(from), billing.Date(to))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	return count, nil
}
