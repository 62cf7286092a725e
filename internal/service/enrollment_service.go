package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/billing"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, groupID string) (bool, error)
	CountActiveByGroup(ctx context.Context, groupID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type groupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type debtReconciler interface {
	Reconcile(ctx context.Context, studentID string, actor Actor) (*models.DebtSummary, error)
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	groups    groupReader
	debts     debtReconciler
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. debts may be nil when summaries are reconciled elsewhere.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, groups groupReader, debts debtReconciler, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		groups:    groups,
		debts:     debts,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment with its group pricing.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEnrollmentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// ListActive returns the student's ACTIVE enrollments. An unknown student is NotFound; no enrollments is an empty list.
func (s *EnrollmentService) ListActive(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return enrollments, nil
}

// Enroll registers a student into a group. A student holds at most one ACTIVE enrollment per group.
func (s *EnrollmentService) Enroll(ctx context.Context, req models.EnrollRequest, actor Actor) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if group.BranchID != student.BranchID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student and group belong to different branches")
	}
	if !group.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "group inactive")
	}
	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in group")
	}
	seated, err := s.repo.CountActiveByGroup(ctx, req.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count group enrollments")
	}
	if group.IsFull(seated) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "group is full")
	}

	joined := billing.Date(s.now())
	if req.JoinedAt != nil {
		joined = billing.Date(*req.JoinedAt)
	}
	enrollment := &models.Enrollment{StudentID: req.StudentID, GroupID: req.GroupID, JoinedAt: joined, Status: models.EnrollmentStatusActive}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveEnrollment) || repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.refreshDebt(ctx, req.StudentID, actor)
	return s.Get(ctx, enrollment.ID)
}

// Withdraw moves an ACTIVE enrollment to INACTIVE or ARCHIVED. Payments and attendance are kept.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string, req models.WithdrawRequest, actor Actor) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdraw payload")
	}
	status := req.Status
	if status == "" {
		status = models.EnrollmentStatusInactive
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment already inactive")
	}
	leftAt := s.now()
	if err := s.repo.UpdateStatus(ctx, id, status, &leftAt); err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotActive) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment already inactive")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	if s.audit != nil && actor.UserID != "" {
		userID, resourceID := actor.UserID, id
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionEnrollmentClose,
			Resource:   "enrollment",
			ResourceID: &resourceID,
			NewValues:  []byte(`{"status":"` + string(status) + `"}`),
			IPAddress:  actor.IP,
			UserAgent:  actor.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record enrollment audit log", zap.String("enrollment_id", id), zap.Error(err))
		}
	}
	s.refreshDebt(ctx, current.StudentID, actor)
	return s.Get(ctx, id)
}

func (s *EnrollmentService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// refreshDebt reconciles after the active set changed. Failure leaves the old summary until the next run.
func (s *EnrollmentService) refreshDebt(ctx context.Context, studentID string, actor Actor) {
	if s.debts == nil {
		return
	}
	if _, err := s.debts.Reconcile(ctx, studentID, actor); err != nil {
		s.logger.Warn("debt reconciliation after enrollment change failed", zap.String("student_id", studentID), zap.Error(err))
	}
}
