package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/billing"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type ledgerRunner interface {
	InTx(ctx context.Context, fn func(repository.Ledger) error) error
}

type debtStore interface {
	Get(ctx context.Context, studentID string) (*models.DebtSummary, error)
	History(ctx context.Context, studentID string, limit int) ([]models.DebtSnapshot, error)
	ListDebtors(ctx context.Context, branchID string) ([]models.Debtor, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Actor identifies who triggered a write, for the audit trail.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// DebtServiceConfig carries the billing settings the reconciliation needs.
type DebtServiceConfig struct {
	DefaultLessonsPerWeek int
	MaxAttempts           int
	Location              *time.Location
	CacheTTL              time.Duration
}

// DebtService reconciles and serves per-student debt summaries.
type DebtService struct {
	ledger      ledgerRunner
	store       debtStore
	audit       auditWriter
	cache       *CacheService
	metrics     *MetricsService
	engine      *billing.Engine
	maxAttempts int
	loc         *time.Location
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewDebtService constructs DebtService.
func NewDebtService(ledger ledgerRunner, store debtStore, audit auditWriter, cache *CacheService, metrics *MetricsService, cfg DebtServiceConfig, logger *zap.Logger) *DebtService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &DebtService{
		ledger:      ledger,
		store:       store,
		audit:       audit,
		cache:       cache,
		metrics:     metrics,
		engine:      billing.New(cfg.DefaultLessonsPerWeek),
		maxAttempts: cfg.MaxAttempts,
		loc:         cfg.Location,
		cacheTTL:    cfg.CacheTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile recomputes the student's debt summary from scratch.
func (s *DebtService) Reconcile(ctx context.Context, studentID string, actor Actor) (*models.DebtSummary, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	start := time.Now()
	var summary *models.DebtSummary
	err := s.execute(ctx, studentID, func(l repository.Ledger) error {
		if err := l.LockStudent(ctx, studentID); err != nil {
			return err
		}
		var err error
		summary, err = s.reconcileLocked(ctx, l, studentID, models.DebtTriggerManual, nil)
		return err
	})
	s.observe(err, summary, start)
	if err != nil {
		return nil, translateLedgerError(err, "failed to reconcile debt")
	}

	s.afterWrite(ctx, studentID)
	if actor.UserID != "" {
		s.writeAudit(ctx, actor, models.AuditActionDebtReconcile, "debt_summary", studentID, summary)
	}
	return summary, nil
}

// GetSummary returns the stored summary, reconciling once when none exists yet.
func (s *DebtService) GetSummary(ctx context.Context, studentID string) (*models.DebtSummary, error) {
	var cached models.DebtSummary
	if s.cache.Get(ctx, debtCacheKey(studentID), &cached) {
		return &cached, nil
	}

	summary, err := s.store.Get(ctx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.Reconcile(ctx, studentID, Actor{})
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load debt summary")
	}

	s.cache.Set(ctx, debtCacheKey(studentID), summary, s.cacheTTL)
	return summary, nil
}

// History lists the most recent reconciliation snapshots of a student.
func (s *DebtService) History(ctx context.Context, studentID string, limit int) ([]models.DebtSnapshot, error) {
	snapshots, err := s.store.History(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load debt history")
	}
	return snapshots, nil
}

// ListDebtors returns students of a branch with outstanding debt, largest first.
func (s *DebtService) ListDebtors(ctx context.Context, branchID string) ([]models.Debtor, error) {
	var cached []models.Debtor
	if s.cache.Get(ctx, debtorsCacheKey(branchID), &cached) {
		return cached, nil
	}

	debtors, err := s.store.ListDebtors(ctx, branchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list debtors")
	}
	s.cache.Set(ctx, debtorsCacheKey(branchID), debtors, s.cacheTTL)
	return debtors, nil
}

// Today is the billing date in the configured timezone.
func (s *DebtService) Today() time.Time {
	return billing.Today(s.now(), s.loc)
}

// execute runs fn in one ledger transaction and retries the whole transaction on a version conflict.
func (s *DebtService) execute(ctx context.Context, subject string, fn func(repository.Ledger) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.ledger.InTx(ctx, fn)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		s.logger.Warn("debt summary changed concurrently",
			zap.String("subject", subject),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
		)
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// reconcileLocked recomputes and persists the summary. The caller holds the student lock.
// paymentDate is set when the run follows a new payment.
func (s *DebtService) reconcileLocked(ctx context.Context, l repository.Ledger, studentID string, trigger models.DebtTrigger, paymentDate *time.Time) (*models.DebtSummary, error) {
	enrollments, err := l.ListActiveEnrollments(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}

	today := s.Today()
	lines := make([]billing.Line, 0, len(enrollments))
	var skipped []string
	for _, enrollment := range enrollments {
		terms := billing.Terms{
			Joined:       enrollment.JoinedAt,
			MonthlyPrice: enrollment.PricePerMonth,
		}
		if enrollment.LessonsPerWeek != nil {
			terms.LessonsPerWeek = *enrollment.LessonsPerWeek
		}
		if err := s.engine.Validate(terms); err != nil {
			s.logger.Warn("skipping enrollment without pricing",
				zap.String("student_id", studentID),
				zap.String("enrollment_id", enrollment.ID),
				zap.String("group_id", enrollment.GroupID),
				zap.Error(err),
			)
			skipped = append(skipped, enrollment.ID)
			continue
		}

		window := billing.AttendanceWindow(today, enrollment.JoinedAt)
		attended, err := l.CountPresentLessons(ctx, enrollment.ID, window.From, window.To)
		if err != nil {
			return nil, err
		}
		paid, err := l.SumPayments(ctx, enrollment.ID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, billing.Line{EnrollmentID: enrollment.ID, Terms: terms, Attended: attended, Paid: paid})
	}

	result, err := s.engine.Summarize(today, lines)
	if err != nil {
		return nil, err
	}

	summary, err := l.GetDebt(ctx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		summary = &models.DebtSummary{StudentID: studentID}
	} else if err != nil {
		return nil, err
	}

	switch {
	case paymentDate != nil:
		if summary.LastPaymentDate == nil || paymentDate.After(*summary.LastPaymentDate) {
			d := *paymentDate
			summary.LastPaymentDate = &d
		}
	case summary.LastPaymentDate == nil:
		last, err := l.LastPaymentDate(ctx, studentID)
		if err != nil {
			return nil, err
		}
		summary.LastPaymentDate = last
	}

	summary.TotalDebt = result.TotalDebt
	summary.Balance = result.Balance
	summary.CurrentPeriodRemaining = result.CurrentPeriodRemaining
	summary.SkippedEnrollments = skipped
	if err := l.SaveDebt(ctx, summary); err != nil {
		return nil, err
	}

	snapshot := &models.DebtSnapshot{
		ID:                     uuid.NewString(),
		StudentID:              studentID,
		ComputedAt:             s.now(),
		Trigger:                trigger,
		InputsHash:             billing.Hash(today, lines),
		TotalRequired:          billing.Round(result.TotalRequired),
		TotalPaid:              result.TotalPaid,
		TotalDebt:              result.TotalDebt,
		Balance:                result.Balance,
		CurrentPeriodRemaining: result.CurrentPeriodRemaining,
		Version:                summary.Version,
	}
	if err := l.AppendSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	return summary, nil
}

func (s *DebtService) afterWrite(ctx context.Context, studentID string, branchIDs ...string) {
	s.cache.Invalidate(ctx, debtCacheKey(studentID))
	if len(branchIDs) == 0 {
		s.cache.InvalidatePattern(ctx, debtorsCacheKey("*"))
		return
	}
	keys := make([]string, 0, len(branchIDs))
	for _, id := range branchIDs {
		keys = append(keys, debtorsCacheKey(id))
	}
	s.cache.Invalidate(ctx, keys...)
}

func (s *DebtService) observe(err error, summary *models.DebtSummary, start time.Time) {
	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		outcome = OutcomeConflict
	case err != nil:
		outcome = OutcomeError
	}
	skipped := 0
	if summary != nil {
		skipped = len(summary.SkippedEnrollments)
	}
	s.metrics.ObserveReconciliation(outcome, skipped, time.Since(start))
}

func (s *DebtService) writeAudit(ctx context.Context, actor Actor, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode audit payload", zap.String("action", action), zap.Error(err))
		return
	}
	userID := actor.UserID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  body,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// translateLedgerError maps errors escaping a ledger transaction onto API errors.
func translateLedgerError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return appErrors.Wrap(err, appErrors.ErrConcurrentUpdate.Code, appErrors.ErrConcurrentUpdate.Status, appErrors.ErrConcurrentUpdate.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
