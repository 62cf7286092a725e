package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/billing"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type paymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

// PaymentService records tuition payments and keeps debt summaries in step with them.
type PaymentService struct {
	debts     *DebtService
	payments  paymentLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService. Payments share the debt service's ledger and retry policy.
func NewPaymentService(debts *DebtService, payments paymentLister, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{debts: debts, payments: payments, validator: validate, logger: logger}
}

// RecordPayment stores the payment and reconciles the student's debt in the same transaction.
func (s *PaymentService) RecordPayment(ctx context.Context, req models.RecordPaymentRequest) (*models.PaymentReceipt, error) {
	if req.Amount <= 0 {
		return nil, appErrors.ErrInvalidAmount
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.Method == "" {
		req.Method = models.PaymentMethodCash
	}

	today := s.debts.Today()
	paymentDate := today
	if req.PaymentDate != nil {
		paymentDate = billing.Date(*req.PaymentDate)
	}
	if paymentDate.After(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment date is in the future")
	}

	paymentID := uuid.NewString()
	var (
		payment *models.Payment
		summary *models.DebtSummary
	)
	start := time.Now()
	err := s.debts.execute(ctx, req.EnrollmentID, func(l repository.Ledger) error {
		enrollment, err := l.FindEnrollment(ctx, req.EnrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrEnrollmentNotFound
			}
			return err
		}
		if err := l.LockStudent(ctx, enrollment.StudentID); err != nil {
			return err
		}

		payment = &models.Payment{
			ID:                 paymentID,
			EnrollmentID:       enrollment.ID,
			StudentID:          enrollment.StudentID,
			BranchID:           enrollment.BranchID,
			Amount:             req.Amount,
			PaymentDate:        paymentDate,
			Method:             req.Method,
			ReceiptNumber:      req.ReceiptNumber,
			Note:               req.Note,
			RecordedBy:         req.RecordedBy,
			InactiveEnrollment: enrollment.Status != models.EnrollmentStatusActive,
			CreatedAt:          s.debts.now(),
		}
		if err := l.CreatePayment(ctx, payment); err != nil {
			return err
		}

		summary, err = s.debts.reconcileLocked(ctx, l, enrollment.StudentID, models.DebtTriggerPayment, &paymentDate)
		return err
	})
	if payment != nil || summary != nil {
		s.debts.observe(err, summary, start)
	}
	if err != nil {
		return nil, translateLedgerError(err, "failed to record payment")
	}

	if payment.InactiveEnrollment {
		s.logger.Warn("payment recorded against non-active enrollment",
			zap.String("payment_id", payment.ID),
			zap.String("enrollment_id", payment.EnrollmentID),
			zap.String("student_id", payment.StudentID),
		)
	}

	s.debts.afterWrite(ctx, payment.StudentID, payment.BranchID)
	s.debts.writeAudit(ctx, Actor{UserID: req.RecordedBy, IP: req.IP, UserAgent: req.UserAgent},
		models.AuditActionPaymentCreate, "payment", payment.ID, payment)
	s.debts.metrics.RecordPayment(string(payment.Method))

	return &models.PaymentReceipt{Payment: *payment, Debt: *summary}, nil
}

// List returns payments matching the filter with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}
