package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/database"
)

// Ledger is the transactional view used by payment recording and debt reconciliation.
type Ledger interface {
	LockStudent(ctx context.Context, studentID string) error
	FindEnrollment(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListActiveEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	CountPresentLessons(ctx context.Context, enrollmentID string, from, to time.Time) (int, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	SumPayments(ctx context.Context, enrollmentID string) (int64, error)
	LastPaymentDate(ctx context.Context, studentID string) (*time.Time, error)
	GetDebt(ctx context.Context, studentID string) (*models.DebtSummary, error)
	SaveDebt(ctx context.Context, summary *models.DebtSummary) error
	AppendSnapshot(ctx context.Context, snapshot *models.DebtSnapshot) error
}

// LedgerStore opens ledger transactions on Postgres.
type LedgerStore struct {
	db *sqlx.DB
}

// NewLedgerStore constructs a LedgerStore.
func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// InTx runs fn against a Ledger bound to one transaction. Any error rolls everything back.
func (s *LedgerStore) InTx(ctx context.Context, fn func(Ledger) error) error {
	return database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(newTxLedger(tx))
	})
}

type txLedger struct {
	tx          DBTX
	students    *StudentRepository
	enrollments *EnrollmentRepository
	attendance  *AttendanceRepository
	payments    *PaymentRepository
	debts       *DebtRepository
}

func newTxLedger(tx DBTX) *txLedger {
	return &txLedger{
		tx:          tx,
		students:    NewStudentRepository(tx),
		enrollments: NewEnrollmentRepository(tx),
		attendance:  NewAttendanceRepository(tx),
		payments:    NewPaymentRepository(tx),
		debts:       NewDebtRepository(tx),
	}
}

// LockStudent serialises reconciliations of one student until the transaction ends.
func (l *txLedger) LockStudent(ctx context.Context, studentID string) error {
	if _, err := l.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID); err != nil {
		return fmt.Errorf("lock student %s: %w", studentID, err)
	}
	return nil
}

func (l *txLedger) FindEnrollment(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return l.enrollments.FindByID(ctx, id)
}

// ListActiveEnrollments returns sql.ErrNoRows for an unknown student; an empty list is valid.
func (l *txLedger) ListActiveEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	exists, err := l.students.Exists(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, sql.ErrNoRows
	}
	return l.enrollments.ListActiveByStudent(ctx, studentID)
}

func (l *txLedger) CountPresentLessons(ctx context.Context, enrollmentID string, from, to time.Time) (int, error) {
	return l.attendance.CountPresent(ctx, enrollmentID, from, to)
}

func (l *txLedger) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return l.payments.Create(ctx, payment)
}

func (l *txLedger) SumPayments(ctx context.Context, enrollmentID string) (int64, error) {
	return l.payments.SumByEnrollment(ctx, enrollmentID)
}

func (l *txLedger) LastPaymentDate(ctx context.Context, studentID string) (*time.Time, error) {
	return l.payments.LastPaymentDate(ctx, studentID)
}

func (l *txLedger) GetDebt(ctx context.Context, studentID string) (*models.DebtSummary, error) {
	return l.debts.Get(ctx, studentID)
}

func (l *txLedger) SaveDebt(ctx context.Context, summary *models.DebtSummary) error {
	return l.debts.Save(ctx, summary)
}

func (l *txLedger) AppendSnapshot(ctx context.Context, snapshot *models.DebtSnapshot) error {
	return l.debts.AppendSnapshot(ctx, snapshot)
}
