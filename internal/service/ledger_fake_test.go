package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

type fakeLedgerState struct {
	students    map[string]bool
	enrollments map[string]models.EnrollmentDetail
	present     map[string][]time.Time
	payments    []models.Payment
	debts       map[string]models.DebtSummary
	snapshots   []models.DebtSnapshot
}

func (s *fakeLedgerState) clone() *fakeLedgerState {
	out := &fakeLedgerState{
		students:    make(map[string]bool, len(s.students)),
		enrollments: make(map[string]models.EnrollmentDetail, len(s.enrollments)),
		present:     make(map[string][]time.Time, len(s.present)),
		payments:    append([]models.Payment(nil), s.payments...),
		debts:       make(map[string]models.DebtSummary, len(s.debts)),
		snapshots:   append([]models.DebtSnapshot(nil), s.snapshots...),
	}
	for k, v := range s.students {
		out.students[k] = v
	}
	for k, v := range s.enrollments {
		out.enrollments[k] = v
	}
	for k, v := range s.present {
		out.present[k] = append([]time.Time(nil), v...)
	}
	for k, v := range s.debts {
		out.debts[k] = v
	}
	return out
}

// fakeLedgerStore keeps ledger state in memory. Transactions work on a copy committed only on success.
type fakeLedgerStore struct {
	state     *fakeLedgerState
	conflicts int
	txCount   int
	locks     []string
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{state: &fakeLedgerState{
		students:    map[string]bool{},
		enrollments: map[string]models.EnrollmentDetail{},
		present:     map[string][]time.Time{},
		debts:       map[string]models.DebtSummary{},
	}}
}

func (f *fakeLedgerStore) addEnrollment(id, studentID, branchID string, joined time.Time, price *int64, status models.EnrollmentStatus) {
	f.state.students[studentID] = true
	detail := models.EnrollmentDetail{
		Enrollment: models.Enrollment{ID: id, StudentID: studentID, GroupID: "g-" + id, JoinedAt: joined, Status: status},
		BranchID:   branchID,
	}
	if price != nil {
		detail.PricePerMonth = decimal.NewNullDecimal(decimal.NewFromInt(*price))
	}
	f.state.enrollments[id] = detail
}

func (f *fakeLedgerStore) InTx(ctx context.Context, fn func(repository.Ledger) error) error {
	f.txCount++
	work := f.state.clone()
	if err := fn(&fakeLedger{store: f, state: work}); err != nil {
		return err
	}
	f.state = work
	return nil
}

func (f *fakeLedgerStore) Get(ctx context.Context, studentID string) (*models.DebtSummary, error) {
	summary, ok := f.state.debts[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &summary, nil
}

func (f *fakeLedgerStore) History(ctx context.Context, studentID string, limit int) ([]models.DebtSnapshot, error) {
	var out []models.DebtSnapshot
	for i := len(f.state.snapshots) - 1; i >= 0; i-- {
		if f.state.snapshots[i].StudentID == studentID {
			out = append(out, f.state.snapshots[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLedgerStore) ListDebtors(ctx context.Context, branchID string) ([]models.Debtor, error) {
	var out []models.Debtor
	for id, summary := range f.state.debts {
		if summary.TotalDebt > 0 {
			out = append(out, models.Debtor{StudentID: id, TotalDebt: summary.TotalDebt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalDebt > out[j].TotalDebt })
	return out, nil
}

type fakeLedger struct {
	store *fakeLedgerStore
	state *fakeLedgerState
}

func (l *fakeLedger) LockStudent(ctx context.Context, studentID string) error {
	l.store.locks = append(l.store.locks, studentID)
	return nil
}

func (l *fakeLedger) FindEnrollment(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, ok := l.state.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &detail, nil
}

func (l *fakeLedger) ListActiveEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	if !l.state.students[studentID] {
		return nil, sql.ErrNoRows
	}
	var out []models.EnrollmentDetail
	for _, e := range l.state.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *fakeLedger) CountPresentLessons(ctx context.Context, enrollmentID string, from, to time.Time) (int, error) {
	count := 0
	for _, d := range l.state.present[enrollmentID] {
		if !d.Before(from) && !d.After(to) {
			count++
		}
	}
	return count, nil
}

func (l *fakeLedger) CreatePayment(ctx context.Context, payment *models.Payment) error {
	l.state.payments = append(l.state.payments, *payment)
	return nil
}

func (l *fakeLedger) SumPayments(ctx context.Context, enrollmentID string) (int64, error) {
	var total int64
	for _, p := range l.state.payments {
		if p.EnrollmentID == enrollmentID {
			total += p.Amount
		}
	}
	return total, nil
}

func (l *fakeLedger) LastPaymentDate(ctx context.Context, studentID string) (*time.Time, error) {
	var last *time.Time
	for i := range l.state.payments {
		p := l.state.payments[i]
		if p.StudentID == studentID && (last == nil || p.PaymentDate.After(*last)) {
			d := p.PaymentDate
			last = &d
		}
	}
	return last, nil
}

func (l *fakeLedger) GetDebt(ctx context.Context, studentID string) (*models.DebtSummary, error) {
	summary, ok := l.state.debts[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &summary, nil
}

func (l *fakeLedger) SaveDebt(ctx context.Context, summary *models.DebtSummary) error {
	if l.store.conflicts > 0 {
		l.store.conflicts--
		return fmt.Errorf("save debt summary: %w", repository.ErrVersionConflict)
	}
	if existing, ok := l.state.debts[summary.StudentID]; ok && existing.Version != summary.Version {
		return fmt.Errorf("save debt summary: %w", repository.ErrVersionConflict)
	}
	summary.Version++
	l.state.debts[summary.StudentID] = *summary
	return nil
}

func (l *fakeLedger) AppendSnapshot(ctx context.Context, snapshot *models.DebtSnapshot) error {
	l.state.snapshots = append(l.state.snapshots, *snapshot)
	return nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}
