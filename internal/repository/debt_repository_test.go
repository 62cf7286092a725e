package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

func TestDebtRepositorySaveCreatesFirstVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id) DO NOTHING")).
		WithArgs("stu-1", int64(600000), int64(0), int64(300000), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	summary := &models.DebtSummary{StudentID: "stu-1", TotalDebt: 600000, CurrentPeriodRemaining: 300000}
	require.NoError(t, repo.Save(context.Background(), summary))
	assert.Equal(t, int64(1), summary.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebtRepositoryGetReadsSkippedEnrollments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("skipped_enrollments FROM debt_summaries WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "total_debt", "balance", "current_period_remaining", "last_payment_date", "version", "created_at", "updated_at", "skipped_enrollments"}).
			AddRow("stu-1", int64(300000), int64(0), int64(0), nil, int64(3), now, now, []byte("{enr-2}")))

	summary, err := repo.Get(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-2"}, []string(summary.SkippedEnrollments))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebtRepositorySaveDetectsStaleVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE student_id = $1 AND version = $7")).
		WithArgs("stu-1", int64(0), int64(100000), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	summary := &models.DebtSummary{StudentID: "stu-1", Balance: 100000, Version: 4}
	err := repo.Save(context.Background(), summary)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(4), summary.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebtRepositorySaveConcurrentInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	mock.ExpectExec("INSERT INTO debt_summaries").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), &models.DebtSummary{StudentID: "stu-1"})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestDebtRepositoryHistoryClampsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM debt_snapshots WHERE student_id = $1 ORDER BY computed_at DESC LIMIT $2")).
		WithArgs("stu-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "computed_at", "trigger", "inputs_hash", "total_required", "total_paid", "total_debt", "balance", "current_period_remaining", "version"}).
			AddRow("s-1", "stu-1", now, "payment", "abc", int64(600000), int64(700000), int64(0), int64(100000), int64(0), int64(2)))

	history, err := repo.History(context.Background(), "stu-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.DebtTriggerPayment, history[0].Trigger)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebtRepositoryListDebtors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.branch_id = $1 AND d.total_debt > 0")).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "full_name", "phone", "total_debt", "last_payment_date"}).
			AddRow("stu-1", "Aziz", nil, int64(450000), nil))

	debtors, err := repo.ListDebtors(context.Background(), "b-1")
	require.NoError(t, err)
	require.Len(t, debtors, 1)
	assert.Equal(t, int64(450000), debtors[0].TotalDebt)
}
