package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

var enrollmentDetailCols = []string{"id", "student_id", "group_id", "joined_at", "left_at", "status", "created_at",
	"student_name", "group_name", "branch_id", "price_per_month", "lessons_per_week"}

func TestEnrollmentRepositoryListActiveByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	joined := time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(enrollmentDetailCols).
		AddRow("enr-1", "stu-1", "grp-1", joined, nil, models.EnrollmentStatusActive, joined, "Aziz", "English A1", "b-1", "300000.00", int64(3)).
		AddRow("enr-2", "stu-1", "grp-2", joined, nil, models.EnrollmentStatusActive, joined, "Aziz", "Math", "b-1", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND e.status = $2 ORDER BY e.joined_at, e.id")).
		WithArgs("stu-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollments, err := repo.ListActiveByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.True(t, enrollments[0].PricePerMonth.Valid)
	assert.Equal(t, "300000", enrollments[0].PricePerMonth.Decimal.String())
	require.NotNil(t, enrollments[0].LessonsPerWeek)
	assert.Equal(t, 3, *enrollments[0].LessonsPerWeek)
	assert.False(t, enrollments[1].PricePerMonth.Valid)
	assert.Nil(t, enrollments[1].LessonsPerWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 AND status = $3")).
		WithArgs("stu-1", "grp-1", models.EnrollmentStatusActive).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "grp-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", GroupID: "grp-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.False(t, enrollment.JoinedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_active_unique"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "stu-1", GroupID: "grp-1"})
	assert.ErrorIs(t, err, ErrDuplicateActiveEnrollment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountActiveByGroup(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE group_id = $1 AND status = $2")).
		WithArgs("grp-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(14))

	count, err := repo.CountActiveByGroup(context.Background(), "grp-1")
	require.NoError(t, err)
	assert.Equal(t, 14, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusRequiresActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	leftAt := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("enr-1", models.EnrollmentStatusInactive, sqlmock.AnyArg(), models.EnrollmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE enrollments SET status").
		WithArgs("enr-1", models.EnrollmentStatusInactive, sqlmock.AnyArg(), models.EnrollmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusInactive, &leftAt))
	err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusInactive, &leftAt)
	assert.ErrorIs(t, err, ErrEnrollmentNotActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListScopesBranches(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.group_id = $1 AND g.branch_id = ANY($2)")).
		WithArgs("grp-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(enrollmentDetailCols))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e JOIN study_groups g")).
		WithArgs("grp-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{GroupID: "grp-1", BranchIDs: []string{"b-1"}})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
