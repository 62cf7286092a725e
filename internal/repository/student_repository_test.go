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

func TestStudentRepositoryListByBranch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE branch_id = $1 AND (LOWER(full_name) LIKE $2 OR phone LIKE $2) ORDER BY full_name ASC LIMIT 20 OFFSET 0")).
		WithArgs("b-1", "%aziz%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "branch_id", "full_name", "phone", "parent_phone", "birth_date", "active", "created_at", "updated_at"}).
			AddRow("stu-1", "b-1", "Aziz Rahimov", nil, nil, nil, true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE branch_id = $1")).
		WithArgs("b-1", "%aziz%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{BranchID: "b-1", Search: "Aziz"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Exists(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
