package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.EnrollmentDetail
	statusCalls []models.EnrollmentStatus
	createErr   error
	updateErr   error
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.StudentID == "" || e.StudentID == filter.StudentID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m *mockEnrollmentRepo) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, groupID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.GroupID == groupID && e.Status == models.EnrollmentStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) CountActiveByGroup(ctx context.Context, groupID string) (int, error) {
	count := 0
	for _, e := range m.enrollments {
		if e.GroupID == groupID && e.Status == models.EnrollmentStatusActive {
			count++
		}
	}
	return count, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.enrollments == nil {
		m.enrollments = map[string]models.EnrollmentDetail{}
	}
	enrollment.ID = "e-new"
	m.enrollments[enrollment.ID] = models.EnrollmentDetail{Enrollment: *enrollment}
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.statusCalls = append(m.statusCalls, status)
	e := m.enrollments[id]
	e.Status = status
	e.LeftAt = leftAt
	m.enrollments[id] = e
	return nil
}

type recordingReconciler struct {
	students []string
}

func (r *recordingReconciler) Reconcile(ctx context.Context, studentID string, actor Actor) (*models.DebtSummary, error) {
	r.students = append(r.students, studentID)
	return &models.DebtSummary{StudentID: studentID}, nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *recordingReconciler, *recordingAudit) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.EnrollmentDetail{}}
	students := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", BranchID: "b1", Active: true},
		"s2": {ID: "s2", BranchID: "b1", Active: false},
	}}
	groups := &mockGroupRepo{groups: map[string]models.Group{
		"g1": {ID: "g1", BranchID: "b1", MaxStudents: models.DefaultMaxStudents, Active: true},
		"g2": {ID: "g2", BranchID: "b2", MaxStudents: models.DefaultMaxStudents, Active: true},
		"g3": {ID: "g3", BranchID: "b1", MaxStudents: 2, Active: true},
		"g4": {ID: "g4", BranchID: "b1", MaxStudents: models.DefaultMaxStudents, Active: false},
	}}
	debts := &recordingReconciler{}
	audit := &recordingAudit{}
	svc := NewEnrollmentService(repo, students, groups, debts, audit, nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, debts, audit
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, repo, debts, _ := newEnrollmentFixture()

	detail, err := svc.Enroll(context.Background(), models.EnrollRequest{StudentID: "s1", GroupID: "g1"}, Actor{UserID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
	assert.True(t, detail.JoinedAt.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"s1"}, debts.students)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceEnrollRejectsDuplicateActive(t *testing.T) {
	svc, repo, _, _ := newEnrollmentFixture()
	repo.enrollments["e1"] = models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1", StudentID: "s1", GroupID: "g1", Status: models.EnrollmentStatusActive}}

	_, err := svc.Enroll(context.Background(), models.EnrollRequest{StudentID: "s1", GroupID: "g1"}, Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollPreconditions(t *testing.T) {
	svc, _, _, _ := newEnrollmentFixture()
	ctx := context.Background()

	_, err := svc.Enroll(ctx, models.EnrollRequest{StudentID: "s2", GroupID: "g1"}, Actor{})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = svc.Enroll(ctx, models.EnrollRequest{StudentID: "s1", GroupID: "g2"}, Actor{})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = svc.Enroll(ctx, models.EnrollRequest{StudentID: "missing", GroupID: "g1"}, Actor{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsFullGroup(t *testing.T) {
	svc, repo, debts, _ := newEnrollmentFixture()
	repo.enrollments["e1"] = models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1", StudentID: "s8", GroupID: "g3", Status: models.EnrollmentStatusActive}}
	repo.enrollments["e2"] = models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e2", StudentID: "s9", GroupID: "g3", Status: models.EnrollmentStatusActive}}

	_, err := svc.Enroll(context.Background(), models.EnrollRequest{StudentID: "s1", GroupID: "g3"}, Actor{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Equal(t, "group is full", appErr.Message)
	assert.Empty(t, debts.students)

	e2 := repo.enrollments["e2"]
	e2.Status = models.EnrollmentStatusInactive
	repo.enrollments["e2"] = e2
	_, err = svc.Enroll(context.Background(), models.EnrollRequest{StudentID: "s1", GroupID: "g3"}, Actor{})
	require.NoError(t, err)
}

func TestEnrollmentServiceEnrollRejectsInactiveGroup(t *testing.T) {
	svc, repo, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), models.EnrollRequest{StudentID: "s1", GroupID: "g4"}, Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentServiceEnrollMapsConcurrentDuplicate(t *testing.T) {
	for _, createErr := range []error{
		repository.ErrDuplicateActiveEnrollment,
		fmt.Errorf("create enrollment: %w", &pq.Error{Code: "23505"}),
	} {
		svc, repo, debts, _ := newEnrollmentFixture()
		repo.createErr = createErr

		_, err := svc.Enroll(context.Background(), models.EnrollRequest{StudentID: "s1", GroupID: "g1"}, Actor{})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
		assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
		assert.Empty(t, debts.students)
	}
}

func TestEnrollmentServiceWithdrawLosesRace(t *testing.T) {
	svc, repo, debts, audit := newEnrollmentFixture()
	repo.enrollments["e1"] = models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1", StudentID: "s1", GroupID: "g1", Status: models.EnrollmentStatusActive}}
	repo.updateErr = repository.ErrEnrollmentNotActive

	_, err := svc.Withdraw(context.Background(), "e1", models.WithdrawRequest{}, Actor{UserID: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, audit.logs)
	assert.Empty(t, debts.students)
}

func TestEnrollmentServiceWithdrawKeepsRow(t *testing.T) {
	svc, repo, debts, audit := newEnrollmentFixture()
	repo.enrollments["e1"] = models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1", StudentID: "s1", GroupID: "g1", Status: models.EnrollmentStatusActive}}

	detail, err := svc.Withdraw(context.Background(), "e1", models.WithdrawRequest{Status: models.EnrollmentStatusArchived}, Actor{UserID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusArchived, detail.Status)
	require.NotNil(t, detail.LeftAt)
	assert.Contains(t, repo.enrollments, "e1")
	assert.Equal(t, []string{"s1"}, debts.students)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEnrollmentClose, audit.logs[0].Action)

	_, err = svc.Withdraw(context.Background(), "e1", models.WithdrawRequest{}, Actor{})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceWithdrawUnknown(t *testing.T) {
	svc, _, _, _ := newEnrollmentFixture()

	_, err := svc.Withdraw(context.Background(), "nope", models.WithdrawRequest{}, Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListActive(t *testing.T) {
	svc, repo, _, _ := newEnrollmentFixture()
	repo.enrollments["e1"] = models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1", StudentID: "s1", Status: models.EnrollmentStatusActive}}
	repo.enrollments["e2"] = models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e2", StudentID: "s1", Status: models.EnrollmentStatusInactive}}

	active, err := svc.ListActive(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "e1", active[0].ID)

	empty, err := svc.ListActive(context.Background(), "s2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.ListActive(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
