package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/jobs"
)

const debtRefreshJob = "debt.refresh"

type jobQueue interface {
	Enqueue(job jobs.Job) (bool, error)
}

// DebtRefresher moves best-effort reconciliations off the request path.
// Triggers for a student already waiting in the queue collapse into one run.
type DebtRefresher struct {
	queue  jobQueue
	logger *zap.Logger
}

// NewDebtRefresher wraps a started queue whose handler is DebtRefreshHandler.
func NewDebtRefresher(queue jobQueue, logger *zap.Logger) *DebtRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebtRefresher{queue: queue, logger: logger}
}

// Reconcile schedules a refresh and returns immediately without a summary.
func (r *DebtRefresher) Reconcile(ctx context.Context, studentID string, actor Actor) (*models.DebtSummary, error) {
	queued, err := r.queue.Enqueue(jobs.Job{Key: studentID, Type: debtRefreshJob, Payload: actor})
	if err != nil {
		return nil, err
	}
	if !queued {
		r.logger.Debug("debt refresh already pending", zap.String("student_id", studentID))
	}
	return nil, nil
}

// DebtRefreshHandler runs queued refreshes through the debt service.
func DebtRefreshHandler(debts debtReconciler) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		actor, _ := job.Payload.(Actor)
		_, err := debts.Reconcile(ctx, job.Key, actor)
		return err
	}
}
