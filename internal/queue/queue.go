// Package queue exposes the enqueue side of the durable email job queue.
// Jobs are Postgres rows consumed by the worker binary, so an enqueued job
// survives process restarts and is retried until sent or exhausted.
package queue

import (
	"context"
	"time"

	"solicitudes/internal/model"
	"solicitudes/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue enqueues email delivery jobs. Enqueue returns as soon as the job
// row is durable; delivery happens in the worker.
type Queue interface {
	EnqueueRequestEmail(ctx context.Context, requestID uuid.UUID, kind model.NotificationKind) error
	EnqueueResend(ctx context.Context, notification *model.Notification) error
}

type emailQueue struct {
	jobs        repository.EmailJobRepository
	maxAttempts int
	logger      *zap.Logger
}

// New builds a queue whose jobs carry maxAttempts as their retry budget.
func New(jobs repository.EmailJobRepository, maxAttempts int, logger *zap.Logger) Queue {
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}
	return &emailQueue{jobs: jobs, maxAttempts: maxAttempts, logger: logger}
}

func (q *emailQueue) EnqueueRequestEmail(ctx context.Context, requestID uuid.UUID, kind model.NotificationKind) error {
	job := &model.EmailJob{
		RequestID:   requestID,
		Kind:        kind,
		Status:      model.JobPending,
		MaxAttempts: q.maxAttempts,
		NextRunAt:   time.Now().UTC(),
	}
	if err := q.jobs.Create(ctx, job); err != nil {
		return err
	}

	q.logger.Info("email job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("request_id", requestID.String()),
		zap.String("kind", string(kind)),
	)
	return nil
}

// EnqueueResend queues another delivery attempt for an existing
// notification record, regardless of how many attempts it has used.
func (q *emailQueue) EnqueueResend(ctx context.Context, notification *model.Notification) error {
	notifID := notification.ID
	job := &model.EmailJob{
		RequestID:      notification.RequestID,
		Kind:           notification.Kind,
		NotificationID: &notifID,
		Status:         model.JobPending,
		MaxAttempts:    q.maxAttempts,
		NextRunAt:      time.Now().UTC(),
	}
	if err := q.jobs.Create(ctx, job); err != nil {
		return err
	}

	q.logger.Info("resend job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("notification_id", notifID.String()),
	)
	return nil
}
