package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"solicitudes/internal/config"
	"solicitudes/internal/model"
	"solicitudes/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// batchSize bounds how many due jobs one poll claims.
const batchSize = 10

// Worker consumes email jobs from the durable queue, resolves recipients,
// sends mail and records the outcome on each Notification. It is the only
// asynchronous component in the system.
type Worker struct {
	jobs          repository.EmailJobRepository
	requests      repository.RequestRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
	sender        Sender
	cfg           config.WorkerConfig
	logger        *zap.Logger
}

func New(
	jobs repository.EmailJobRepository,
	requests repository.RequestRepository,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	sender Sender,
	cfg config.WorkerConfig,
	logger *zap.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = model.DefaultMaxAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 60 * time.Second
	}
	if cfg.HardTimeout == 0 {
		cfg.HardTimeout = 30 * time.Second
	}

	return &Worker{
		jobs:          jobs,
		requests:      requests,
		notifications: notifications,
		users:         users,
		sender:        sender,
		cfg:           cfg,
		logger:        logger,
	}
}

// Start polls the queue until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("delivery worker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("max_attempts", w.cfg.MaxAttempts),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("delivery worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// processBatch claims due jobs and fans them out over the configured number
// of delivery goroutines. Jobs abandoned by a crashed worker become
// claimable again once untouched for longer than the hard timeout.
func (w *Worker) processBatch(ctx context.Context) {
	jobs, err := w.jobs.ClaimDue(ctx, batchSize, w.cfg.HardTimeout)
	if err != nil {
		w.logger.Error("failed to claim due jobs", zap.Error(err))
		return
	}

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job *model.EmailJob) {
			defer wg.Done()
			defer func() { <-sem }()
			w.ProcessJob(ctx, job)
		}(&jobs[i])
	}
	wg.Wait()
}

// ProcessJob runs one claimed job to completion or failure and persists
// the scheduler decision: sent, retry later, or terminal failure.
func (w *Worker) ProcessJob(ctx context.Context, job *model.EmailJob) {
	start := time.Now()
	err := w.runWithTimeout(ctx, job)
	elapsed := time.Since(start)

	if w.cfg.SoftTimeout > 0 && elapsed > w.cfg.SoftTimeout {
		w.logger.Warn("job exceeded soft time limit",
			zap.String("job_id", job.ID.String()),
			zap.Duration("elapsed", elapsed),
		)
	}

	if err == nil {
		job.Status = model.JobSent
		job.LastError = ""
		if updateErr := w.jobs.Update(ctx, job); updateErr != nil {
			w.logger.Error("failed to mark job sent", zap.String("job_id", job.ID.String()), zap.Error(updateErr))
		}
		w.logger.Info("email job delivered",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
		)
		return
	}

	job.Attempts++
	job.LastError = err.Error()

	if job.Exhausted() {
		job.Status = model.JobFailed
		w.logger.Error("email job failed terminally",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempts", job.Attempts),
			zap.Error(err),
		)
	} else {
		job.Status = model.JobPending
		job.NextRunAt = time.Now().UTC().Add(w.cfg.RetryDelay)
		w.logger.Warn("email job failed, will retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempts", job.Attempts),
			zap.Error(err),
		)
	}

	if updateErr := w.jobs.Update(ctx, job); updateErr != nil {
		w.logger.Error("failed to record job outcome", zap.String("job_id", job.ID.String()), zap.Error(updateErr))
	}
}

// runWithTimeout executes the delivery under the hard wall-clock bound.
// A job that overruns is treated as a failure for retry purposes.
func (w *Worker) runWithTimeout(ctx context.Context, job *model.EmailJob) error {
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.HardTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.deliver(jobCtx, job)
	}()

	select {
	case err := <-done:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("job execution exceeded %s: %w", w.cfg.HardTimeout, jobCtx.Err())
	}
}

func (w *Worker) deliver(ctx context.Context, job *model.EmailJob) error {
	// Resend jobs carry the exact notification to re-deliver.
	if job.NotificationID != nil {
		n, err := w.notifications.FindByID(ctx, *job.NotificationID)
		if err != nil {
			return fmt.Errorf("load notification: %w", err)
		}
		req, err := w.requests.FindByIDWithRelations(ctx, job.RequestID)
		if err != nil {
			return fmt.Errorf("load request: %w", err)
		}
		return w.sendOne(ctx, req, n)
	}

	req, err := w.requests.FindByIDWithRelations(ctx, job.RequestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}

	recipients, err := w.resolveRecipients(ctx, req, job.Kind)
	if err != nil {
		return err
	}

	var firstErr error
	for i := range recipients {
		recipient := &recipients[i]
		n, err := w.notificationFor(ctx, req, job.Kind, recipient)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n.Sent {
			// Already delivered on an earlier attempt of this job.
			continue
		}
		if err := w.sendOne(ctx, req, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolveRecipients applies the fan-out rule: request_created goes to
// every active manager/admin, everything else to the request's creator.
func (w *Worker) resolveRecipients(ctx context.Context, req *model.Request, kind model.NotificationKind) ([]model.User, error) {
	if kind == model.KindRequestCreated {
		approvers, err := w.users.ListActiveApprovers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list approvers: %w", err)
		}
		return approvers, nil
	}

	if req.Creator != nil {
		return []model.User{*req.Creator}, nil
	}
	creator, err := w.users.GetByID(ctx, req.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("load creator: %w", err)
	}
	return []model.User{*creator}, nil
}

// notificationFor finds the per-recipient delivery ledger row for this
// (request, kind) event, creating it on the first attempt.
func (w *Worker) notificationFor(ctx context.Context, req *model.Request, kind model.NotificationKind, recipient *model.User) (*model.Notification, error) {
	n, err := w.notifications.FindForDelivery(ctx, req.ID, kind, recipient.Email)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find notification: %w", err)
	}

	n = model.NewEmailNotification(req, kind, recipient.Email, recipient.FullName())
	if err := w.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// sendOne attempts delivery of a single notification and records the
// explicit outcome on its row: MarkSent on success, RecordFailure with the
// transport error otherwise.
func (w *Worker) sendOne(ctx context.Context, req *model.Request, n *model.Notification) error {
	body, htmlBody := ComposeBody(req, n.Kind, n.RecipientName)
	msg := Message{
		To:       n.RecipientEmail,
		ToName:   n.RecipientName,
		Subject:  n.Subject,
		Body:     body,
		HTMLBody: htmlBody,
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		n.RecordFailure(err.Error())
		if updateErr := w.notifications.Update(ctx, n); updateErr != nil {
			w.logger.Error("failed to record delivery failure",
				zap.String("notification_id", n.ID.String()),
				zap.Error(updateErr),
			)
		}
		return fmt.Errorf("send to %s: %w", n.RecipientEmail, err)
	}

	n.MarkSent()
	if err := w.notifications.Update(ctx, n); err != nil {
		w.logger.Error("failed to record delivery success",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("email sent",
		zap.String("notification_id", n.ID.String()),
		zap.String("to", n.RecipientEmail),
		zap.String("kind", string(n.Kind)),
	)
	return nil
}
