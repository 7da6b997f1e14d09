package repository

import (
	"context"
	"time"

	"solicitudes/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmailJobRepository is the durable queue backing the delivery worker.
type EmailJobRepository interface {
	Create(ctx context.Context, job *model.EmailJob) error
	// ClaimDue atomically picks up to limit due pending jobs and marks them
	// processing, so concurrent workers never run the same job twice. It also
	// reclaims processing jobs untouched for longer than staleAfter, which
	// belong to workers that died mid-delivery.
	ClaimDue(ctx context.Context, limit int, staleAfter time.Duration) ([]model.EmailJob, error)
	Update(ctx context.Context, job *model.EmailJob) error
}

type emailJobRepository struct {
	db *gorm.DB
}

func NewEmailJobRepository(db *gorm.DB) EmailJobRepository {
	return &emailJobRepository{db: db}
}

func (r *emailJobRepository) Create(ctx context.Context, job *model.EmailJob) error {
	return GetDB(ctx, r.db).Create(job).Error
}

func (r *emailJobRepository) ClaimDue(ctx context.Context, limit int, staleAfter time.Duration) ([]model.EmailJob, error) {
	var jobs []model.EmailJob
	now := time.Now().UTC()
	err := GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? AND next_run_at <= ?) OR (status = ? AND updated_at <= ?)",
				model.JobPending, now, model.JobProcessing, now.Add(-staleAfter)).
			Order("next_run_at ASC").
			Limit(limit).
			Find(&jobs).Error
		if err != nil {
			return err
		}

		// Re-marking refreshes updated_at, so a freshly claimed job is not
		// immediately seen as stale by another worker.
		for i := range jobs {
			jobs[i].Status = model.JobProcessing
			if err := tx.Model(&model.EmailJob{}).
				Where("id = ?", jobs[i].ID).
				Update("status", model.JobProcessing).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *emailJobRepository) Update(ctx context.Context, job *model.EmailJob) error {
	return GetDB(ctx, r.db).Save(job).Error
}
