package repository

import (
	"context"

	"solicitudes/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestFilter narrows request listings. Zero values mean "no filter".
type RequestFilter struct {
	Type      model.RequestType
	Status    model.RequestStatus
	Priority  model.RequestPriority
	CreatorID *uuid.UUID
	Page      int
	PerPage   int
}

// RequestStats aggregates request counts for the reporting endpoint.
type RequestStats struct {
	Total      int64                           `json:"total"`
	ByStatus   map[model.RequestStatus]int64   `json:"by_status"`
	ByType     map[model.RequestType]int64     `json:"by_type"`
	ByPriority map[model.RequestPriority]int64 `json:"by_priority"`
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error)
	List(ctx context.Context, filter RequestFilter) ([]model.Request, int64, error)
	Update(ctx context.Context, req *model.Request) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*RequestStats, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).Preload("Creator").Preload("Approver").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Priority != "" {
			q = q.Where("priority = ?", filter.Priority)
		}
		if filter.CreatorID != nil {
			q = q.Where("creator_id = ?", *filter.CreatorID)
		}
		return q
	}

	if err := apply(db.Model(&model.Request{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PerPage
	err := apply(db.Preload("Creator").Preload("Approver")).
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.PerPage).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) Update(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Save(req).Error
}

// Delete removes the request together with its notifications and queued
// email jobs in one transaction. The cascade is explicit rather than
// inferred from foreign-key constraints.
func (r *requestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", id).Delete(&model.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", id).Delete(&model.EmailJob{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Request{}).Error
	})
}

func (r *requestRepository) Stats(ctx context.Context) (*RequestStats, error) {
	db := GetDB(ctx, r.db)
	stats := &RequestStats{
		ByStatus:   make(map[model.RequestStatus]int64),
		ByType:     make(map[model.RequestType]int64),
		ByPriority: make(map[model.RequestPriority]int64),
	}

	if err := db.Model(&model.Request{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	if err := db.Model(&model.Request{}).Select("status AS key, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, b := range byStatus {
		stats.ByStatus[model.RequestStatus(b.Key)] = b.Count
	}

	var byType []bucket
	if err := db.Model(&model.Request{}).Select("type AS key, COUNT(*) AS count").Group("type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, b := range byType {
		stats.ByType[model.RequestType(b.Key)] = b.Count
	}

	var byPriority []bucket
	if err := db.Model(&model.Request{}).Select("priority AS key, COUNT(*) AS count").Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, err
	}
	for _, b := range byPriority {
		stats.ByPriority[model.RequestPriority(b.Key)] = b.Count
	}

	return stats, nil
}
