package repository

import (
	"context"

	"solicitudes/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationFilter narrows notification listings. RequestIDs, when
// non-nil, restricts rows to those requests (used to scope non-admin
// callers to their own requests).
type NotificationFilter struct {
	Kind       model.NotificationKind
	Sent       *bool
	RequestID  *uuid.UUID
	RequestIDs []uuid.UUID
	Page       int
	PerPage    int
}

// NotificationStats aggregates delivery counters for the reporting endpoint.
type NotificationStats struct {
	Total      int64                             `json:"total"`
	SentCount  int64                             `json:"sent"`
	Unsent     int64                             `json:"unsent"`
	WithErrors int64                             `json:"with_errors"`
	ByKind     map[model.NotificationKind]int64  `json:"by_kind"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	FindByIDWithRequest(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	// FindForDelivery locates the email notification for one recipient of a
	// (request, kind) delivery, so a retried job reuses its ledger row.
	FindForDelivery(ctx context.Context, requestID uuid.UUID, kind model.NotificationKind, email string) (*model.Notification, error)
	List(ctx context.Context, filter NotificationFilter) ([]model.Notification, int64, error)
	ListPending(ctx context.Context, maxAttempts int) ([]model.Notification, error)
	ListRequestIDsByCreator(ctx context.Context, creatorID uuid.UUID) ([]uuid.UUID, error)
	Update(ctx context.Context, n *model.Notification) error
	Stats(ctx context.Context) (*NotificationStats, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return GetDB(ctx, r.db).Create(n).Error
}

func (r *notificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	if err := GetDB(ctx, r.db).First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) FindByIDWithRequest(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	if err := GetDB(ctx, r.db).Preload("Request").First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) FindForDelivery(ctx context.Context, requestID uuid.UUID, kind model.NotificationKind, email string) (*model.Notification, error) {
	var n model.Notification
	err := GetDB(ctx, r.db).
		Where("request_id = ? AND kind = ? AND recipient_email = ?", requestID, kind, email).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]model.Notification, int64, error) {
	var notifications []model.Notification
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if filter.Sent != nil {
			q = q.Where("sent = ?", *filter.Sent)
		}
		if filter.RequestID != nil {
			q = q.Where("request_id = ?", *filter.RequestID)
		}
		if filter.RequestIDs != nil {
			q = q.Where("request_id IN ?", filter.RequestIDs)
		}
		return q
	}

	if err := apply(db.Model(&model.Notification{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PerPage
	err := apply(db.Preload("Request")).
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.PerPage).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// ListPending returns unsent email notifications that have not yet
// exhausted the retry budget. This is the operator-facing terminal-failure
// watch list when maxAttempts is the configured bound.
func (r *notificationRepository) ListPending(ctx context.Context, maxAttempts int) ([]model.Notification, error) {
	var notifications []model.Notification
	err := GetDB(ctx, r.db).
		Where("recipient_email <> '' AND sent = ? AND attempts < ?", false, maxAttempts).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) ListRequestIDsByCreator(ctx context.Context, creatorID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).
		Model(&model.Request{}).
		Where("creator_id = ?", creatorID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *notificationRepository) Update(ctx context.Context, n *model.Notification) error {
	return GetDB(ctx, r.db).Save(n).Error
}

func (r *notificationRepository) Stats(ctx context.Context) (*NotificationStats, error) {
	db := GetDB(ctx, r.db)
	stats := &NotificationStats{ByKind: make(map[model.NotificationKind]int64)}

	if err := db.Model(&model.Notification{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Notification{}).Where("sent = ?", true).Count(&stats.SentCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Notification{}).Where("recipient_email <> '' AND sent = ?", false).Count(&stats.Unsent).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Notification{}).Where("sent = ? AND attempts > 0", false).Count(&stats.WithErrors).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var byKind []bucket
	if err := db.Model(&model.Notification{}).Select("kind AS key, COUNT(*) AS count").Group("kind").Scan(&byKind).Error; err != nil {
		return nil, err
	}
	for _, b := range byKind {
		stats.ByKind[model.NotificationKind(b.Key)] = b.Count
	}

	return stats, nil
}
