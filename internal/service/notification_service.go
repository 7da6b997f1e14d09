package service

import (
	"context"
	"errors"
	"time"

	"solicitudes/internal/model"
	"solicitudes/internal/policy"
	"solicitudes/internal/queue"
	"solicitudes/internal/repository"
	"solicitudes/pkg/apperr"
	"solicitudes/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type NotificationListFilter struct {
	Kind      string
	Sent      *bool
	RequestID string
	Page      pagination.Params
}

type NotificationResponse struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	UserID         *string `json:"user_id"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	Read           bool    `json:"read"`
	ReadAt         *string `json:"read_at"`
	RecipientEmail string  `json:"recipient_email"`
	RecipientName  string  `json:"recipient_name"`
	Subject        string  `json:"subject"`
	Sent           bool    `json:"sent"`
	SentAt         *string `json:"sent_at"`
	Attempts       int     `json:"attempts"`
	LastError      string  `json:"last_error"`
	RequestID      string  `json:"request_id"`
	CreatedAt      string  `json:"created_at"`
}

// --- Interface ---

type NotificationService interface {
	List(ctx context.Context, actor *model.User, filter NotificationListFilter) ([]NotificationResponse, pagination.Meta, error)
	Get(ctx context.Context, actor *model.User, id string) (*NotificationResponse, error)
	MarkRead(ctx context.Context, actor *model.User, id string) (*NotificationResponse, error)
	ListPending(ctx context.Context, actor *model.User) ([]NotificationResponse, error)
	Resend(ctx context.Context, actor *model.User, id string) error
	Stats(ctx context.Context, actor *model.User) (*repository.NotificationStats, error)
}

type notificationService struct {
	notifications repository.NotificationRepository
	requests      repository.RequestRepository
	queue         queue.Queue
	logger        *zap.Logger
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	requests repository.RequestRepository,
	q queue.Queue,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		requests:      requests,
		queue:         q,
		logger:        logger,
	}
}

// --- Implementation ---

func (s *notificationService) List(ctx context.Context, actor *model.User, filter NotificationListFilter) ([]NotificationResponse, pagination.Meta, error) {
	repoFilter := repository.NotificationFilter{
		Sent:    filter.Sent,
		Page:    filter.Page.Page,
		PerPage: filter.Page.PerPage,
	}

	if filter.Kind != "" {
		kind := model.NotificationKind(filter.Kind)
		if !kind.Valid() {
			return nil, pagination.Meta{}, apperr.Validation("invalid filter", map[string]string{"kind": "unknown notification kind"})
		}
		repoFilter.Kind = kind
	}

	if filter.RequestID != "" {
		reqID, err := uuid.Parse(filter.RequestID)
		if err != nil {
			return nil, pagination.Meta{}, apperr.Validation("invalid filter", map[string]string{"request_id": "must be a valid UUID"})
		}
		req, err := s.requests.FindByID(ctx, reqID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pagination.Meta{}, apperr.NotFound("request")
			}
			return nil, pagination.Meta{}, apperr.Database(err)
		}
		if d := policy.CanViewNotification(actor, req.CreatorID); !d.Allowed {
			return nil, pagination.Meta{}, apperr.Forbidden(d.Reason)
		}
		repoFilter.RequestID = &reqID
	} else if actor.Role != model.RoleAdmin {
		// Non-admins only see notifications attached to their own requests.
		ids, err := s.notifications.ListRequestIDsByCreator(ctx, actor.ID)
		if err != nil {
			return nil, pagination.Meta{}, apperr.Database(err)
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		repoFilter.RequestIDs = ids
	}

	notifications, total, err := s.notifications.List(ctx, repoFilter)
	if err != nil {
		return nil, pagination.Meta{}, apperr.Database(err)
	}

	result := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		result = append(result, *toNotificationResponse(&notifications[i]))
	}
	return result, pagination.NewMeta(total, filter.Page), nil
}

func (s *notificationService) Get(ctx context.Context, actor *model.User, id string) (*NotificationResponse, error) {
	n, err := s.loadNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, actor, n); err != nil {
		return nil, err
	}
	return toNotificationResponse(n), nil
}

// MarkRead marks an in-app notification as read. Idempotent: marking an
// already-read notification succeeds and keeps the original read timestamp.
func (s *notificationService) MarkRead(ctx context.Context, actor *model.User, id string) (*NotificationResponse, error) {
	n, err := s.loadNotification(ctx, id)
	if err != nil {
		return nil, err
	}

	if n.UserID == nil {
		return nil, apperr.Conflict("notification has no in-app recipient")
	}
	if *n.UserID != actor.ID && actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("you may only mark your own notifications as read")
	}

	if !n.Read {
		n.MarkRead()
		if err := s.notifications.Update(ctx, n); err != nil {
			return nil, apperr.Database(err)
		}
	}
	return toNotificationResponse(n), nil
}

func (s *notificationService) ListPending(ctx context.Context, actor *model.User) ([]NotificationResponse, error) {
	if d := policy.CanResendNotification(actor); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}

	notifications, err := s.notifications.ListPending(ctx, model.DefaultMaxAttempts)
	if err != nil {
		return nil, apperr.Database(err)
	}

	result := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		result = append(result, *toNotificationResponse(&notifications[i]))
	}
	return result, nil
}

// Resend queues another delivery attempt for an existing email
// notification, regardless of how many attempts it has already used.
func (s *notificationService) Resend(ctx context.Context, actor *model.User, id string) error {
	if d := policy.CanResendNotification(actor); !d.Allowed {
		return apperr.Forbidden(d.Reason)
	}

	n, err := s.loadNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientEmail == "" {
		return apperr.Conflict("notification has no email recipient")
	}

	if err := s.queue.EnqueueResend(ctx, n); err != nil {
		return apperr.Database(err)
	}

	s.logger.Info("notification resend requested",
		zap.String("notification_id", n.ID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return nil
}

func (s *notificationService) Stats(ctx context.Context, actor *model.User) (*repository.NotificationStats, error) {
	if d := policy.CanViewStats(actor); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	stats, err := s.notifications.Stats(ctx)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return stats, nil
}

// --- Helpers ---

func (s *notificationService) loadNotification(ctx context.Context, id string) (*model.Notification, error) {
	notifID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid notification id", map[string]string{"id": "must be a valid UUID"})
	}

	n, err := s.notifications.FindByID(ctx, notifID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("notification")
		}
		return nil, apperr.Database(err)
	}
	return n, nil
}

func (s *notificationService) authorizeView(ctx context.Context, actor *model.User, n *model.Notification) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}
	req, err := s.requests.FindByID(ctx, n.RequestID)
	if err != nil {
		return apperr.Database(err)
	}
	if d := policy.CanViewNotification(actor, req.CreatorID); !d.Allowed {
		return apperr.Forbidden(d.Reason)
	}
	return nil
}

func toNotificationResponse(n *model.Notification) *NotificationResponse {
	resp := &NotificationResponse{
		ID:             n.ID.String(),
		Kind:           string(n.Kind),
		Title:          n.Title,
		Message:        n.Message,
		Read:           n.Read,
		RecipientEmail: n.RecipientEmail,
		RecipientName:  n.RecipientName,
		Subject:        n.Subject,
		Sent:           n.Sent,
		Attempts:       n.Attempts,
		LastError:      n.LastError,
		RequestID:      n.RequestID.String(),
		CreatedAt:      n.CreatedAt.Format(time.RFC3339),
	}

	if n.UserID != nil {
		id := n.UserID.String()
		resp.UserID = &id
	}
	if n.ReadAt != nil {
		ts := n.ReadAt.Format(time.RFC3339)
		resp.ReadAt = &ts
	}
	if n.SentAt != nil {
		ts := n.SentAt.Format(time.RFC3339)
		resp.SentAt = &ts
	}

	return resp
}
