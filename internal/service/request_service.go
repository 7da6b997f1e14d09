package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"solicitudes/internal/model"
	"solicitudes/internal/policy"
	"solicitudes/internal/queue"
	"solicitudes/internal/repository"
	"solicitudes/pkg/apperr"
	"solicitudes/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRequestDTO struct {
	Type          string  `json:"type" binding:"required"`
	Title         string  `json:"title" binding:"required,max=200"`
	Description   string  `json:"description" binding:"required"`
	Priority      string  `json:"priority"`
	RequiredBy    string  `json:"required_by"`     // YYYY-MM-DD
	EstimatedCost *string `json:"estimated_cost"`  // decimal string
}

type UpdateRequestDTO struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Priority      *string `json:"priority"`
	RequiredBy    *string `json:"required_by"`
	EstimatedCost *string `json:"estimated_cost"`
}

type TransitionDTO struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

type RequestListFilter struct {
	Type     string
	Status   string
	Priority string
	UserID   string
	Page     pagination.Params
}

type RequestResponse struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	Priority      string  `json:"priority"`
	Comments      string  `json:"comments"`
	RequiredBy    *string `json:"required_by"`
	EstimatedCost *string `json:"estimated_cost"`
	CreatorID     string  `json:"creator_id"`
	CreatorName   string  `json:"creator_name,omitempty"`
	ApproverID    *string `json:"approver_id"`
	ApproverName  string  `json:"approver_name,omitempty"`
	ApprovedAt    *string `json:"approved_at"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// --- Interface ---

// Broadcaster pushes freshly committed in-app notifications to connected
// clients. The websocket hub implements it.
type Broadcaster interface {
	Broadcast(payload []byte)
}

type RequestService interface {
	Create(ctx context.Context, actor *model.User, dto CreateRequestDTO) (*RequestResponse, error)
	List(ctx context.Context, actor *model.User, filter RequestListFilter) ([]RequestResponse, pagination.Meta, error)
	Get(ctx context.Context, actor *model.User, id string) (*RequestResponse, error)
	Update(ctx context.Context, actor *model.User, id string, dto UpdateRequestDTO) (*RequestResponse, error)
	Delete(ctx context.Context, actor *model.User, id string) error
	Transition(ctx context.Context, actor *model.User, id string, dto TransitionDTO) (*RequestResponse, error)
	Stats(ctx context.Context, actor *model.User) (*repository.RequestStats, error)
}

type requestService struct {
	requests      repository.RequestRepository
	notifications repository.NotificationRepository
	txManager     repository.TransactionManager
	queue         queue.Queue
	hub           Broadcaster
	logger        *zap.Logger
}

func NewRequestService(
	requests repository.RequestRepository,
	notifications repository.NotificationRepository,
	txManager repository.TransactionManager,
	q queue.Queue,
	hub Broadcaster,
	logger *zap.Logger,
) RequestService {
	return &requestService{
		requests:      requests,
		notifications: notifications,
		txManager:     txManager,
		queue:         q,
		hub:           hub,
		logger:        logger,
	}
}

// --- Implementation ---

func (s *requestService) Create(ctx context.Context, actor *model.User, dto CreateRequestDTO) (*RequestResponse, error) {
	if d := policy.CanCreateRequest(actor); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}

	fields := map[string]string{}
	reqType := model.RequestType(dto.Type)
	if !reqType.Valid() {
		fields["type"] = "must be one of: purchase, maintenance, support, other"
	}

	priority := model.PriorityMedium
	if dto.Priority != "" {
		priority = model.RequestPriority(dto.Priority)
		if !priority.Valid() {
			fields["priority"] = "must be one of: low, medium, high, urgent"
		}
	}

	requiredBy, err := parseDate(dto.RequiredBy)
	if err != nil {
		fields["required_by"] = "must be a date in YYYY-MM-DD format"
	}

	cost, err := parseCost(dto.EstimatedCost)
	if err != nil {
		fields["estimated_cost"] = "must be a non-negative decimal amount"
	}

	if len(fields) > 0 {
		return nil, apperr.Validation("invalid request payload", fields)
	}

	req := &model.Request{
		Type:          reqType,
		Title:         dto.Title,
		Description:   dto.Description,
		Status:        model.StatusPending,
		Priority:      priority,
		RequiredBy:    requiredBy,
		EstimatedCost: cost,
		CreatorID:     actor.ID,
	}

	// The request row and its email job commit together, so the worker
	// fan-out to managers/admins can never be lost once Create returns.
	// The worker only sees the job after the transaction commits.
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.requests.Create(txCtx, req); createErr != nil {
			return createErr
		}
		return s.queue.EnqueueRequestEmail(txCtx, req.ID, model.KindRequestCreated)
	})
	if err != nil {
		return nil, apperr.Database(err)
	}

	loaded, err := s.requests.FindByIDWithRelations(ctx, req.ID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return toRequestResponse(loaded), nil
}

func (s *requestService) List(ctx context.Context, actor *model.User, filter RequestListFilter) ([]RequestResponse, pagination.Meta, error) {
	repoFilter := repository.RequestFilter{
		Page:    filter.Page.Page,
		PerPage: filter.Page.PerPage,
	}

	fields := map[string]string{}
	if filter.Type != "" {
		t := model.RequestType(filter.Type)
		if !t.Valid() {
			fields["type"] = "unknown request type"
		}
		repoFilter.Type = t
	}
	if filter.Status != "" {
		st := model.RequestStatus(filter.Status)
		if !st.Valid() {
			fields["status"] = "unknown status"
		}
		repoFilter.Status = st
	}
	if filter.Priority != "" {
		p := model.RequestPriority(filter.Priority)
		if !p.Valid() {
			fields["priority"] = "unknown priority"
		}
		repoFilter.Priority = p
	}
	if len(fields) > 0 {
		return nil, pagination.Meta{}, apperr.Validation("invalid filter", fields)
	}

	// Employees are always scoped to their own requests; managers and
	// admins may optionally narrow to a specific creator.
	if !actor.Role.CanApprove() {
		creatorID := actor.ID
		repoFilter.CreatorID = &creatorID
	} else if filter.UserID != "" {
		creatorID, err := uuid.Parse(filter.UserID)
		if err != nil {
			return nil, pagination.Meta{}, apperr.Validation("invalid filter", map[string]string{"user_id": "must be a valid UUID"})
		}
		repoFilter.CreatorID = &creatorID
	}

	requests, total, err := s.requests.List(ctx, repoFilter)
	if err != nil {
		return nil, pagination.Meta{}, apperr.Database(err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		result = append(result, *toRequestResponse(&requests[i]))
	}
	return result, pagination.NewMeta(total, filter.Page), nil
}

func (s *requestService) Get(ctx context.Context, actor *model.User, id string) (*RequestResponse, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := policy.CanViewRequest(actor, req); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	return toRequestResponse(req), nil
}

func (s *requestService) Update(ctx context.Context, actor *model.User, id string, dto UpdateRequestDTO) (*RequestResponse, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	if d := policy.CanEditRequest(actor, req); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	// Terminal-for-editing: once processed, nobody edits, the creator
	// included.
	if !req.Pending() {
		return nil, apperr.Conflict("a processed request can no longer be edited")
	}

	fields := map[string]string{}
	if dto.Title != nil {
		if *dto.Title == "" {
			fields["title"] = "must not be empty"
		} else {
			req.Title = *dto.Title
		}
	}
	if dto.Description != nil {
		if *dto.Description == "" {
			fields["description"] = "must not be empty"
		} else {
			req.Description = *dto.Description
		}
	}
	if dto.Priority != nil {
		p := model.RequestPriority(*dto.Priority)
		if !p.Valid() {
			fields["priority"] = "must be one of: low, medium, high, urgent"
		} else {
			req.Priority = p
		}
	}
	if dto.RequiredBy != nil {
		requiredBy, parseErr := parseDate(*dto.RequiredBy)
		if parseErr != nil {
			fields["required_by"] = "must be a date in YYYY-MM-DD format"
		} else {
			req.RequiredBy = requiredBy
		}
	}
	if dto.EstimatedCost != nil {
		cost, parseErr := parseCost(dto.EstimatedCost)
		if parseErr != nil {
			fields["estimated_cost"] = "must be a non-negative decimal amount"
		} else {
			req.EstimatedCost = cost
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid request payload", fields)
	}

	if err := s.requests.Update(ctx, req); err != nil {
		return nil, apperr.Database(err)
	}

	loaded, err := s.requests.FindByIDWithRelations(ctx, req.ID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return toRequestResponse(loaded), nil
}

func (s *requestService) Delete(ctx context.Context, actor *model.User, id string) error {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return err
	}

	if d := policy.CanDeleteRequest(actor, req); !d.Allowed {
		return apperr.Forbidden(d.Reason)
	}

	// Cascades to the request's notifications and queued jobs.
	if err := s.requests.Delete(ctx, req.ID); err != nil {
		return apperr.Database(err)
	}

	s.logger.Info("request deleted",
		zap.String("request_id", req.ID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return nil
}

// Transition orchestrates a status change: authorize, validate, then
// commit the state mutation, the in-app notification and the email job
// atomically, and only after the commit push to the hub. A failed
// transaction leaves no partial state and sends nothing.
func (s *requestService) Transition(ctx context.Context, actor *model.User, id string, dto TransitionDTO) (*RequestResponse, error) {
	if d := policy.CanTransition(actor); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}

	newStatus := model.RequestStatus(dto.Status)
	if !newStatus.TransitionTarget() {
		return nil, apperr.Validation("invalid status", map[string]string{
			"status": "must be one of: approved, rejected, in_progress, completed",
		})
	}

	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	var inApp *model.Notification
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req.Transition(newStatus, actor.ID, dto.Comment)
		if updateErr := s.requests.Update(txCtx, req); updateErr != nil {
			return updateErr
		}

		if newStatus == model.StatusApproved || newStatus == model.StatusRejected {
			kind := model.KindRequestApproved
			if newStatus == model.StatusRejected {
				kind = model.KindRequestRejected
			}
			inApp = model.NewInAppNotification(req, kind, dto.Comment)
			if createErr := s.notifications.Create(txCtx, inApp); createErr != nil {
				return createErr
			}
			// The email job commits with the status change and the in-app
			// row; the worker only observes it once the transaction is
			// durable.
			if enqueueErr := s.queue.EnqueueRequestEmail(txCtx, req.ID, kind); enqueueErr != nil {
				return enqueueErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Database(err)
	}

	// The transaction is durable; the live push may now proceed.
	if inApp != nil {
		if s.hub != nil {
			if payload, marshalErr := json.Marshal(inApp); marshalErr == nil {
				s.hub.Broadcast(payload)
			}
		}
	}

	s.logger.Info("request transitioned",
		zap.String("request_id", req.ID.String()),
		zap.String("status", string(newStatus)),
		zap.String("actor_id", actor.ID.String()),
	)

	loaded, err := s.requests.FindByIDWithRelations(ctx, req.ID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return toRequestResponse(loaded), nil
}

func (s *requestService) Stats(ctx context.Context, actor *model.User) (*repository.RequestStats, error) {
	if d := policy.CanViewStats(actor); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	stats, err := s.requests.Stats(ctx)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return stats, nil
}

// --- Helpers ---

func (s *requestService) loadRequest(ctx context.Context, id string) (*model.Request, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid request id", map[string]string{"id": "must be a valid UUID"})
	}

	req, err := s.requests.FindByIDWithRelations(ctx, reqID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("request")
		}
		return nil, apperr.Database(err)
	}
	return req, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseCost(value *string) (*decimal.Decimal, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, errors.New("estimated cost must not be negative")
	}
	return &d, nil
}

func toRequestResponse(r *model.Request) *RequestResponse {
	resp := &RequestResponse{
		ID:          r.ID.String(),
		Type:        string(r.Type),
		Title:       r.Title,
		Description: r.Description,
		Status:      string(r.Status),
		Priority:    string(r.Priority),
		Comments:    r.Comments,
		CreatorID:   r.CreatorID.String(),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}

	if r.RequiredBy != nil {
		d := r.RequiredBy.Format("2006-01-02")
		resp.RequiredBy = &d
	}
	if r.EstimatedCost != nil {
		c := r.EstimatedCost.StringFixed(2)
		resp.EstimatedCost = &c
	}
	if r.Creator != nil {
		resp.CreatorName = r.Creator.FullName()
	}
	if r.ApproverID != nil {
		id := r.ApproverID.String()
		resp.ApproverID = &id
	}
	if r.Approver != nil {
		resp.ApproverName = r.Approver.FullName()
	}
	if r.ApprovedAt != nil {
		ts := r.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &ts
	}

	return resp
}
