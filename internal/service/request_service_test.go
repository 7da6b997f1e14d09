package service

import (
	"context"
	"errors"
	"testing"

	"solicitudes/internal/model"
	"solicitudes/pkg/apperr"
	"solicitudes/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type requestServiceFixture struct {
	requests      *fakeRequestRepo
	notifications *fakeNotificationRepo
	queue         *fakeQueue
	hub           *fakeHub
	svc           RequestService
}

func newRequestServiceFixture() *requestServiceFixture {
	f := &requestServiceFixture{
		requests:      newFakeRequestRepo(),
		notifications: newFakeNotificationRepo(),
		queue:         &fakeQueue{},
		hub:           &fakeHub{},
	}
	f.svc = NewRequestService(f.requests, f.notifications, fakeTxManager{}, f.queue, f.hub, zap.NewNop())
	return f
}

func activeUser(role model.Role) *model.User {
	return &model.User{
		ID:        uuid.New(),
		Email:     string(role) + "@example.com",
		FirstName: "Test",
		Role:      role,
		Active:    true,
	}
}

func TestCreateRequestEnqueuesCreationEmail(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)

	resp, err := f.svc.Create(context.Background(), employee, CreateRequestDTO{
		Type:        "purchase",
		Title:       "New laptop",
		Description: "Current one is failing",
	})
	require.NoError(t, err)

	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "medium", resp.Priority, "priority defaults to medium")
	assert.Equal(t, employee.ID.String(), resp.CreatorID)

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, model.KindRequestCreated, f.queue.jobs[0].kind)
	assert.Nil(t, f.queue.jobs[0].notificationID)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)

	cost := "-10.00"
	_, err := f.svc.Create(context.Background(), employee, CreateRequestDTO{
		Type:          "vacation",
		Title:         "x",
		Description:   "y",
		Priority:      "critical",
		RequiredBy:    "31-12-2026",
		EstimatedCost: &cost,
	})

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "type")
	assert.Contains(t, e.Fields, "priority")
	assert.Contains(t, e.Fields, "required_by")
	assert.Contains(t, e.Fields, "estimated_cost")
	assert.Empty(t, f.queue.jobs, "invalid payload must enqueue nothing")
}

func TestCreateRequestInactiveUserForbidden(t *testing.T) {
	f := newRequestServiceFixture()
	user := activeUser(model.RoleEmployee)
	user.Active = false

	_, err := f.svc.Create(context.Background(), user, CreateRequestDTO{
		Type: "purchase", Title: "t", Description: "d",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
}

func TestEmployeeCannotTransition(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)

	req := &model.Request{CreatorID: employee.ID, Status: model.StatusPending, Type: model.RequestTypePurchase}
	require.NoError(t, f.requests.Create(context.Background(), req))

	_, err := f.svc.Transition(context.Background(), employee, req.ID.String(), TransitionDTO{Status: "approved"})
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization), "even on their own request")
	assert.Empty(t, f.queue.jobs)
}

func TestManagerApprovesRequest(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)
	manager := activeUser(model.RoleManager)

	req := &model.Request{
		CreatorID:   employee.ID,
		Status:      model.StatusPending,
		Type:        model.RequestTypePurchase,
		Title:       "New office chair",
		Description: "Back pain",
	}
	require.NoError(t, f.requests.Create(context.Background(), req))

	resp, err := f.svc.Transition(context.Background(), manager, req.ID.String(), TransitionDTO{
		Status:  "approved",
		Comment: "Budget confirmed",
	})
	require.NoError(t, err)

	assert.Equal(t, "approved", resp.Status)
	require.NotNil(t, resp.ApproverID)
	assert.Equal(t, manager.ID.String(), *resp.ApproverID)
	require.NotNil(t, resp.ApprovedAt)
	assert.Equal(t, "Budget confirmed", resp.Comments)

	// In-app notification committed with the status change.
	require.Len(t, f.notifications.notifications, 1)
	for _, n := range f.notifications.notifications {
		assert.Equal(t, model.KindRequestApproved, n.Kind)
		require.NotNil(t, n.UserID)
		assert.Equal(t, employee.ID, *n.UserID)
		assert.Contains(t, n.Message, "Budget confirmed")
		assert.False(t, n.Read)
	}

	// Email job committed with the status change, and the hub was notified.
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, model.KindRequestApproved, f.queue.jobs[0].kind)
	assert.Equal(t, req.ID, f.queue.jobs[0].requestID)
	assert.Len(t, f.hub.payloads, 1)
}

func TestTransitionToNonApprovalCreatesNoNotification(t *testing.T) {
	f := newRequestServiceFixture()
	manager := activeUser(model.RoleManager)

	req := &model.Request{CreatorID: uuid.New(), Status: model.StatusApproved, Type: model.RequestTypeSupport}
	require.NoError(t, f.requests.Create(context.Background(), req))

	resp, err := f.svc.Transition(context.Background(), manager, req.ID.String(), TransitionDTO{Status: "in_progress"})
	require.NoError(t, err)

	assert.Equal(t, "in_progress", resp.Status)
	assert.Empty(t, f.notifications.notifications)
	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.hub.payloads)
}

func TestTransitionToPendingRejected(t *testing.T) {
	f := newRequestServiceFixture()
	manager := activeUser(model.RoleManager)

	req := &model.Request{CreatorID: uuid.New(), Status: model.StatusApproved}
	require.NoError(t, f.requests.Create(context.Background(), req))

	_, err := f.svc.Transition(context.Background(), manager, req.ID.String(), TransitionDTO{Status: "pending"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTransitionFailureEnqueuesNothing(t *testing.T) {
	f := newRequestServiceFixture()
	manager := activeUser(model.RoleManager)
	f.notifications.createErr = errors.New("constraint violation")

	req := &model.Request{CreatorID: uuid.New(), Status: model.StatusPending}
	require.NoError(t, f.requests.Create(context.Background(), req))

	_, err := f.svc.Transition(context.Background(), manager, req.ID.String(), TransitionDTO{Status: "approved"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindDatabase))

	assert.Empty(t, f.queue.jobs, "a failed transaction must send nothing")
	assert.Empty(t, f.hub.payloads)
}

func TestCreateFailsWhenEnqueueFails(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)
	f.queue.err = errors.New("email_jobs insert failed")

	_, err := f.svc.Create(context.Background(), employee, CreateRequestDTO{
		Type: "purchase", Title: "New laptop", Description: "d",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindDatabase),
		"the email job commits with the request, so its failure fails the create")
}

func TestTransitionFailsWhenEnqueueFails(t *testing.T) {
	f := newRequestServiceFixture()
	manager := activeUser(model.RoleManager)
	f.queue.err = errors.New("email_jobs insert failed")

	req := &model.Request{CreatorID: uuid.New(), Status: model.StatusPending}
	require.NoError(t, f.requests.Create(context.Background(), req))

	_, err := f.svc.Transition(context.Background(), manager, req.ID.String(), TransitionDTO{Status: "approved"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindDatabase))
	assert.Empty(t, f.hub.payloads, "nothing is pushed when the transaction fails")
}

func TestUpdateProcessedRequestConflicts(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)

	req := &model.Request{CreatorID: employee.ID, Status: model.StatusApproved, Title: "Old"}
	require.NoError(t, f.requests.Create(context.Background(), req))

	title := "New"
	_, err := f.svc.Update(context.Background(), employee, req.ID.String(), UpdateRequestDTO{Title: &title})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestUpdatePendingRequest(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)

	req := &model.Request{CreatorID: employee.ID, Status: model.StatusPending, Title: "Old", Description: "d"}
	require.NoError(t, f.requests.Create(context.Background(), req))

	title := "New"
	priority := "high"
	resp, err := f.svc.Update(context.Background(), employee, req.ID.String(), UpdateRequestDTO{
		Title:    &title,
		Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", resp.Title)
	assert.Equal(t, "high", resp.Priority)
}

func TestListScopesEmployeesToOwnRequests(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)

	_, _, err := f.svc.List(context.Background(), employee, RequestListFilter{Page: pagination.Normalize(1, 10)})
	require.NoError(t, err)

	require.NotNil(t, f.requests.lastFilter.CreatorID)
	assert.Equal(t, employee.ID, *f.requests.lastFilter.CreatorID)
}

func TestListManagerMayFilterByCreator(t *testing.T) {
	f := newRequestServiceFixture()
	manager := activeUser(model.RoleManager)
	target := uuid.New()

	_, _, err := f.svc.List(context.Background(), manager, RequestListFilter{
		UserID: target.String(),
		Page:   pagination.Normalize(1, 10),
	})
	require.NoError(t, err)

	require.NotNil(t, f.requests.lastFilter.CreatorID)
	assert.Equal(t, target, *f.requests.lastFilter.CreatorID)
}

func TestDeleteRules(t *testing.T) {
	f := newRequestServiceFixture()
	employee := activeUser(model.RoleEmployee)
	admin := activeUser(model.RoleAdmin)

	pending := &model.Request{CreatorID: employee.ID, Status: model.StatusPending}
	approved := &model.Request{CreatorID: employee.ID, Status: model.StatusApproved}
	require.NoError(t, f.requests.Create(context.Background(), pending))
	require.NoError(t, f.requests.Create(context.Background(), approved))

	require.NoError(t, f.svc.Delete(context.Background(), employee, pending.ID.String()))

	err := f.svc.Delete(context.Background(), employee, approved.ID.String())
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	require.NoError(t, f.svc.Delete(context.Background(), admin, approved.ID.String()))
	assert.Len(t, f.requests.deleted, 2)
}

func TestStatsRequiresApproverRole(t *testing.T) {
	f := newRequestServiceFixture()

	_, err := f.svc.Stats(context.Background(), activeUser(model.RoleEmployee))
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	stats, err := f.svc.Stats(context.Background(), activeUser(model.RoleManager))
	require.NoError(t, err)
	assert.NotNil(t, stats)
}

func TestGetUnknownRequest(t *testing.T) {
	f := newRequestServiceFixture()
	admin := activeUser(model.RoleAdmin)

	_, err := f.svc.Get(context.Background(), admin, uuid.New().String())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.svc.Get(context.Background(), admin, "not-a-uuid")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
