package service

import (
	"context"
	"sync"

	"solicitudes/internal/model"
	"solicitudes/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory fakes for the repository and queue interfaces. They keep the
// service tests independent of a database.

type fakeRequestRepo struct {
	mu         sync.Mutex
	requests   map[uuid.UUID]*model.Request
	lastFilter repository.RequestFilter
	updateErr  error
	deleted    []uuid.UUID
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[uuid.UUID]*model.Request{}}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *model.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRequestRepo) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRequestRepo) List(_ context.Context, filter repository.RequestFilter) ([]model.Request, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter

	var out []model.Request
	for _, req := range f.requests {
		if filter.CreatorID != nil && req.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, *req)
	}
	return out, int64(len(out)), nil
}

func (f *fakeRequestRepo) Update(_ context.Context, req *model.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.requests, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRequestRepo) Stats(_ context.Context) (*repository.RequestStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.RequestStats{
		ByStatus:   map[model.RequestStatus]int64{},
		ByType:     map[model.RequestType]int64{},
		ByPriority: map[model.RequestPriority]int64{},
	}
	for _, req := range f.requests {
		stats.Total++
		stats.ByStatus[req.Status]++
		stats.ByType[req.Type]++
		stats.ByPriority[req.Priority]++
	}
	return stats, nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
	requestIDs    []uuid.UUID // returned by ListRequestIDsByCreator
	lastFilter    repository.NotificationFilter
	createErr     error
	updateCount   int
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: map[uuid.UUID]*model.Notification{}}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	cp := *n
	f.notifications[n.ID] = &cp
	return nil
}

func (f *fakeNotificationRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationRepo) FindByIDWithRequest(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeNotificationRepo) FindForDelivery(_ context.Context, requestID uuid.UUID, kind model.NotificationKind, email string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.RequestID == requestID && n.Kind == kind && n.RecipientEmail == email {
			cp := *n
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNotificationRepo) List(_ context.Context, filter repository.NotificationFilter) ([]model.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter

	var out []model.Notification
	for _, n := range f.notifications {
		if filter.RequestID != nil && n.RequestID != *filter.RequestID {
			continue
		}
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) ListPending(_ context.Context, maxAttempts int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.notifications {
		if n.RecipientEmail != "" && !n.Sent && n.Attempts < maxAttempts {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) ListRequestIDsByCreator(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestIDs, nil
}

func (f *fakeNotificationRepo) Update(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCount++
	cp := *n
	f.notifications[n.ID] = &cp
	return nil
}

func (f *fakeNotificationRepo) Stats(_ context.Context) (*repository.NotificationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.NotificationStats{ByKind: map[model.NotificationKind]int64{}}
	for _, n := range f.notifications {
		stats.Total++
		stats.ByKind[n.Kind]++
		if n.Sent {
			stats.SentCount++
		}
	}
	return stats, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*model.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) List(_ context.Context, _, _ int) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) ListActiveApprovers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		if u.Active && u.Role.CanApprove() {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

// fakeTxManager runs the callback without a real transaction.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type enqueuedJob struct {
	requestID      uuid.UUID
	kind           model.NotificationKind
	notificationID *uuid.UUID
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueuedJob
	err  error
}

func (f *fakeQueue) EnqueueRequestEmail(_ context.Context, requestID uuid.UUID, kind model.NotificationKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueuedJob{requestID: requestID, kind: kind})
	return nil
}

func (f *fakeQueue) EnqueueResend(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	id := n.ID
	f.jobs = append(f.jobs, enqueuedJob{requestID: n.RequestID, kind: n.Kind, notificationID: &id})
	return nil
}

type fakeHub struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakeHub) Broadcast(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
}
