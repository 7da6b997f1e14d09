package queue

import (
	"context"
	"testing"
	"time"

	"solicitudes/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeJobRepo struct {
	created []*model.EmailJob
	err     error
}

func (f *fakeJobRepo) Create(_ context.Context, job *model.EmailJob) error {
	if f.err != nil {
		return f.err
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobRepo) ClaimDue(_ context.Context, _ int, _ time.Duration) ([]model.EmailJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) Update(_ context.Context, _ *model.EmailJob) error { return nil }

func TestEnqueueCarriesConfiguredAttemptBudget(t *testing.T) {
	repo := &fakeJobRepo{}
	q := New(repo, 5, zap.NewNop())

	requestID := uuid.New()
	require.NoError(t, q.EnqueueRequestEmail(context.Background(), requestID, model.KindRequestCreated))

	require.Len(t, repo.created, 1)
	job := repo.created[0]
	assert.Equal(t, requestID, job.RequestID)
	assert.Equal(t, model.KindRequestCreated, job.Kind)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, 5, job.MaxAttempts)
	assert.Nil(t, job.NotificationID)
	assert.False(t, job.NextRunAt.IsZero())
}

func TestEnqueueResendTargetsNotification(t *testing.T) {
	repo := &fakeJobRepo{}
	q := New(repo, 5, zap.NewNop())

	n := &model.Notification{
		ID:        uuid.New(),
		RequestID: uuid.New(),
		Kind:      model.KindRequestApproved,
	}
	require.NoError(t, q.EnqueueResend(context.Background(), n))

	require.Len(t, repo.created, 1)
	job := repo.created[0]
	assert.Equal(t, n.RequestID, job.RequestID)
	require.NotNil(t, job.NotificationID)
	assert.Equal(t, n.ID, *job.NotificationID)
	assert.Equal(t, 5, job.MaxAttempts)
}

func TestNewDefaultsAttemptBudget(t *testing.T) {
	repo := &fakeJobRepo{}
	q := New(repo, 0, zap.NewNop())

	require.NoError(t, q.EnqueueRequestEmail(context.Background(), uuid.New(), model.KindRequestCreated))
	require.Len(t, repo.created, 1)
	assert.Equal(t, model.DefaultMaxAttempts, repo.created[0].MaxAttempts)
}
