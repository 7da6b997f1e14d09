package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the closed set of email job states.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobSent       JobStatus = "sent"
	JobFailed     JobStatus = "failed"
)

// DefaultMaxAttempts bounds delivery retries per job.
const DefaultMaxAttempts = 3

// EmailJob is a durable queue entry consumed by the delivery worker. A job
// is keyed by (request, kind); resend jobs additionally carry the existing
// notification to re-deliver, bypassing the attempt bound.
type EmailJob struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"request_id"`
	Kind           NotificationKind `gorm:"type:varchar(30);not null" json:"kind"`
	NotificationID *uuid.UUID       `gorm:"type:uuid" json:"notification_id"`

	Status      JobStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_email_job_status_next" json:"status"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int       `gorm:"not null;default:3" json:"max_attempts"`
	NextRunAt   time.Time `gorm:"not null;index:idx_email_job_status_next" json:"next_run_at"`
	LastError   string    `gorm:"type:text" json:"last_error"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Exhausted reports whether the job has used up its retry budget.
func (j *EmailJob) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
