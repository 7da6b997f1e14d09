package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestType is the closed set of request categories.
type RequestType string

const (
	RequestTypePurchase    RequestType = "purchase"
	RequestTypeMaintenance RequestType = "maintenance"
	RequestTypeSupport     RequestType = "support"
	RequestTypeOther       RequestType = "other"
)

func (t RequestType) Valid() bool {
	switch t {
	case RequestTypePurchase, RequestTypeMaintenance, RequestTypeSupport, RequestTypeOther:
		return true
	}
	return false
}

// RequestStatus is the closed set of request lifecycle states.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusApproved   RequestStatus = "approved"
	StatusRejected   RequestStatus = "rejected"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// TransitionTarget reports whether the status is a legal target for a
// transition. Any non-pending status is accepted from any current status;
// a narrower graph was considered and intentionally not enforced.
func (s RequestStatus) TransitionTarget() bool {
	return s.Valid() && s != StatusPending
}

// RequestPriority is the closed set of priorities.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityMedium RequestPriority = "medium"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

func (p RequestPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// CommentSeparator delimits entries in the append-only comments log.
const CommentSeparator = "\n---\n"

// Request is an internal work request submitted for managerial approval.
type Request struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Type          RequestType      `gorm:"type:varchar(20);not null;index:idx_request_type_status" json:"type"`
	Title         string           `gorm:"type:varchar(200);not null" json:"title"`
	Description   string           `gorm:"type:text;not null" json:"description"`
	Status        RequestStatus    `gorm:"type:varchar(20);not null;default:'pending';index;index:idx_request_type_status;index:idx_request_creator_status" json:"status"`
	Priority      RequestPriority  `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	Comments      string           `gorm:"type:text" json:"comments"`
	RequiredBy    *time.Time       `gorm:"type:date" json:"required_by"`
	EstimatedCost *decimal.Decimal `gorm:"type:numeric(14,2)" json:"estimated_cost"`

	CreatorID  uuid.UUID  `gorm:"type:uuid;not null;index;index:idx_request_creator_status" json:"creator_id"`
	Creator    *User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	ApproverID *uuid.UUID `gorm:"type:uuid" json:"approver_id"`
	Approver   *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	ApprovedAt *time.Time `json:"approved_at"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Notifications []Notification `gorm:"foreignKey:RequestID" json:"-"`
}

// Pending reports whether the request is still editable by its creator.
func (r *Request) Pending() bool {
	return r.Status == StatusPending
}

// Transition applies a status change in place. It sets the status
// unconditionally, stamps approver and approval time for approve/reject
// targets, appends the comment to the log and bumps the update timestamp.
// It performs no validation and creates no notifications; both are the
// caller's responsibility.
func (r *Request) Transition(newStatus RequestStatus, actorID uuid.UUID, comment string) {
	now := time.Now().UTC()
	r.Status = newStatus
	r.UpdatedAt = now

	if newStatus == StatusApproved || newStatus == StatusRejected {
		r.ApproverID = &actorID
		r.ApprovedAt = &now
	}

	if comment != "" {
		if r.Comments != "" {
			r.Comments += CommentSeparator + comment
		} else {
			r.Comments = comment
		}
	}
}
