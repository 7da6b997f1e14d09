package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind is the closed set of notification event kinds.
type NotificationKind string

const (
	KindRequestCreated  NotificationKind = "request_created"
	KindRequestApproved NotificationKind = "request_approved"
	KindRequestRejected NotificationKind = "request_rejected"
	KindRequestUpdated  NotificationKind = "request_updated"
	KindReminder        NotificationKind = "reminder"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case KindRequestCreated, KindRequestApproved, KindRequestRejected, KindRequestUpdated, KindReminder:
		return true
	}
	return false
}

// Notification is a durable record of an outbound message. One schema
// serves two channels: rows with a UserID are in-app notifications tracked
// by read/unread; rows with a RecipientEmail are email notifications
// tracked by sent/unsent plus an attempt counter. Both may be populated.
type Notification struct {
	ID   uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind NotificationKind `gorm:"type:varchar(30);not null" json:"kind"`

	// In-app channel.
	UserID *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Title  string     `gorm:"type:varchar(200)" json:"title"`
	Read   bool       `gorm:"not null;default:false;index" json:"read"`
	ReadAt *time.Time `json:"read_at"`

	// Email channel.
	RecipientEmail string     `gorm:"type:varchar(120);index" json:"recipient_email"`
	RecipientName  string     `gorm:"type:varchar(200)" json:"recipient_name"`
	Subject        string     `gorm:"type:varchar(200)" json:"subject"`
	Sent           bool       `gorm:"not null;default:false;index:idx_notification_sent_created" json:"sent"`
	SentAt         *time.Time `json:"sent_at"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	LastError      string     `gorm:"type:text" json:"last_error"`

	Message string `gorm:"type:text" json:"message"`

	RequestID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_notification_request_kind" json:"request_id"`
	Request   *Request  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"request,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_notification_sent_created" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarkSent records a successful delivery. Sent is monotonic: once true it
// is never reset, and the original sent timestamp is preserved.
func (n *Notification) MarkSent() {
	if n.Sent {
		return
	}
	now := time.Now().UTC()
	n.Sent = true
	n.SentAt = &now
	n.UpdatedAt = now
}

// MarkRead records that the in-app notification was seen. Idempotent:
// marking an already-read notification leaves the read timestamp untouched.
func (n *Notification) MarkRead() {
	if n.Read {
		return
	}
	now := time.Now().UTC()
	n.Read = true
	n.ReadAt = &now
	n.UpdatedAt = now
}

// RecordFailure bumps the attempt counter and stores the delivery error.
// Attempts only ever move on failed sends.
func (n *Notification) RecordFailure(errMsg string) {
	n.Attempts++
	n.LastError = errMsg
	n.UpdatedAt = time.Now().UTC()
}

// NewInAppNotification builds the in-app notification shown to the
// request's creator after an approve/reject transition. Created inside the
// same transaction as the status change.
func NewInAppNotification(req *Request, kind NotificationKind, comment string) *Notification {
	verb := "approved"
	if kind == KindRequestRejected {
		verb = "rejected"
	}
	message := fmt.Sprintf("Your request %q has been %s", req.Title, verb)
	if comment != "" {
		message += ": " + comment
	}

	creatorID := req.CreatorID
	return &Notification{
		Kind:      kind,
		UserID:    &creatorID,
		Title:     "Request " + verb,
		Message:   message,
		RequestID: req.ID,
	}
}

// NewEmailNotification builds the email-channel notification for a request
// event, with subject and message derived from the kind.
func NewEmailNotification(req *Request, kind NotificationKind, email, name string) *Notification {
	return &Notification{
		Kind:           kind,
		RecipientEmail: email,
		RecipientName:  name,
		Subject:        notificationSubject(req, kind),
		Message:        notificationMessage(req, kind),
		RequestID:      req.ID,
	}
}

func notificationSubject(req *Request, kind NotificationKind) string {
	switch kind {
	case KindRequestCreated:
		return "New request: " + req.Title
	case KindRequestApproved:
		return "Request approved: " + req.Title
	case KindRequestRejected:
		return "Request rejected: " + req.Title
	case KindRequestUpdated:
		return "Request updated: " + req.Title
	case KindReminder:
		return "Request reminder: " + req.Title
	}
	return "Notification"
}

func notificationMessage(req *Request, kind NotificationKind) string {
	approver := "an administrator"
	if req.Approver != nil {
		approver = req.Approver.FullName()
	}

	switch kind {
	case KindRequestCreated:
		return fmt.Sprintf("A new %s request has been submitted.", req.Type)
	case KindRequestApproved:
		return "Your request has been approved by " + approver + "."
	case KindRequestRejected:
		return "Your request has been rejected by " + approver + "."
	case KindRequestUpdated:
		return fmt.Sprintf("The request has been updated. Current status: %s.", req.Status)
	case KindReminder:
		return "You have a request pending review."
	}
	return "You have a new notification."
}
