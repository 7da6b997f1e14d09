package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanApprove reports whether the role may transition request statuses.
func (r Role) CanApprove() bool {
	return r == RoleManager || r == RoleAdmin
}

// User represents an account that creates and/or approves requests.
// Deactivation is a soft flag; a deactivated user keeps its rows but
// loses every capability.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	FirstName    string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName     string    `gorm:"type:varchar(100)" json:"last_name"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'employee';index:idx_user_role_active" json:"role"`
	Active       bool      `gorm:"not null;default:true;index:idx_user_role_active" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Requests created by this user (distinct from requests approved by it).
	Requests         []Request `gorm:"foreignKey:CreatorID" json:"-"`
	ApprovedRequests []Request `gorm:"foreignKey:ApproverID" json:"-"`
}

// FullName returns "First Last", or just the first name when no last name is set.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
