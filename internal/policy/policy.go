// Package policy holds the role × action capability matrix. Every check
// takes the freshly loaded actor so role and active flag are evaluated at
// call time, and returns a typed decision instead of aborting control flow.
package policy

import (
	"solicitudes/internal/model"

	"github.com/google/uuid"
)

// Decision is the outcome of a capability check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// inactive is the universal short-circuit: a deactivated user has zero
// capabilities regardless of role.
func inactive(actor *model.User) bool {
	return actor == nil || !actor.Active
}

// CanCreateRequest: any active user may create requests for themselves.
func CanCreateRequest(actor *model.User) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	return allow()
}

// CanViewRequest: creators see their own; managers and admins see all.
func CanViewRequest(actor *model.User, req *model.Request) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if actor.Role.CanApprove() || req.CreatorID == actor.ID {
		return allow()
	}
	return deny("you may only view your own requests")
}

// CanEditRequest: the creator may edit their own request; admins may edit
// any. Whether the request is still editable (pending) is a state concern
// checked by the service, not a capability.
func CanEditRequest(actor *model.User, req *model.Request) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if actor.Role == model.RoleAdmin || req.CreatorID == actor.ID {
		return allow()
	}
	return deny("you may only edit your own requests")
}

// CanDeleteRequest: the creator may delete their own pending request;
// admins may delete any request in any state.
func CanDeleteRequest(actor *model.User, req *model.Request) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if actor.Role == model.RoleAdmin {
		return allow()
	}
	if req.CreatorID != actor.ID {
		return deny("you may only delete your own requests")
	}
	if !req.Pending() {
		return deny("only pending requests can be deleted")
	}
	return allow()
}

// CanTransition: only managers and admins may change request statuses,
// including requests they created themselves.
func CanTransition(actor *model.User) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if !actor.Role.CanApprove() {
		return deny("only managers and administrators may change request status")
	}
	return allow()
}

// CanViewUsers: managers and admins may read the user list.
func CanViewUsers(actor *model.User) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if !actor.Role.CanApprove() {
		return deny("insufficient role to view users")
	}
	return allow()
}

// CanManageUsers: only admins may write user records.
func CanManageUsers(actor *model.User) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if actor.Role != model.RoleAdmin {
		return deny("only administrators may manage users")
	}
	return allow()
}

// CanDeleteUser: only admins may delete users.
func CanDeleteUser(actor *model.User) Decision {
	return CanManageUsers(actor)
}

// CanViewNotification: admins see all; others only notifications attached
// to their own requests.
func CanViewNotification(actor *model.User, requestCreatorID uuid.UUID) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if actor.Role == model.RoleAdmin || requestCreatorID == actor.ID {
		return allow()
	}
	return deny("you may only view notifications for your own requests")
}

// CanResendNotification: admin-only operator action.
func CanResendNotification(actor *model.User) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if actor.Role != model.RoleAdmin {
		return deny("only administrators may resend notifications")
	}
	return allow()
}

// CanViewStats: reporting endpoints are manager/admin only.
func CanViewStats(actor *model.User) Decision {
	if inactive(actor) {
		return deny("account is inactive")
	}
	if !actor.Role.CanApprove() {
		return deny("insufficient role to view statistics")
	}
	return allow()
}
