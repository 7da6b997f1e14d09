package policy

import (
	"testing"

	"solicitudes/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func user(role model.Role, active bool) *model.User {
	return &model.User{ID: uuid.New(), Role: role, Active: active}
}

func TestInactiveUserHasNoCapabilities(t *testing.T) {
	inactiveAdmin := user(model.RoleAdmin, false)
	req := &model.Request{CreatorID: inactiveAdmin.ID, Status: model.StatusPending}

	assert.False(t, CanCreateRequest(inactiveAdmin).Allowed)
	assert.False(t, CanViewRequest(inactiveAdmin, req).Allowed)
	assert.False(t, CanEditRequest(inactiveAdmin, req).Allowed)
	assert.False(t, CanDeleteRequest(inactiveAdmin, req).Allowed)
	assert.False(t, CanTransition(inactiveAdmin).Allowed)
	assert.False(t, CanViewUsers(inactiveAdmin).Allowed)
	assert.False(t, CanManageUsers(inactiveAdmin).Allowed)
	assert.False(t, CanResendNotification(inactiveAdmin).Allowed)
	assert.False(t, CanViewStats(inactiveAdmin).Allowed)
}

func TestNilActorDenied(t *testing.T) {
	assert.False(t, CanCreateRequest(nil).Allowed)
	assert.False(t, CanTransition(nil).Allowed)
}

func TestCanViewRequest(t *testing.T) {
	employee := user(model.RoleEmployee, true)
	other := user(model.RoleEmployee, true)
	manager := user(model.RoleManager, true)

	own := &model.Request{CreatorID: employee.ID}

	assert.True(t, CanViewRequest(employee, own).Allowed)
	assert.False(t, CanViewRequest(other, own).Allowed)
	assert.True(t, CanViewRequest(manager, own).Allowed)
}

func TestCanEditRequest(t *testing.T) {
	employee := user(model.RoleEmployee, true)
	other := user(model.RoleEmployee, true)
	manager := user(model.RoleManager, true)
	admin := user(model.RoleAdmin, true)

	own := &model.Request{CreatorID: employee.ID, Status: model.StatusPending}

	assert.True(t, CanEditRequest(employee, own).Allowed)
	assert.False(t, CanEditRequest(other, own).Allowed)
	// Manager role alone grants no edit rights over others' requests.
	assert.False(t, CanEditRequest(manager, own).Allowed)
	assert.True(t, CanEditRequest(admin, own).Allowed)
}

func TestCanDeleteRequest(t *testing.T) {
	employee := user(model.RoleEmployee, true)
	admin := user(model.RoleAdmin, true)

	pending := &model.Request{CreatorID: employee.ID, Status: model.StatusPending}
	approved := &model.Request{CreatorID: employee.ID, Status: model.StatusApproved}

	assert.True(t, CanDeleteRequest(employee, pending).Allowed)
	assert.False(t, CanDeleteRequest(employee, approved).Allowed, "creators may only delete pending requests")
	assert.True(t, CanDeleteRequest(admin, approved).Allowed, "admins delete regardless of state")

	other := &model.Request{CreatorID: uuid.New(), Status: model.StatusPending}
	assert.False(t, CanDeleteRequest(employee, other).Allowed)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		role    model.Role
		allowed bool
	}{
		{model.RoleEmployee, false},
		{model.RoleManager, true},
		{model.RoleAdmin, true},
	}
	for _, tc := range tests {
		d := CanTransition(user(tc.role, true))
		assert.Equal(t, tc.allowed, d.Allowed, "role %s", tc.role)
	}
}

func TestUserManagementCapabilities(t *testing.T) {
	employee := user(model.RoleEmployee, true)
	manager := user(model.RoleManager, true)
	admin := user(model.RoleAdmin, true)

	assert.False(t, CanViewUsers(employee).Allowed)
	assert.True(t, CanViewUsers(manager).Allowed)
	assert.True(t, CanViewUsers(admin).Allowed)

	assert.False(t, CanManageUsers(manager).Allowed, "managers read but never write users")
	assert.True(t, CanManageUsers(admin).Allowed)
	assert.False(t, CanDeleteUser(manager).Allowed)
}

func TestCanViewNotification(t *testing.T) {
	employee := user(model.RoleEmployee, true)
	admin := user(model.RoleAdmin, true)

	assert.True(t, CanViewNotification(employee, employee.ID).Allowed)
	assert.False(t, CanViewNotification(employee, uuid.New()).Allowed)
	assert.True(t, CanViewNotification(admin, uuid.New()).Allowed)
}

func TestCanResendNotification(t *testing.T) {
	assert.False(t, CanResendNotification(user(model.RoleManager, true)).Allowed, "resend is admin-only")
	assert.True(t, CanResendNotification(user(model.RoleAdmin, true)).Allowed)
}
