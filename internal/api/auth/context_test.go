package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePermissions(t *testing.T) {
	owner := &OperatorContext{Role: RoleOwner}
	admin := &OperatorContext{Role: RoleAdmin}
	agent := &OperatorContext{Role: RoleAgent}

	assert.True(t, owner.IsOwner())
	assert.True(t, owner.CanConfirm())
	assert.NoError(t, owner.RequireOwner())

	assert.False(t, admin.IsOwner())
	assert.True(t, admin.CanConfirm())
	assert.ErrorIs(t, admin.RequireOwner(), ErrInsufficientPermissions)

	assert.False(t, agent.IsOwner())
	assert.False(t, agent.CanConfirm())
	assert.ErrorIs(t, agent.RequireOwner(), ErrInsufficientPermissions)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("OWNER"))
	assert.True(t, ValidRole("ADMIN"))
	assert.True(t, ValidRole("AGENT"))
	assert.False(t, ValidRole("owner"))
	assert.False(t, ValidRole("SUPERUSER"))
}
