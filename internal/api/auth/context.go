package auth

import (
	"errors"
)

// Role is an operator's role within a workspace
type Role string

const (
	RoleOwner Role = "OWNER"
	RoleAdmin Role = "ADMIN"
	RoleAgent Role = "AGENT"
)

// ErrInsufficientPermissions is returned when the operator's role does not
// allow the requested action
var ErrInsufficientPermissions = errors.New("insufficient permissions")

// ValidRole reports whether r is one of the known roles
func ValidRole(r string) bool {
	switch Role(r) {
	case RoleOwner, RoleAdmin, RoleAgent:
		return true
	}
	return false
}

// OperatorContext holds the resolved tenant context for a request.
// This is built by middleware and passed to handlers and services.
type OperatorContext struct {
	OperatorID  int64  `json:"operator_id"`
	Email       string `json:"email"`
	WorkspaceID int64  `json:"workspace_id"`
	Role        Role   `json:"role"`
}

// IsOwner reports whether the operator holds the owner role
func (oc *OperatorContext) IsOwner() bool {
	return oc.Role == RoleOwner
}

// CanConfirm reports whether the operator may confirm proposals at all.
// Owner-only commands are re-checked separately at execution time.
func (oc *OperatorContext) CanConfirm() bool {
	return oc.Role == RoleOwner || oc.Role == RoleAdmin
}

// RequireOwner returns an error unless the operator is a workspace owner
func (oc *OperatorContext) RequireOwner() error {
	if !oc.IsOwner() {
		return ErrInsufficientPermissions
	}
	return nil
}
