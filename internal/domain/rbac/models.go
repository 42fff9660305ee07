package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a named bundle of permissions
type Role struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission represents a string capability token, e.g. "transaction:read"
type Permission struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleAssignment is a direct, optionally time-bounded grant of a role to a
// user. An assignment is currently valid iff ValidFrom is nil or not after
// now, and ValidUntil is nil or after now.
type RoleAssignment struct {
	UserID     uuid.UUID  `json:"user_id"`
	RoleID     uuid.UUID  `json:"role_id"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	GrantedAt  time.Time  `json:"granted_at"`
}

// IsValidAt reports whether the assignment contributes to permission
// resolution at the given instant.
func (a *RoleAssignment) IsValidAt(now time.Time) bool {
	if a.ValidFrom != nil && a.ValidFrom.After(now) {
		return false
	}
	if a.ValidUntil != nil && !a.ValidUntil.After(now) {
		return false
	}
	return true
}

// GroupRoleAssignment grants a role to every current member of a group.
// Group grants carry no validity window.
type GroupRoleAssignment struct {
	GroupID   uuid.UUID `json:"group_id"`
	RoleID    uuid.UUID `json:"role_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// RolePermission is the join between roles and permissions
type RolePermission struct {
	RoleID       uuid.UUID `json:"role_id"`
	PermissionID uuid.UUID `json:"permission_id"`
	GrantedAt    time.Time `json:"granted_at"`
}

// Decision is the outcome of a permission check. Reason is diagnostic text
// for logs and tests, not a machine-readable code.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Decision reasons produced by the authorization engine.
const (
	ReasonGranted             = "Access granted"
	ReasonNoPermission        = "User does not have permission"
	ReasonUserDisabled        = "User account is disabled"
	ReasonAbacDeny            = "ABAC policy explicitly denies access"
	ReasonServiceNotFound     = "Service principal not found"
	ReasonServiceDisabled     = "Service principal is disabled"
	ReasonServiceNoPermission = "Service principal does not have permission"
)

// Allow returns an allowing decision with the standard grant reason.
func Allow() Decision {
	return Decision{Allowed: true, Reason: ReasonGranted}
}

// Deny returns a denying decision carrying the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Guarded operation permissions follow the security:<resource>:<action>
// convention enforced at the transport edge.
const (
	PermissionUserRead        = "security:user:read"
	PermissionUserWrite       = "security:user:write"
	PermissionGroupRead       = "security:group:read"
	PermissionGroupWrite      = "security:group:write"
	PermissionRoleRead        = "security:role:read"
	PermissionRoleWrite       = "security:role:write"
	PermissionPermissionRead  = "security:permission:read"
	PermissionPermissionWrite = "security:permission:write"
)
