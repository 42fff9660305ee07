package rbac

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
)

// GrantRepository defines the interface for role, permission, and grant
// persistence. All link inserts are idempotent: a duplicate insert is a
// no-op enforced by a unique constraint, not a read-then-write check.
type GrantRepository interface {
	// CreateRole creates a new role; role names are unique
	CreateRole(ctx context.Context, role *Role) error

	// GetRoleByID retrieves a role by ID
	GetRoleByID(ctx context.Context, id uuid.UUID) (*Role, error)

	// GetRoleByName retrieves a role by name
	GetRoleByName(ctx context.Context, name string) (*Role, error)

	// DeleteRole deletes a role and its links
	DeleteRole(ctx context.Context, id uuid.UUID) error

	// SearchRoles retrieves one page of roles plus the total filtered count
	SearchRoles(ctx context.Context, params identity.SearchParams) ([]*Role, int64, error)

	// CreatePermission creates a new permission; permission names are unique
	CreatePermission(ctx context.Context, permission *Permission) error

	// GetPermissionByName retrieves a permission by name
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)

	// SearchPermissions retrieves one page of permissions plus the total
	// filtered count
	SearchPermissions(ctx context.Context, params identity.SearchParams) ([]*Permission, int64, error)

	// LinkPermission grants a permission to a role; duplicate links are no-ops
	LinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	// UnlinkPermission revokes a permission from a role
	UnlinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	// AssignRole directly grants a role to a user with an optional validity
	// window. The referenced user and role must exist.
	AssignRole(ctx context.Context, assignment *RoleAssignment) error

	// RevokeRole removes a direct role grant from a user
	RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error

	// AssignGroupRole grants a role to a group; duplicate grants are no-ops
	AssignGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error

	// RevokeGroupRole removes a role grant from a group
	RevokeGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error

	// FindValidRoleAssignments retrieves the direct assignments for a user
	// whose validity window contains now. Filtering happens store-side.
	FindValidRoleAssignments(ctx context.Context, userID uuid.UUID, now time.Time) ([]*RoleAssignment, error)

	// FindRolesForGroup retrieves the roles assigned to a group
	FindRolesForGroup(ctx context.Context, groupID uuid.UUID) ([]*Role, error)

	// FindPermissionsForRole retrieves the permissions linked to a role
	FindPermissionsForRole(ctx context.Context, roleID uuid.UUID) ([]*Permission, error)

	// FindUsersForRole retrieves every user holding the role directly or
	// through a group, regardless of validity window
	FindUsersForRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error)

	// FindRolesForUsers bulk-loads the currently-effective roles (direct plus
	// group-inherited) for a set of users. The result has an entry for every
	// requested id.
	FindRolesForUsers(ctx context.Context, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID][]*Role, error)

	// FindPermissionsForRoles bulk-loads permissions for a set of roles. The
	// result has an entry for every requested id.
	FindPermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) (map[uuid.UUID][]*Permission, error)
}

// PermissionCache caches a user's effective permission set. The cache is an
// optimization only: engine semantics are identical with or without it.
type PermissionCache interface {
	// GetUserPermissions gets the cached effective permission names; a miss
	// is (nil, nil), a cached empty set is a non-nil empty slice
	GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)

	// SetUserPermissions caches the effective permission names
	SetUserPermissions(ctx context.Context, userID uuid.UUID, permissions []string) error

	// InvalidateUser drops all cached state for a user
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}
