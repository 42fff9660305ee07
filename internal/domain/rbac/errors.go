package rbac

import "errors"

var (
	// ErrRoleNotFound is returned when a role does not exist
	ErrRoleNotFound = errors.New("role not found")

	// ErrPermissionNotFound is returned when a permission does not exist
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrRoleNameAlreadyExists is returned when the role name unique constraint is hit
	ErrRoleNameAlreadyExists = errors.New("role name already exists")

	// ErrPermissionNameAlreadyExists is returned when the permission name unique constraint is hit
	ErrPermissionNameAlreadyExists = errors.New("permission name already exists")

	// ErrInvalidReference is returned when an assignment references a
	// nonexistent user, group, role, or permission
	ErrInvalidReference = errors.New("assignment references a nonexistent entity")
)
