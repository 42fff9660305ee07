package principal

import (
	"context"

	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// Repository defines the interface for service-principal persistence
type Repository interface {
	// Create creates a principal row
	Create(ctx context.Context, entity *Entity) error

	// FindByExternalID retrieves a principal by its external id
	FindByExternalID(ctx context.Context, externalID string) (*Entity, error)

	// SetEnabled toggles the enabled flag on a principal
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error

	// GrantPermission directly grants a permission to a principal; duplicate
	// grants are no-ops
	GrantPermission(ctx context.Context, principalID, permissionID uuid.UUID) error

	// RevokePermission removes a direct permission grant
	RevokePermission(ctx context.Context, principalID, permissionID uuid.UUID) error

	// FindPermissions retrieves the permissions directly granted to a principal
	FindPermissions(ctx context.Context, principalID uuid.UUID) ([]*rbac.Permission, error)
}
