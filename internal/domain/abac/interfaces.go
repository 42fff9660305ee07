package abac

import (
	"context"

	"github.com/google/uuid"
)

// PolicyRepository defines the interface for policy persistence
type PolicyRepository interface {
	// Create creates a new policy; policy names are unique
	Create(ctx context.Context, policy *Policy) error

	// GetByID retrieves a policy by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Policy, error)

	// Update updates a policy
	Update(ctx context.Context, policy *Policy) error

	// Delete deletes a policy
	Delete(ctx context.Context, id uuid.UUID) error

	// List retrieves all policies
	List(ctx context.Context) ([]*Policy, error)

	// FindActivePolicies retrieves the policies the engine must evaluate
	FindActivePolicies(ctx context.Context) ([]*Policy, error)
}
