package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/pagination"
)

// SearchParams drives a cursor-paged directory search. OrderBy lists the
// visible sort fields; the store appends the id tiebreaker itself. After, when
// set, is the decoded resume point and Limit is the row fetch budget (the
// caller requests one extra row to detect a next page).
type SearchParams struct {
	Query   string
	OrderBy []pagination.OrderSpec
	After   *pagination.Position
	Limit   int
}

// Repository defines the interface for user and group persistence
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, u *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetToken retrieves a user by password reset token
	GetByResetToken(ctx context.Context, token string) (*User, error)

	// Update updates an existing user
	Update(ctx context.Context, u *User) error

	// SetEnabled toggles the soft-disable flag on a user
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error

	// Search retrieves one page of users matching the params plus the total
	// filtered count
	Search(ctx context.Context, params SearchParams) ([]*User, int64, error)

	// CreateGroup creates a new group
	CreateGroup(ctx context.Context, g *Group) error

	// DeleteGroup deletes a group and its memberships
	DeleteGroup(ctx context.Context, id uuid.UUID) error

	// GetGroupByID retrieves a group by ID
	GetGroupByID(ctx context.Context, id uuid.UUID) (*Group, error)

	// SearchGroups retrieves one page of groups plus the total filtered count
	SearchGroups(ctx context.Context, params SearchParams) ([]*Group, int64, error)

	// AddGroupMember adds a user to a group; a duplicate insert is a no-op
	AddGroupMember(ctx context.Context, userID, groupID uuid.UUID) error

	// RemoveGroupMember removes a user from a group
	RemoveGroupMember(ctx context.Context, userID, groupID uuid.UUID) error

	// FindGroupMembers retrieves the ids of a group's current members
	FindGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)

	// FindGroupsForUser retrieves the groups a user currently belongs to
	FindGroupsForUser(ctx context.Context, userID uuid.UUID) ([]*Group, error)

	// FindGroupsForUsers bulk-loads group memberships for a set of users.
	// The result has an entry for every requested id.
	FindGroupsForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]*Group, error)
}
