package principal

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates the two principal kinds
type Type string

const (
	TypeUser    Type = "USER"
	TypeService Type = "SERVICE"
)

// Principal is the authenticated actor a permission check runs for. It is a
// closed union: the only implementations are UserPrincipal and
// ServicePrincipal, which keeps the two decision paths exhaustively
// distinguishable in a type switch.
type Principal interface {
	// PrincipalType reports the variant
	PrincipalType() Type

	// SubjectID is the id permission checks key on: the user id for human
	// principals, the service id for services
	SubjectID() uuid.UUID
}

// UserPrincipal is a human user resolved from a user token
type UserPrincipal struct {
	UserID uuid.UUID

	// Permissions embedded in the token, if any. The engine does not trust
	// these for its own checks; they exist for transports that pre-filter.
	Permissions []string
}

func (p UserPrincipal) PrincipalType() Type { return TypeUser }

func (p UserPrincipal) SubjectID() uuid.UUID { return p.UserID }

// ServicePrincipal is a calling service resolved from a service token. When
// the token carries delegated user context, UserID and UserPermissions are
// set so a downstream service can enforce both the caller's and the
// end-user's entitlements without a second authorization round-trip.
type ServicePrincipal struct {
	ServiceID uuid.UUID

	// UserID is set only for service-acting-on-behalf-of-user tokens
	UserID *uuid.UUID

	// Permissions granted to the calling service, embedded in the token
	Permissions []string

	// UserPermissions embedded for the delegated user, when UserID is set
	UserPermissions []string
}

func (p ServicePrincipal) PrincipalType() Type { return TypeService }

func (p ServicePrincipal) SubjectID() uuid.UUID { return p.ServiceID }

// OnBehalfOfUser reports whether the token carried delegated user context.
func (p ServicePrincipal) OnBehalfOfUser() bool { return p.UserID != nil }

// Entity is the stored service-principal row. Services are not members of
// RBAC groups; their grant path is the directly-held permission set.
type Entity struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id"`
	Type       Type      `json:"principal_type"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewServiceEntity creates a service-principal row. ExternalID defaults to
// the string form of the service id.
func NewServiceEntity(serviceID uuid.UUID) *Entity {
	now := time.Now()
	return &Entity{
		ID:         serviceID,
		ExternalID: serviceID.String(),
		Type:       TypeService,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
