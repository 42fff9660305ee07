package auth

import (
	"time"
)

// Claims is the verified claim bag the principal resolver consumes. Signature
// verification happens in the token layer; once a token parses and verifies,
// its claims are trusted as-is.
//
// Two service-token shapes exist: a pure service-to-service call carries only
// ServiceID, while a delegated call carries ServiceID plus UserID with two
// separate permission sets.
type Claims struct {
	Subject         string    `json:"sub"`
	ServiceID       string    `json:"service_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	Permissions     []string  `json:"permissions,omitempty"`
	UserPermissions []string  `json:"user_permissions,omitempty"`
	ExpiresAt       time.Time `json:"exp"`
	IssuedAt        time.Time `json:"iat"`
	Issuer          string    `json:"iss"`
	Audience        []string  `json:"aud"`
	JTI             string    `json:"jti"`
}

// IsService reports whether the claim bag describes a service token.
func (c *Claims) IsService() bool {
	return c.ServiceID != ""
}
