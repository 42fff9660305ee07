package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired is returned when no principal could be
	// resolved. The message shape is a caller-facing contract.
	ErrAuthenticationRequired = errors.New("AuthenticationRequired")

	// ErrInvalidToken is returned when a token fails parsing or verification
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token has expired
	ErrTokenExpired = errors.New("token has expired")
)

// PermissionDeniedError is surfaced when a resolved principal lacks a
// permission. It carries the exact permission string for observability; the
// rendered message shape is a caller-facing contract. A denied check is an
// expected outcome, not a fault, and must not be logged at error level.
type PermissionDeniedError struct {
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("PermissionDenied: %s", e.Permission)
}

// NewPermissionDenied builds the denial error for a permission.
func NewPermissionDenied(permission string) *PermissionDeniedError {
	return &PermissionDeniedError{Permission: permission}
}
