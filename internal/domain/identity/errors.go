package identity

import "errors"

var (
	// ErrUserNil is returned when a nil user is passed to a write operation
	ErrUserNil = errors.New("user is nil")

	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrGroupNotFound is returned when a group does not exist
	ErrGroupNotFound = errors.New("group not found")

	// ErrInvalidUserID is returned when a user ID is the zero UUID
	ErrInvalidUserID = errors.New("invalid user ID")

	// ErrEmailRequired is returned when an email is missing
	ErrEmailRequired = errors.New("email is required")

	// ErrPasswordRequired is returned when a password hash is missing
	ErrPasswordRequired = errors.New("password is required")

	// ErrEmailAlreadyExists is returned when the email unique constraint is hit
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrGroupNameAlreadyExists is returned when the group name unique constraint is hit
	ErrGroupNameAlreadyExists = errors.New("group name already exists")

	// ErrInvalidSortField is returned when a search orders by an unknown field
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrUserDisabled is returned when an operation requires an enabled account
	ErrUserDisabled = errors.New("user is disabled")

	// ErrInvalidResetToken is returned when a password reset token is unknown or expired
	ErrInvalidResetToken = errors.New("invalid or expired password reset token")
)
