package principal

import "errors"

var (
	// ErrNotFound is returned when a principal does not exist
	ErrNotFound = errors.New("principal not found")

	// ErrAlreadyExists is returned when the external id unique constraint is hit
	ErrAlreadyExists = errors.New("principal already exists")
)
