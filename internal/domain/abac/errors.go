package abac

import "errors"

var (
	// ErrPolicyNotFound is returned when a policy does not exist
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyNameAlreadyExists is returned when the policy name unique constraint is hit
	ErrPolicyNameAlreadyExists = errors.New("policy name already exists")

	// ErrMalformedCondition is returned when a condition tree cannot be parsed.
	// Evaluation treats a malformed condition as non-match; the error exists
	// for administrative validation at write time.
	ErrMalformedCondition = errors.New("malformed policy condition")

	// ErrInvalidEffect is returned when a policy effect is neither ALLOW nor DENY
	ErrInvalidEffect = errors.New("policy effect must be ALLOW or DENY")
)
