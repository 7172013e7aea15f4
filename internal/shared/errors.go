package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrNotAuthorized indicates the actor lacks the required permission.
	// Permission-checked store reads return it for missing resources too,
	// so callers cannot probe for existence.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrValidation indicates malformed client input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or reference conflict.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates a failed authentication attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
