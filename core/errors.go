package core

import "errors"

// Errors shared by stores, services and handlers. Wrap them with fmt.Errorf
// and "%w" so the HTTP layer can classify with errors.Is.
var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an identifier is not a 24-char hex ObjectID.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrNotFound is returned when a lookup, replace or delete matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for duplicate records.
	ErrConflict = errors.New("conflict")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// ErrUpstream wraps failures of the image store or the image generator.
	ErrUpstream = errors.New("upstream provider failure")
)
