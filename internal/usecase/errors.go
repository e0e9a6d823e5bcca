package usecase

import "errors"

// Pipeline errors wrap one of these with %w so the HTTP layer can pick a
// status code; the text after the colon carries the detail.
var (
	// ErrInvalidInput rejects a malformed trigger payload.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized rejects an admin call without the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDependencyUnavailable means a listing source, the schedule provider
	// or the database could not be reached, or its breaker is open.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrNotConfigured means a service was built without a collaborator it
	// needs, such as a nil repository.
	ErrNotConfigured = errors.New("pipeline not configured")
)
