package lifecycle

import "errors"

var (
	// ErrProtectedAccount is returned when a destructive transition is
	// attempted against a protected identity. Such attempts are rejected
	// unconditionally and logged as severity-high events.
	ErrProtectedAccount = errors.New("destructive transition rejected: account is protected")

	// ErrUserNotFound marks a data inconsistency (lifecycle rows referencing
	// no known user). The affected user is skipped, never fatal to a batch.
	ErrUserNotFound = errors.New("lifecycle: user not found")
)
