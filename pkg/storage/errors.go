package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a backing document (credential store,
	// registry) or a requested entry does not exist.
	ErrNotFound = errors.New("not found")
)
