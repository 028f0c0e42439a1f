package journal

import "errors"

// Common errors returned by the journal.
var (
	// ErrEmptySessionID is returned when a session ID is empty.
	ErrEmptySessionID = errors.New("session ID cannot be empty")

	// ErrEmptySnapshot is returned when a snapshot has no ID.
	ErrEmptySnapshot = errors.New("snapshot must have a session ID")
)
