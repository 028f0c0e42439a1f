package commitwatch

import "errors"

// Common errors returned by the commit watcher.
var (
	// ErrWatcherClosed is returned when operating on a closed watcher.
	ErrWatcherClosed = errors.New("commit watcher is closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("commit watcher already started")

	// ErrNotStarted is returned when stopping a watcher that never started.
	ErrNotStarted = errors.New("commit watcher not started")

	// ErrInvalidSignal is returned when a spool file fails validation.
	ErrInvalidSignal = errors.New("invalid commit signal")
)
