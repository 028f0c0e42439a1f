package tracker

import "errors"

// Common errors returned by the tracker package.
var (
	// ErrInvalidSource is returned when a heartbeat source is not recognized.
	ErrInvalidSource = errors.New("invalid heartbeat source")

	// ErrEngineClosed is returned when the engine is used after Close.
	ErrEngineClosed = errors.New("engine is closed")
)
