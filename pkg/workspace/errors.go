package workspace

import "errors"

// Common errors returned by the workspace store.
var (
	// ErrPageNotFound is returned when a query matches no page.
	ErrPageNotFound = errors.New("page not found")

	// ErrRequestFailed is returned when the workspace API rejects a call.
	ErrRequestFailed = errors.New("workspace API request failed")

	// ErrMissingToken is returned when the store is constructed without
	// an API token.
	ErrMissingToken = errors.New("workspace API token is required")
)
