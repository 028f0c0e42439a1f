// Package server exposes the tracking API over HTTP.
//
// The IDE and browser extensions talk to four POST endpoints:
//
//	/api/heartbeat     liveness signal, opens a session if needed
//	/api/stats         uncommitted code statistics snapshot
//	/api/window-state  editor focus transitions
//	/api/commit        commit notification, finalizes and links sessions
//
// Validation failures are rejected with 400 before any state changes;
// core failures surface as 500 with the session state untouched.
package server

import (
	"context"
	"time"
)

// Server is the HTTP front end for the tracking engine.
type Server interface {
	// Start begins serving. Blocks until the listener fails or Shutdown
	// is called.
	Start() error

	// Shutdown gracefully stops the server, waiting for in-flight
	// requests up to the context deadline.
	Shutdown(ctx context.Context) error
}

// Config contains HTTP server configuration.
type Config struct {
	// Addr is the listen address (default: ":3000").
	Addr string

	// RequestTimeout bounds request handling (default: 30 seconds).
	RequestTimeout time.Duration
}
