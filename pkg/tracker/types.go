// Package tracker implements the session lifecycle engine: it turns a
// stream of heartbeats, window focus events and code statistics into
// discrete, non-overlapping tracked sessions.
//
// A session opens on the first heartbeat after idle, is mutated by every
// subsequent signal, and closes either on an inactivity timeout or when a
// commit forces it shut. Closed sessions queue up as "pending" until the
// next commit links them to a task.
//
// Example usage:
//
//	eng := tracker.New(tracker.Config{
//	    HeartbeatQuantum:  10,
//	    InactivityTimeout: 2 * time.Minute,
//	}, store, nil, logger.Default())
//	defer eng.Close()
//
//	sessionID, err := eng.ProcessHeartbeat(ctx, tracker.Heartbeat{
//	    Source: tracker.SourceEditor,
//	})
package tracker

import (
	"context"
	"time"

	"github.com/yourusername/devlog/pkg/workspace"
)

// Source identifies which tracked surface produced a heartbeat.
type Source string

// Recognized heartbeat sources.
const (
	// SourceEditor is a heartbeat from the IDE extension.
	SourceEditor Source = "editor"

	// SourceBrowser is a heartbeat from the browser extension.
	SourceBrowser Source = "browser"
)

// Valid reports whether s is a recognized source.
func (s Source) Valid() bool {
	return s == SourceEditor || s == SourceBrowser
}

// Heartbeat is a liveness signal from a tracked surface.
type Heartbeat struct {
	// Source identifies the surface that produced the heartbeat.
	Source Source

	// Timestamp is when the activity happened. Zero means "now".
	Timestamp time.Time
}

// CodeStats is a snapshot of uncommitted code changes. It is overwritten
// wholesale on each update, never accumulated.
type CodeStats struct {
	FilesChanged int `json:"files_changed"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// WindowState describes the editor window at a point in time.
type WindowState struct {
	// Focused reports whether the window has OS focus.
	Focused bool

	// Active reports whether the user is actively interacting.
	Active bool
}

// WindowStateEvent is a window state transition notification.
type WindowStateEvent struct {
	Timestamp   time.Time
	WindowState WindowState
}

// SessionSnapshot is the immutable record of a closed session.
type SessionSnapshot struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	EditorMinutes  int       `json:"editor_minutes"`
	BrowserMinutes int       `json:"browser_minutes"`
	CodeStats      CodeStats `json:"code_stats"`
}

// SessionStore is the subset of the workspace store the engine needs.
type SessionStore interface {
	// CreateSession creates a session record and returns its page ID.
	CreateSession(ctx context.Context, input workspace.SessionInput) (string, error)

	// UpdateSession writes the final state of a session record.
	UpdateSession(ctx context.Context, id string, update workspace.SessionUpdate) error

	// CountSessionsInMonth counts session records created in the given month.
	CountSessionsInMonth(ctx context.Context, year int, month time.Month) (int, error)
}

// Journal persists session bookkeeping across restarts. All methods are
// best-effort from the engine's point of view: a journal failure is logged
// but never fails the triggering operation.
type Journal interface {
	// AppendPending records a closed session awaiting task linkage.
	AppendPending(id string) error

	// ClearPending removes all pending entries.
	ClearPending() error

	// RecordSession stores the final snapshot of a closed session.
	RecordSession(snap SessionSnapshot) error
}

// Engine is the single entry point for all time-affecting signals.
type Engine interface {
	// ProcessHeartbeat accepts a heartbeat, opening a session if none is
	// open, and returns the ID of the (now) open session.
	//
	// Returns error if session creation fails; the heartbeat is then not
	// acknowledged and the next one retries creation.
	ProcessHeartbeat(ctx context.Context, hb Heartbeat) (string, error)

	// UpdateCodeStats overwrites the open session's code statistics.
	// No-op (with a warning) if no session is open.
	UpdateCodeStats(stats CodeStats)

	// ProcessWindowState feeds a window state transition to the focus
	// time accumulator.
	ProcessWindowState(ev WindowStateEvent)

	// EndCurrentSession closes the open session: writes the final record
	// to the workspace store and moves the ID to the pending queue.
	// No-op if no session is open.
	//
	// On store failure the session is left open so the close can be
	// retried.
	EndCurrentSession(ctx context.Context) error

	// PendingSessionIDs returns a copy of the closed-but-unlinked
	// session IDs, oldest first.
	PendingSessionIDs() []string

	// ClearPendingSessions empties the pending queue. Called after a
	// commit has linked the sessions to a task.
	ClearPendingSessions()

	// SeedPending preloads the pending queue, typically from the journal
	// at startup. Must be called before the first heartbeat.
	SeedPending(ids []string)

	// OnSessionChange registers an observer invoked whenever the open
	// session ID changes. oldID is empty on creation, newID is empty on
	// close.
	OnSessionChange(fn func(oldID, newID string))

	// Close stops all timers. The engine must not be used afterwards.
	Close() error
}

// Config contains session lifecycle settings.
type Config struct {
	// HeartbeatQuantum is the number of seconds credited to a source
	// counter per accepted heartbeat (default: 10).
	HeartbeatQuantum int

	// InactivityTimeout is how long the engine waits without a heartbeat
	// before auto-closing the session (default: 2 minutes).
	InactivityTimeout time.Duration

	// MinSessionDuration is reserved and currently unenforced.
	MinSessionDuration time.Duration
}
