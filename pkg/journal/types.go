// Package journal provides durable session bookkeeping backed by BoltDB.
//
// It persists two things across process restarts: the pending queue of
// closed sessions awaiting task linkage, and the final snapshot of every
// closed session for local history.
//
// Example usage:
//
//	jrnl, err := journal.New(journal.Config{
//	    DBPath: "~/.config/devlog/journal.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer jrnl.Close()
//
//	ids, _ := jrnl.PendingIDs()
//	engine.SeedPending(ids)
package journal

import (
	"time"

	"github.com/yourusername/devlog/pkg/tracker"
)

// Journal provides durable session bookkeeping.
//
// It extends the write-side interface the engine consumes with the
// read-side used at startup and by the CLI.
type Journal interface {
	// AppendPending records a closed session awaiting task linkage.
	//
	// Returns error if the ID is empty or the write fails.
	AppendPending(id string) error

	// PendingIDs returns the pending session IDs, oldest first.
	//
	// Returns:
	//   - Slice of session IDs (empty if none)
	//   - Error for database failures
	PendingIDs() ([]string, error)

	// ClearPending removes all pending entries.
	ClearPending() error

	// RecordSession stores the final snapshot of a closed session,
	// overwriting any previous snapshot with the same ID.
	RecordSession(snap tracker.SessionSnapshot) error

	// Sessions returns all recorded session snapshots.
	//
	// Returns:
	//   - Slice of snapshots (empty if none exist)
	//   - Error for database failures
	Sessions() ([]tracker.SessionSnapshot, error)

	// Close closes the database and releases resources.
	Close() error
}

// Config contains journal configuration.
type Config struct {
	// DBPath is the BoltDB file path.
	DBPath string

	// Timeout is the database open timeout (default: 1 second).
	Timeout time.Duration
}
