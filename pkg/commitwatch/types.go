// Package commitwatch watches a spool directory for commit signal files.
//
// A post-commit hook drops one JSON file per commit into the spool
// directory. The watcher picks each file up, parses and validates it,
// emits a commit event, and removes the file. Files already present at
// startup are drained first so commits made while the daemon was down
// are not lost.
//
// Example usage:
//
//	cw, err := commitwatch.New(commitwatch.Config{
//	    SpoolDir: "~/.config/devlog/commits",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cw.Close()
//
//	if err := cw.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for ev := range cw.Commits() {
//	    coordinator.ProcessCommit(ctx, ev.Info)
//	}
package commitwatch

import (
	"context"
	"time"

	"github.com/yourusername/devlog/pkg/linkage"
)

// Event is a parsed commit signal.
type Event struct {
	// ID is a unique event identifier.
	ID string

	// Path is the spool file the event was parsed from.
	Path string

	// Info is the validated commit payload.
	Info linkage.CommitInfo

	// Timestamp is when the event was picked up.
	Timestamp time.Time
}

// Watcher watches the commit spool directory.
type Watcher interface {
	// Start begins watching the spool directory, draining any files
	// already present. The directory is created if it does not exist.
	//
	// Returns error if:
	//   - Watcher is closed or already started
	//   - Spool directory cannot be created or watched
	Start(ctx context.Context) error

	// Stop stops watching. The watcher can not be restarted.
	Stop() error

	// Commits returns the channel of parsed commit events.
	Commits() <-chan Event

	// Errors returns the channel of spool processing errors.
	Errors() <-chan error

	// Close releases all resources.
	Close() error
}

// Config contains commit watcher configuration.
type Config struct {
	// SpoolDir is the directory the commit hook writes signal files to.
	SpoolDir string

	// DebounceInterval coalesces rapid writes to the same file
	// (default: 100ms).
	DebounceInterval time.Duration
}
