// Package linkage orchestrates commit processing: it closes the current
// session, resolves or creates the owning project, creates a task record
// from the commit, and atomically reassigns all pending sessions to that
// task.
//
// The sequence is one logical unit but not a transaction: a step's
// failure aborts the remaining steps without rolling back completed ones.
// Ended sessions and created projects stay in place even if task creation
// fails; the caller may retry the whole commit.
package linkage

import (
	"context"
	"time"
)

// Repository identifies the repository a commit belongs to.
type Repository struct {
	// Name is the repository name.
	Name string `json:"name"`

	// Owner is the repository owner (user or organization).
	Owner string `json:"owner"`
}

// CommitInfo describes a single commit signal.
type CommitInfo struct {
	// Message is the full commit message.
	Message string `json:"message"`

	// Timestamp is when the commit was made.
	Timestamp time.Time `json:"timestamp"`

	// Hash is the commit hash.
	Hash string `json:"hash"`

	// Repository is the repository the commit belongs to.
	Repository Repository `json:"repository"`
}

// Coordinator processes commit signals.
type Coordinator interface {
	// ProcessCommit ends the current session, resolves the project,
	// creates a task from the commit and links all pending sessions
	// to it.
	//
	// Returns:
	//   - ID of the created task
	//   - Error if any step fails; completed steps are not rolled back
	ProcessCommit(ctx context.Context, info CommitInfo) (string, error)
}
