// Package workspace provides the client for the external page-backed
// record store (projects, tasks, sessions).
//
// The store is treated as an opaque CRUD collection keyed by page ID:
// the rest of the system only creates pages, updates pages, queries by a
// single filter, and attaches relations. All failures surface as generic
// store errors; callers do not interpret error subtypes beyond
// succeeded / failed.
//
// Example usage:
//
//	store := workspace.New(workspace.Config{
//	    APIToken:           token,
//	    SessionsDatabaseID: sessionsDB,
//	    ProjectsDatabaseID: projectsDB,
//	    TasksDatabaseID:    tasksDB,
//	}, logger.Default())
//
//	id, err := store.CreateSession(ctx, workspace.SessionInput{
//	    Name:  "Session 2026-08 #001",
//	    Start: time.Now(),
//	})
package workspace

import (
	"context"
	"time"
)

// SessionInput is the payload for creating a session record.
type SessionInput struct {
	// Name is the generated session name ("Session YYYY-MM #NNN").
	Name string

	// Start is the session start time.
	Start time.Time
}

// SessionUpdate is the final state written when a session closes.
type SessionUpdate struct {
	Start time.Time
	End   time.Time

	// Times in whole minutes.
	EditorMinutes  int
	BrowserMinutes int

	// Last-known code change statistics.
	FilesChanged int
	LinesAdded   int
	LinesRemoved int
}

// ProjectInput is the payload for creating a project record.
type ProjectInput struct {
	Name          string
	Slug          string
	Description   string
	RepositoryURL string
	Status        string
	Start         time.Time
}

// TaskInput is the payload for creating a task record.
type TaskInput struct {
	Name      string
	Details   string
	ProjectID string
	Status    string
	CommitURL string
	Due       time.Time
}

// Store provides page operations against the workspace record store.
type Store interface {
	// CreateSession creates a session page.
	//
	// Returns:
	//   - ID of the created page
	//   - Error for API failures
	CreateSession(ctx context.Context, input SessionInput) (string, error)

	// UpdateSession overwrites the properties of a session page.
	UpdateSession(ctx context.Context, id string, update SessionUpdate) error

	// CountSessionsInMonth counts session pages whose date falls inside
	// the given calendar month.
	CountSessionsInMonth(ctx context.Context, year int, month time.Month) (int, error)

	// FindProjectBySlug returns the ID of the project page with the
	// given slug.
	//
	// Returns:
	//   - Page ID if found
	//   - ErrPageNotFound if no project matches
	//   - Error for API failures
	FindProjectBySlug(ctx context.Context, slug string) (string, error)

	// CreateProject creates a project page.
	CreateProject(ctx context.Context, input ProjectInput) (string, error)

	// CreateTask creates a task page.
	CreateTask(ctx context.Context, input TaskInput) (string, error)

	// LinkTaskSessions attaches session pages to a task page as
	// relations in a single update.
	LinkTaskSessions(ctx context.Context, taskID string, sessionIDs []string) error
}

// Config contains workspace store configuration.
type Config struct {
	// APIToken authenticates against the workspace API.
	APIToken string

	// BaseURL overrides the API endpoint; empty means production.
	BaseURL string

	// Database identifiers for each collection.
	ProjectsDatabaseID string
	TasksDatabaseID    string
	SessionsDatabaseID string

	// RequestTimeout bounds a single API call (default: 15 seconds).
	RequestTimeout time.Duration
}
