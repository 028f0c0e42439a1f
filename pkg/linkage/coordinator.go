package linkage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/devlog/pkg/logger"
	"github.com/yourusername/devlog/pkg/repometa"
	"github.com/yourusername/devlog/pkg/tracker"
	"github.com/yourusername/devlog/pkg/workspace"
)

// Statuses assigned to records created from commits.
const (
	projectStatus = "Active"
	taskStatus    = "Done"
)

// coordinator implements the Coordinator interface.
type coordinator struct {
	store   workspace.Store
	engine  tracker.Engine
	fetcher repometa.Fetcher
	logger  logger.Logger
}

// New creates a commit linkage coordinator.
//
// Parameters:
//   - store: Workspace store for project/task records
//   - engine: Session engine owning the pending queue
//   - fetcher: Best-effort repository metadata fetcher
//   - log: Logger instance
//
// Returns a configured Coordinator.
func New(store workspace.Store, engine tracker.Engine, fetcher repometa.Fetcher, log logger.Logger) Coordinator {
	return &coordinator{
		store:   store,
		engine:  engine,
		fetcher: fetcher,
		logger:  log,
	}
}

// ProcessCommit implements Coordinator.ProcessCommit.
func (c *coordinator) ProcessCommit(ctx context.Context, info CommitInfo) (string, error) {
	// 1. Close the current session; a no-op when none is open.
	if err := c.engine.EndCurrentSession(ctx); err != nil {
		return "", fmt.Errorf("failed to end session for commit %s: %w", info.Hash, err)
	}

	// 2. Resolve or create the owning project.
	projectID, err := c.resolveProject(ctx, info.Repository)
	if err != nil {
		return "", err
	}

	// 3. Create the task record from the commit.
	taskID, err := c.createTask(ctx, info, projectID)
	if err != nil {
		return "", err
	}

	// 4. Attach all pending sessions in one update, then clear the queue.
	if err := c.linkPendingSessions(ctx, taskID); err != nil {
		return "", err
	}

	return taskID, nil
}

// resolveProject finds the project by repository slug, creating it on a
// miss. Metadata lookup failures degrade to the raw repository name and a
// synthesized URL; they never fail the commit.
func (c *coordinator) resolveProject(ctx context.Context, repo Repository) (string, error) {
	slug := strings.ToLower(repo.Name)

	projectID, err := c.store.FindProjectBySlug(ctx, slug)
	if err == nil {
		c.logger.Debug("found existing project",
			"slug", slug,
			"project_id", projectID)
		return projectID, nil
	}
	if !errors.Is(err, workspace.ErrPageNotFound) {
		return "", fmt.Errorf("failed to look up project %q: %w", slug, err)
	}

	input := workspace.ProjectInput{
		Name:          repo.Name,
		Slug:          slug,
		RepositoryURL: fmt.Sprintf("https://github.com/%s/%s", repo.Owner, repo.Name),
		Status:        projectStatus,
	}

	details, fetchErr := c.fetcher.Fetch(ctx, repo.Owner, repo.Name)
	if fetchErr != nil {
		c.logger.Warn("repo metadata unavailable, using defaults",
			"owner", repo.Owner,
			"name", repo.Name,
			"error", fetchErr)
	} else {
		if details.Name != "" {
			input.Name = details.Name
		}
		if details.HTMLURL != "" {
			input.RepositoryURL = details.HTMLURL
		}
		input.Description = details.Description
		input.Start = details.CreatedAt
	}

	projectID, err = c.store.CreateProject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create project %q: %w", slug, err)
	}

	c.logger.Info("created project",
		"slug", slug,
		"name", input.Name,
		"project_id", projectID)

	return projectID, nil
}

// createTask builds a task record from the commit: subject line becomes
// the name, remaining non-blank lines become the details.
func (c *coordinator) createTask(ctx context.Context, info CommitInfo, projectID string) (string, error) {
	subject, details := splitMessage(info.Message)

	taskID, err := c.store.CreateTask(ctx, workspace.TaskInput{
		Name:      subject,
		Details:   details,
		ProjectID: projectID,
		Status:    taskStatus,
		CommitURL: commitURL(info),
		Due:       info.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create task for commit %s: %w", info.Hash, err)
	}

	c.logger.Info("created task from commit",
		"subject", subject,
		"hash", info.Hash,
		"task_id", taskID)

	return taskID, nil
}

// linkPendingSessions attaches all pending sessions to the task in a
// single call and clears the queue. An empty queue skips the update
// entirely.
func (c *coordinator) linkPendingSessions(ctx context.Context, taskID string) error {
	pending := c.engine.PendingSessionIDs()
	if len(pending) == 0 {
		c.logger.Debug("no pending sessions to link", "task_id", taskID)
		return nil
	}

	if err := c.store.LinkTaskSessions(ctx, taskID, pending); err != nil {
		return fmt.Errorf("failed to link %d sessions to task %s: %w", len(pending), taskID, err)
	}

	c.engine.ClearPendingSessions()

	c.logger.Info("linked pending sessions to task",
		"task_id", taskID,
		"session_count", len(pending))

	return nil
}

// splitMessage splits a commit message into its subject line and the
// remaining non-blank lines.
func splitMessage(message string) (subject, details string) {
	lines := strings.Split(message, "\n")

	subject = strings.TrimSpace(lines[0])

	rest := make([]string, 0, len(lines))
	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			rest = append(rest, trimmed)
		}
	}

	return subject, strings.Join(rest, "\n")
}

// commitURL synthesizes the web URL of a commit.
func commitURL(info CommitInfo) string {
	return fmt.Sprintf("https://github.com/%s/%s/commit/%s",
		info.Repository.Owner, info.Repository.Name, info.Hash)
}
