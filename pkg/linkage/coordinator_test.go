package linkage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/devlog/pkg/logger"
	"github.com/yourusername/devlog/pkg/repometa"
	"github.com/yourusername/devlog/pkg/tracker"
	"github.com/yourusername/devlog/pkg/workspace"
)

// mockStore implements the workspace.Store interface for testing.
type mockStore struct {
	projects map[string]string // slug -> id

	createdProjects []workspace.ProjectInput
	createdTasks    []workspace.TaskInput
	linkedTaskID    string
	linkedSessions  []string
	linkCalls       int

	findErr   error
	createErr error
	taskErr   error
	linkErr   error
}

func newMockStore() *mockStore {
	return &mockStore{projects: make(map[string]string)}
}

func (m *mockStore) CreateSession(ctx context.Context, input workspace.SessionInput) (string, error) {
	return "sess-new", nil
}

func (m *mockStore) UpdateSession(ctx context.Context, id string, update workspace.SessionUpdate) error {
	return nil
}

func (m *mockStore) CountSessionsInMonth(ctx context.Context, year int, month time.Month) (int, error) {
	return 0, nil
}

func (m *mockStore) FindProjectBySlug(ctx context.Context, slug string) (string, error) {
	if m.findErr != nil {
		return "", m.findErr
	}
	if id, ok := m.projects[slug]; ok {
		return id, nil
	}
	return "", workspace.ErrPageNotFound
}

func (m *mockStore) CreateProject(ctx context.Context, input workspace.ProjectInput) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.createdProjects = append(m.createdProjects, input)
	return "proj-new", nil
}

func (m *mockStore) CreateTask(ctx context.Context, input workspace.TaskInput) (string, error) {
	if m.taskErr != nil {
		return "", m.taskErr
	}
	m.createdTasks = append(m.createdTasks, input)
	return "task-new", nil
}

func (m *mockStore) LinkTaskSessions(ctx context.Context, taskID string, sessionIDs []string) error {
	m.linkCalls++
	if m.linkErr != nil {
		return m.linkErr
	}
	m.linkedTaskID = taskID
	m.linkedSessions = sessionIDs
	return nil
}

// mockEngine implements the tracker.Engine interface for testing.
type mockEngine struct {
	pending []string
	ended   bool
	cleared bool
	endErr  error
}

func (m *mockEngine) ProcessHeartbeat(ctx context.Context, hb tracker.Heartbeat) (string, error) {
	return "", nil
}

func (m *mockEngine) UpdateCodeStats(stats tracker.CodeStats) {}

func (m *mockEngine) ProcessWindowState(ev tracker.WindowStateEvent) {}

func (m *mockEngine) EndCurrentSession(ctx context.Context) error {
	if m.endErr != nil {
		return m.endErr
	}
	m.ended = true
	return nil
}

func (m *mockEngine) PendingSessionIDs() []string {
	ids := make([]string, len(m.pending))
	copy(ids, m.pending)
	return ids
}

func (m *mockEngine) ClearPendingSessions() {
	m.cleared = true
	m.pending = nil
}

func (m *mockEngine) SeedPending(ids []string) {
	m.pending = append(m.pending, ids...)
}

func (m *mockEngine) OnSessionChange(fn func(oldID, newID string)) {}

func (m *mockEngine) Close() error { return nil }

// mockFetcher implements the repometa.Fetcher interface for testing.
type mockFetcher struct {
	details *repometa.Details
	err     error
}

func (m *mockFetcher) Fetch(ctx context.Context, owner, name string) (*repometa.Details, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.details, nil
}

func testCommit() CommitInfo {
	return CommitInfo{
		Message:   "Fix reconnect loop\n\nRetry with exponential backoff.\n",
		Timestamp: time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC),
		Hash:      "abc1234",
		Repository: Repository{
			Name:  "DevLog",
			Owner: "acme",
		},
	}
}

func TestProcessCommitCreatesTask(t *testing.T) {
	store := newMockStore()
	store.projects["devlog"] = "proj-1"
	engine := &mockEngine{pending: []string{"s1", "s2"}}
	fetcher := &mockFetcher{}

	c := New(store, engine, fetcher, logger.Noop())

	taskID, err := c.ProcessCommit(context.Background(), testCommit())
	require.NoError(t, err)
	assert.Equal(t, "task-new", taskID)

	assert.True(t, engine.ended, "current session should be ended")

	require.Len(t, store.createdTasks, 1)
	task := store.createdTasks[0]
	assert.Equal(t, "Fix reconnect loop", task.Name)
	assert.Equal(t, "Retry with exponential backoff.", task.Details)
	assert.Equal(t, "proj-1", task.ProjectID)
	assert.Equal(t, "Done", task.Status)
	assert.Equal(t, "https://github.com/acme/DevLog/commit/abc1234", task.CommitURL)
	assert.Equal(t, testCommit().Timestamp, task.Due)
}

func TestProcessCommitDrainsPendingQueue(t *testing.T) {
	store := newMockStore()
	store.projects["devlog"] = "proj-1"
	engine := &mockEngine{pending: []string{"s1", "s2", "s3"}}

	c := New(store, engine, &mockFetcher{}, logger.Noop())

	_, err := c.ProcessCommit(context.Background(), testCommit())
	require.NoError(t, err)

	// All pending sessions attached in a single call, queue cleared.
	assert.Equal(t, 1, store.linkCalls)
	assert.Equal(t, "task-new", store.linkedTaskID)
	assert.Equal(t, []string{"s1", "s2", "s3"}, store.linkedSessions)
	assert.True(t, engine.cleared)
	assert.Empty(t, engine.PendingSessionIDs())
}

func TestProcessCommitEmptyQueueSkipsLink(t *testing.T) {
	store := newMockStore()
	store.projects["devlog"] = "proj-1"
	engine := &mockEngine{}

	c := New(store, engine, &mockFetcher{}, logger.Noop())

	_, err := c.ProcessCommit(context.Background(), testCommit())
	require.NoError(t, err)

	assert.Equal(t, 0, store.linkCalls, "empty queue must not trigger a link call")
	assert.False(t, engine.cleared)
}

func TestProcessCommitCreatesProjectOnMiss(t *testing.T) {
	store := newMockStore()
	engine := &mockEngine{}
	fetcher := &mockFetcher{
		details: &repometa.Details{
			Name:        "devlog",
			Description: "Developer time tracker",
			HTMLURL:     "https://github.com/acme/devlog",
			CreatedAt:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	c := New(store, engine, fetcher, logger.Noop())

	_, err := c.ProcessCommit(context.Background(), testCommit())
	require.NoError(t, err)

	require.Len(t, store.createdProjects, 1)
	project := store.createdProjects[0]
	assert.Equal(t, "devlog", project.Slug)
	assert.Equal(t, "devlog", project.Name)
	assert.Equal(t, "Developer time tracker", project.Description)
	assert.Equal(t, "https://github.com/acme/devlog", project.RepositoryURL)
	assert.Equal(t, "Active", project.Status)
}

func TestProcessCommitMetadataFailureDegrades(t *testing.T) {
	store := newMockStore()
	engine := &mockEngine{}
	fetcher := &mockFetcher{err: errors.New("api down")}

	c := New(store, engine, fetcher, logger.Noop())

	_, err := c.ProcessCommit(context.Background(), testCommit())
	require.NoError(t, err, "metadata failure must not fail the commit")

	require.Len(t, store.createdProjects, 1)
	project := store.createdProjects[0]
	assert.Equal(t, "DevLog", project.Name, "raw repo name used as fallback")
	assert.Equal(t, "https://github.com/acme/DevLog", project.RepositoryURL)
	assert.Empty(t, project.Description)
}

func TestProcessCommitEndSessionFailureAborts(t *testing.T) {
	store := newMockStore()
	engine := &mockEngine{endErr: errors.New("store down")}

	c := New(store, engine, &mockFetcher{}, logger.Noop())

	_, err := c.ProcessCommit(context.Background(), testCommit())
	require.Error(t, err)

	assert.Empty(t, store.createdProjects)
	assert.Empty(t, store.createdTasks)
	assert.Equal(t, 0, store.linkCalls)
}

func TestProcessCommitTaskFailureKeepsQueue(t *testing.T) {
	store := newMockStore()
	store.projects["devlog"] = "proj-1"
	store.taskErr = errors.New("task create failed")
	engine := &mockEngine{pending: []string{"s1"}}

	c := New(store, engine, &mockFetcher{}, logger.Noop())

	_, err := c.ProcessCommit(context.Background(), testCommit())
	require.Error(t, err)

	// The queue survives so a retried commit can still link the session.
	assert.False(t, engine.cleared)
	assert.Equal(t, []string{"s1"}, engine.PendingSessionIDs())
}

func TestProcessCommitLinkFailureKeepsQueue(t *testing.T) {
	store := newMockStore()
	store.projects["devlog"] = "proj-1"
	store.linkErr = errors.New("link failed")
	engine := &mockEngine{pending: []string{"s1", "s2"}}

	c := New(store, engine, &mockFetcher{}, logger.Noop())

	_, err := c.ProcessCommit(context.Background(), testCommit())
	require.Error(t, err)

	assert.False(t, engine.cleared)
	assert.Len(t, engine.PendingSessionIDs(), 2)
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		wantSubject string
		wantDetails string
	}{
		{
			name:        "subject only",
			message:     "Fix bug",
			wantSubject: "Fix bug",
			wantDetails: "",
		},
		{
			name:        "subject and body",
			message:     "Fix bug\n\nLong explanation.\nSecond line.",
			wantSubject: "Fix bug",
			wantDetails: "Long explanation.\nSecond line.",
		},
		{
			name:        "blank lines dropped",
			message:     "Fix bug\n\n\nDetail.\n\n",
			wantSubject: "Fix bug",
			wantDetails: "Detail.",
		},
		{
			name:        "empty message",
			message:     "",
			wantSubject: "",
			wantDetails: "",
		},
		{
			name:        "whitespace trimmed",
			message:     "  Fix bug  \n  indented detail  ",
			wantSubject: "Fix bug",
			wantDetails: "indented detail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, details := splitMessage(tt.message)
			if subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", subject, tt.wantSubject)
			}
			if details != tt.wantDetails {
				t.Errorf("details = %q, want %q", details, tt.wantDetails)
			}
		})
	}
}
