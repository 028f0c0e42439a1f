package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/devlog/pkg/logger"
	"github.com/yourusername/devlog/pkg/workspace"
)

// stubStore implements the SessionStore interface for testing.
type stubStore struct {
	mu sync.Mutex

	monthCount int
	countErr   error
	createErr  error
	updateErr  error

	created []workspace.SessionInput
	updates map[string]workspace.SessionUpdate
	nextID  int
}

func newStubStore() *stubStore {
	return &stubStore{updates: make(map[string]workspace.SessionUpdate)}
}

func (s *stubStore) CreateSession(ctx context.Context, input workspace.SessionInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return "", s.createErr
	}

	s.nextID++
	s.created = append(s.created, input)
	return fmt.Sprintf("sess-%d", s.nextID), nil
}

func (s *stubStore) UpdateSession(ctx context.Context, id string, update workspace.SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}

	s.updates[id] = update
	return nil
}

func (s *stubStore) CountSessionsInMonth(ctx context.Context, year int, month time.Month) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.monthCount, nil
}

func (s *stubStore) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func (s *stubStore) updateFor(id string) (workspace.SessionUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.updates[id]
	return u, ok
}

// stubJournal implements the Journal interface for testing.
type stubJournal struct {
	mu        sync.Mutex
	appended  []string
	snapshots []SessionSnapshot
	cleared   int
}

func (j *stubJournal) AppendPending(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appended = append(j.appended, id)
	return nil
}

func (j *stubJournal) ClearPending() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cleared++
	return nil
}

func (j *stubJournal) RecordSession(snap SessionSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snapshots = append(j.snapshots, snap)
	return nil
}

func newTestEngine(t *testing.T, cfg Config, store SessionStore, jrnl Journal) Engine {
	t.Helper()

	eng := New(cfg, store, jrnl, logger.Noop())
	t.Cleanup(func() {
		if err := eng.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return eng
}

func editorBeat(at time.Time) Heartbeat {
	return Heartbeat{Source: SourceEditor, Timestamp: at}
}

func browserBeat(at time.Time) Heartbeat {
	return Heartbeat{Source: SourceBrowser, Timestamp: at}
}

var engineEpoch = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

func TestHeartbeatOpensSingleSession(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	ctx := context.Background()

	id1, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}
	if id1 == "" {
		t.Fatal("ProcessHeartbeat() returned empty session ID")
	}

	// Subsequent heartbeats reuse the open session.
	id2, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch.Add(10*time.Second)))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}
	if id2 != id1 {
		t.Errorf("second heartbeat session = %s, want %s", id2, id1)
	}

	id3, err := eng.ProcessHeartbeat(ctx, browserBeat(engineEpoch.Add(20*time.Second)))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}
	if id3 != id1 {
		t.Errorf("browser heartbeat session = %s, want %s", id3, id1)
	}

	if got := store.createdCount(); got != 1 {
		t.Errorf("CreateSession called %d times, want 1", got)
	}
}

func TestHeartbeatInvalidSource(t *testing.T) {
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, newStubStore(), nil)

	_, err := eng.ProcessHeartbeat(context.Background(), Heartbeat{Source: "terminal"})
	if !errors.Is(err, ErrInvalidSource) {
		t.Errorf("ProcessHeartbeat() error = %v, want ErrInvalidSource", err)
	}
}

func TestBrowserTimeAccrual(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{
		HeartbeatQuantum:  10,
		InactivityTimeout: time.Hour,
	}, store, nil)

	ctx := context.Background()

	// Six browser beats at 10s each credit exactly one minute.
	var id string
	for i := 0; i < 6; i++ {
		var err error
		id, err = eng.ProcessHeartbeat(ctx, browserBeat(engineEpoch.Add(time.Duration(i)*10*time.Second)))
		if err != nil {
			t.Fatalf("ProcessHeartbeat() error = %v", err)
		}
	}

	if err := eng.EndCurrentSession(ctx); err != nil {
		t.Fatalf("EndCurrentSession() error = %v", err)
	}

	update, ok := store.updateFor(id)
	if !ok {
		t.Fatal("UpdateSession was not called")
	}

	if update.BrowserMinutes != 1 {
		t.Errorf("BrowserMinutes = %d, want 1", update.BrowserMinutes)
	}
	if !update.Start.Equal(engineEpoch) {
		t.Errorf("Start = %v, want %v", update.Start, engineEpoch)
	}
	if !update.End.Equal(engineEpoch.Add(50 * time.Second)) {
		t.Errorf("End = %v, want %v", update.End, engineEpoch.Add(50*time.Second))
	}
}

func TestEndWithoutSessionIsNoop(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	if err := eng.EndCurrentSession(context.Background()); err != nil {
		t.Errorf("EndCurrentSession() error = %v, want nil", err)
	}

	if len(store.updates) != 0 {
		t.Error("UpdateSession called with no open session")
	}
}

func TestEndMovesSessionToPending(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	ctx := context.Background()

	id1, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	if err := eng.EndCurrentSession(ctx); err != nil {
		t.Fatalf("EndCurrentSession() error = %v", err)
	}

	pending := eng.PendingSessionIDs()
	if len(pending) != 1 || pending[0] != id1 {
		t.Errorf("PendingSessionIDs() = %v, want [%s]", pending, id1)
	}

	// The next heartbeat opens a brand new session.
	id2, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch.Add(time.Hour)))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}
	if id2 == id1 {
		t.Errorf("new session reused old ID %s", id1)
	}
}

func TestEndStoreFailureKeepsSessionOpen(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	ctx := context.Background()

	id, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	store.updateErr = errors.New("workspace down")

	if err := eng.EndCurrentSession(ctx); err == nil {
		t.Fatal("EndCurrentSession() error = nil, want store failure")
	}

	if got := eng.PendingSessionIDs(); len(got) != 0 {
		t.Errorf("PendingSessionIDs() = %v after failed close, want empty", got)
	}

	// The close is retryable once the store recovers.
	store.updateErr = nil

	if err := eng.EndCurrentSession(ctx); err != nil {
		t.Fatalf("retried EndCurrentSession() error = %v", err)
	}

	pending := eng.PendingSessionIDs()
	if len(pending) != 1 || pending[0] != id {
		t.Errorf("PendingSessionIDs() = %v, want [%s]", pending, id)
	}

	if got := store.createdCount(); got != 1 {
		t.Errorf("CreateSession called %d times, want 1", got)
	}
}

func TestCreateFailurePreservesStartTime(t *testing.T) {
	store := newStubStore()
	store.createErr = errors.New("workspace down")
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	ctx := context.Background()

	if _, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch)); err == nil {
		t.Fatal("ProcessHeartbeat() error = nil, want create failure")
	}

	// The retry keeps the original start time.
	store.mu.Lock()
	store.createErr = nil
	store.mu.Unlock()

	id, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch.Add(30*time.Second)))
	if err != nil {
		t.Fatalf("retried ProcessHeartbeat() error = %v", err)
	}

	if err := eng.EndCurrentSession(ctx); err != nil {
		t.Fatalf("EndCurrentSession() error = %v", err)
	}

	update, ok := store.updateFor(id)
	if !ok {
		t.Fatal("UpdateSession was not called")
	}
	if !update.Start.Equal(engineEpoch) {
		t.Errorf("Start = %v, want original %v", update.Start, engineEpoch)
	}
}

func TestSessionNameUsesMonthCounter(t *testing.T) {
	store := newStubStore()
	store.monthCount = 7
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	if _, err := eng.ProcessHeartbeat(context.Background(), editorBeat(engineEpoch)); err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	if got := store.createdCount(); got != 1 {
		t.Fatalf("CreateSession called %d times, want 1", got)
	}

	name := store.created[0].Name
	if !strings.HasPrefix(name, "Session ") {
		t.Errorf("Name = %q, want Session prefix", name)
	}
	if !strings.HasSuffix(name, "#008") {
		t.Errorf("Name = %q, want #008 suffix for month count 7", name)
	}
}

func TestSessionNameCounterFailureDefaultsToOne(t *testing.T) {
	store := newStubStore()
	store.countErr = errors.New("query failed")
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	if _, err := eng.ProcessHeartbeat(context.Background(), editorBeat(engineEpoch)); err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	name := store.created[0].Name
	if !strings.HasSuffix(name, "#001") {
		t.Errorf("Name = %q, want #001 suffix when the count is unavailable", name)
	}
}

func TestUpdateCodeStatsLastWriteWins(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	ctx := context.Background()

	id, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	eng.UpdateCodeStats(CodeStats{FilesChanged: 2, LinesAdded: 10, LinesRemoved: 1})
	eng.UpdateCodeStats(CodeStats{FilesChanged: 5, LinesAdded: 80, LinesRemoved: 12})

	if err := eng.EndCurrentSession(ctx); err != nil {
		t.Fatalf("EndCurrentSession() error = %v", err)
	}

	update, ok := store.updateFor(id)
	if !ok {
		t.Fatal("UpdateSession was not called")
	}

	if update.FilesChanged != 5 || update.LinesAdded != 80 || update.LinesRemoved != 12 {
		t.Errorf("code stats = %d/%d/%d, want 5/80/12 (last write wins)",
			update.FilesChanged, update.LinesAdded, update.LinesRemoved)
	}
}

func TestUpdateCodeStatsWithoutSession(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	// Must not panic or create a session.
	eng.UpdateCodeStats(CodeStats{FilesChanged: 1})

	if got := store.createdCount(); got != 0 {
		t.Errorf("CreateSession called %d times, want 0", got)
	}
}

func TestInactivityTimeoutAutoCloses(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: 50 * time.Millisecond}, store, nil)

	ctx := context.Background()

	id, err := eng.ProcessHeartbeat(ctx, editorBeat(time.Now()))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	// Wait past the timeout for the auto-close.
	deadline := time.After(2 * time.Second)
	for {
		pending := eng.PendingSessionIDs()
		if len(pending) == 1 && pending[0] == id {
			break
		}

		select {
		case <-deadline:
			t.Fatalf("session %s not auto-closed, pending = %v", id, eng.PendingSessionIDs())
		case <-time.After(20 * time.Millisecond):
		}
	}

	if _, ok := store.updateFor(id); !ok {
		t.Error("UpdateSession was not called by auto-close")
	}
}

func TestHeartbeatDefersInactivityTimeout(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: 150 * time.Millisecond}, store, nil)

	ctx := context.Background()

	id, err := eng.ProcessHeartbeat(ctx, editorBeat(time.Now()))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	// Beats faster than the timeout keep the session open.
	for i := 0; i < 5; i++ {
		time.Sleep(50 * time.Millisecond)
		if _, err := eng.ProcessHeartbeat(ctx, editorBeat(time.Now())); err != nil {
			t.Fatalf("ProcessHeartbeat() error = %v", err)
		}
	}

	if got := eng.PendingSessionIDs(); len(got) != 0 {
		t.Errorf("session %s closed despite steady heartbeats, pending = %v", id, got)
	}
}

func TestSeedAndClearPending(t *testing.T) {
	store := newStubStore()
	jrnl := &stubJournal{}
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, jrnl)

	eng.SeedPending([]string{"sess-a", "sess-b"})

	pending := eng.PendingSessionIDs()
	if len(pending) != 2 {
		t.Fatalf("PendingSessionIDs() = %v, want 2 entries", pending)
	}

	eng.ClearPendingSessions()

	if got := eng.PendingSessionIDs(); len(got) != 0 {
		t.Errorf("PendingSessionIDs() = %v after clear, want empty", got)
	}

	jrnl.mu.Lock()
	defer jrnl.mu.Unlock()
	if jrnl.cleared != 1 {
		t.Errorf("journal ClearPending called %d times, want 1", jrnl.cleared)
	}
}

func TestEndJournalsSnapshot(t *testing.T) {
	store := newStubStore()
	jrnl := &stubJournal{}
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, jrnl)

	ctx := context.Background()

	id, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	if err := eng.EndCurrentSession(ctx); err != nil {
		t.Fatalf("EndCurrentSession() error = %v", err)
	}

	jrnl.mu.Lock()
	defer jrnl.mu.Unlock()

	if len(jrnl.appended) != 1 || jrnl.appended[0] != id {
		t.Errorf("journal appended = %v, want [%s]", jrnl.appended, id)
	}
	if len(jrnl.snapshots) != 1 || jrnl.snapshots[0].ID != id {
		t.Errorf("journal snapshots = %+v, want one for %s", jrnl.snapshots, id)
	}
	if jrnl.snapshots[0].Name == "" {
		t.Error("journaled snapshot has no name")
	}
}

func TestOnSessionChangeObserver(t *testing.T) {
	store := newStubStore()
	eng := newTestEngine(t, Config{InactivityTimeout: time.Hour}, store, nil)

	var mu sync.Mutex
	var transitions [][2]string

	eng.OnSessionChange(func(oldID, newID string) {
		mu.Lock()
		transitions = append(transitions, [2]string{oldID, newID})
		mu.Unlock()
	})

	ctx := context.Background()

	id, err := eng.ProcessHeartbeat(ctx, editorBeat(engineEpoch))
	if err != nil {
		t.Fatalf("ProcessHeartbeat() error = %v", err)
	}

	if err := eng.EndCurrentSession(ctx); err != nil {
		t.Fatalf("EndCurrentSession() error = %v", err)
	}

	// Creation notifications are delivered asynchronously.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(transitions)
		mu.Unlock()
		if n >= 2 {
			break
		}

		select {
		case <-deadline:
			t.Fatalf("observed %d transitions, want 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()

	var sawOpen, sawClose bool
	for _, tr := range transitions {
		if tr[0] == "" && tr[1] == id {
			sawOpen = true
		}
		if tr[0] == id && tr[1] == "" {
			sawClose = true
		}
	}

	if !sawOpen {
		t.Errorf("missing open transition for %s in %v", id, transitions)
	}
	if !sawClose {
		t.Errorf("missing close transition for %s in %v", id, transitions)
	}
}

func TestClosedEngineRejectsHeartbeats(t *testing.T) {
	store := newStubStore()
	eng := New(Config{InactivityTimeout: time.Hour}, store, nil, logger.Noop())

	if err := eng.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := eng.ProcessHeartbeat(context.Background(), editorBeat(engineEpoch))
	if !errors.Is(err, ErrEngineClosed) {
		t.Errorf("ProcessHeartbeat() error = %v, want ErrEngineClosed", err)
	}
}
