package tracker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yourusername/devlog/pkg/logger"
	"github.com/yourusername/devlog/pkg/workspace"
)

// activeSession is the mutable state of the single in-flight session.
// An empty id means no session is open; startTime survives a failed
// creation so the next heartbeat retries with the original start.
type activeSession struct {
	id             string
	name           string
	startTime      time.Time
	lastActivity   time.Time
	editorSeconds  int
	browserSeconds int
	codeStats      CodeStats
}

// engine implements the Engine interface.
type engine struct {
	store   SessionStore
	journal Journal // may be nil
	logger  logger.Logger
	config  Config
	focus   *FocusTracker

	// mu guards every read-mutate-write sequence on the session slot,
	// including across the suspension point of a store call: a commit
	// must observe the session either fully open or absent, never
	// half-created.
	mu             sync.Mutex
	active         activeSession
	pending        []string
	sessionCounter int
	idleTimer      *time.Timer
	closed         bool

	observers []func(oldID, newID string)

	now func() time.Time
}

// New creates a session lifecycle engine.
//
// Parameters:
//   - cfg: Session lifecycle settings (zero values get defaults)
//   - store: Workspace store used for session records
//   - jrnl: Optional journal for pending-queue durability (may be nil)
//   - log: Logger instance
//
// Returns a configured Engine.
func New(cfg Config, store SessionStore, jrnl Journal, log logger.Logger) Engine {
	// Set defaults.
	if cfg.HeartbeatQuantum == 0 {
		cfg.HeartbeatQuantum = 10
	}
	if cfg.InactivityTimeout == 0 {
		cfg.InactivityTimeout = 2 * time.Minute
	}

	e := &engine{
		store:   store,
		journal: jrnl,
		logger:  log,
		config:  cfg,
		focus:   NewFocusTracker(cfg.InactivityTimeout),
		now:     time.Now,
	}

	log.Info("session engine initialized",
		"heartbeat_quantum_s", cfg.HeartbeatQuantum,
		"inactivity_timeout", cfg.InactivityTimeout)

	return e
}

// ProcessHeartbeat implements Engine.ProcessHeartbeat.
func (e *engine) ProcessHeartbeat(ctx context.Context, hb Heartbeat) (string, error) {
	if !hb.Source.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, hb.Source)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", ErrEngineClosed
	}

	ts := hb.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	// Client clocks are trusted; an out-of-order timestamp still wins,
	// but is worth flagging.
	if e.active.id != "" && ts.Before(e.active.lastActivity) {
		e.logger.Warn("heartbeat older than last activity",
			"timestamp", ts,
			"last_activity", e.active.lastActivity,
			"session_id", e.active.id)
	}

	e.active.lastActivity = ts

	switch hb.Source {
	case SourceEditor:
		e.active.editorSeconds += e.config.HeartbeatQuantum
		e.focus.KeepAlive(ts)
	case SourceBrowser:
		e.active.browserSeconds += e.config.HeartbeatQuantum
	}

	e.scheduleInactivityTimeout()

	if e.active.id == "" {
		if e.active.startTime.IsZero() {
			e.active.startTime = ts
		}
		return e.createSession(ctx)
	}

	e.logger.Debug("processed heartbeat",
		"source", hb.Source,
		"session_id", e.active.id,
		"editor_s", e.active.editorSeconds,
		"browser_s", e.active.browserSeconds)

	return e.active.id, nil
}

// UpdateCodeStats implements Engine.UpdateCodeStats.
func (e *engine) UpdateCodeStats(stats CodeStats) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active.id == "" {
		e.logger.Warn("no open session to update code stats")
		return
	}

	// Last write wins; values are never summed.
	e.active.codeStats = stats

	e.logger.Debug("updated code stats",
		"session_id", e.active.id,
		"files_changed", stats.FilesChanged,
		"lines_added", stats.LinesAdded,
		"lines_removed", stats.LinesRemoved)
}

// ProcessWindowState implements Engine.ProcessWindowState.
func (e *engine) ProcessWindowState(ev WindowStateEvent) {
	e.focus.ProcessWindowState(ev)
}

// EndCurrentSession implements Engine.EndCurrentSession.
func (e *engine) EndCurrentSession(ctx context.Context) error {
	e.mu.Lock()

	if e.active.id == "" {
		e.mu.Unlock()
		return nil
	}

	e.cancelInactivityTimeout()

	editorMinutes := e.focus.TotalMinutes()
	browserMinutes := int(math.Round(float64(e.active.browserSeconds) / 60))

	update := workspace.SessionUpdate{
		Start:          e.active.startTime,
		End:            e.active.lastActivity,
		EditorMinutes:  editorMinutes,
		BrowserMinutes: browserMinutes,
		FilesChanged:   e.active.codeStats.FilesChanged,
		LinesAdded:     e.active.codeStats.LinesAdded,
		LinesRemoved:   e.active.codeStats.LinesRemoved,
	}

	if err := e.store.UpdateSession(ctx, e.active.id, update); err != nil {
		// Leave the session open so the close can be retried.
		sessionID := e.active.id
		e.mu.Unlock()
		return fmt.Errorf("failed to finalize session %s: %w", sessionID, err)
	}

	sessionID := e.active.id
	snap := SessionSnapshot{
		ID:             sessionID,
		Name:           e.active.name,
		Start:          e.active.startTime,
		End:            e.active.lastActivity,
		EditorMinutes:  editorMinutes,
		BrowserMinutes: browserMinutes,
		CodeStats:      e.active.codeStats,
	}

	e.pending = append(e.pending, sessionID)
	e.journalAppend(sessionID, snap)

	e.active = activeSession{}
	e.focus.Reset()

	pendingCount := len(e.pending)
	observers := e.snapshotObservers()
	e.mu.Unlock()

	for _, fn := range observers {
		fn(sessionID, "")
	}

	e.logger.Info("session ended",
		"session_id", sessionID,
		"editor_minutes", editorMinutes,
		"browser_minutes", browserMinutes,
		"pending_sessions", pendingCount)

	return nil
}

// PendingSessionIDs implements Engine.PendingSessionIDs.
func (e *engine) PendingSessionIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, len(e.pending))
	copy(ids, e.pending)
	return ids
}

// ClearPendingSessions implements Engine.ClearPendingSessions.
func (e *engine) ClearPendingSessions() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Debug("clearing pending sessions", "count", len(e.pending))
	e.pending = nil

	if e.journal != nil {
		if err := e.journal.ClearPending(); err != nil {
			e.logger.Warn("failed to clear journaled pending sessions", "error", err)
		}
	}
}

// SeedPending implements Engine.SeedPending.
func (e *engine) SeedPending(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	e.pending = append(e.pending, ids...)
	e.logger.Info("restored pending sessions", "count", len(ids))
}

// OnSessionChange implements Engine.OnSessionChange.
func (e *engine) OnSessionChange(fn func(oldID, newID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.observers = append(e.observers, fn)
}

// Close implements Engine.Close.
func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true
	e.cancelInactivityTimeout()
	e.focus.Stop()

	e.logger.Info("session engine closed")
	return nil
}

// createSession creates the session record in the workspace store and
// stores the returned ID. Caller must hold e.mu.
func (e *engine) createSession(ctx context.Context) (string, error) {
	if e.sessionCounter == 0 {
		e.initializeSessionCounter(ctx)
	}

	name := e.nextSessionName()

	sessionID, err := e.store.CreateSession(ctx, workspace.SessionInput{
		Name:  name,
		Start: e.active.startTime,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	e.active.id = sessionID
	e.active.name = name

	observers := e.snapshotObservers()
	go func() {
		for _, fn := range observers {
			fn("", sessionID)
		}
	}()

	e.logger.Info("session created",
		"session_id", sessionID,
		"name", name)

	return sessionID, nil
}

// initializeSessionCounter seeds the counter from the number of sessions
// already recorded this month. Best-effort: on failure the counter stays
// at zero and naming starts from #001. Caller must hold e.mu.
func (e *engine) initializeSessionCounter(ctx context.Context) {
	now := e.now()

	count, err := e.store.CountSessionsInMonth(ctx, now.Year(), now.Month())
	if err != nil {
		e.logger.Error("failed to initialize session counter", "error", err)
		return
	}

	e.sessionCounter = count
	e.logger.Info("initialized session counter", "count", count)
}

// nextSessionName increments the counter and formats a name of the form
// "Session YYYY-MM #NNN". Caller must hold e.mu.
func (e *engine) nextSessionName() string {
	e.sessionCounter++

	now := e.now()
	return fmt.Sprintf("Session %04d-%02d #%03d", now.Year(), int(now.Month()), e.sessionCounter)
}

// scheduleInactivityTimeout re-arms the auto-close timer, replacing any
// pending one. Cancel-then-reschedule, never extend. Caller must hold e.mu.
func (e *engine) scheduleInactivityTimeout() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(e.config.InactivityTimeout, func() {
		// A heartbeat may have re-armed the timer while this callback
		// was waiting to run; only the current timer may close the
		// session.
		e.mu.Lock()
		stale := e.idleTimer != timer
		e.mu.Unlock()
		if stale {
			return
		}

		if err := e.EndCurrentSession(context.Background()); err != nil {
			e.logger.Error("failed to auto-close session", "error", err)
		}
	})
	e.idleTimer = timer
}

// cancelInactivityTimeout stops the auto-close timer if armed.
// Caller must hold e.mu.
func (e *engine) cancelInactivityTimeout() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
}

// journalAppend records a closed session in the journal. Failures are
// logged, never propagated. Caller must hold e.mu.
func (e *engine) journalAppend(sessionID string, snap SessionSnapshot) {
	if e.journal == nil {
		return
	}

	if err := e.journal.AppendPending(sessionID); err != nil {
		e.logger.Warn("failed to journal pending session",
			"session_id", sessionID,
			"error", err)
	}

	if err := e.journal.RecordSession(snap); err != nil {
		e.logger.Warn("failed to journal session snapshot",
			"session_id", sessionID,
			"error", err)
	}
}

// snapshotObservers copies the observer list. Caller must hold e.mu.
func (e *engine) snapshotObservers() []func(oldID, newID string) {
	observers := make([]func(oldID, newID string), len(e.observers))
	copy(observers, e.observers)
	return observers
}
