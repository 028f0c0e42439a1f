package commitwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/yourusername/devlog/pkg/linkage"
	"github.com/yourusername/devlog/pkg/logger"
)

// commitSignal is the wire format of a spool file, as written by the
// post-commit hook.
type commitSignal struct {
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"` // Milliseconds since epoch.
	Hash       string `json:"hash"`
	Repository struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
	} `json:"repository"`
}

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw      *fsnotify.Watcher
	logger   logger.Logger
	config   Config
	spoolDir string

	commits chan Event
	errors  chan error

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// Debouncing state.
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
}

// New creates a new commit spool watcher.
//
// Parameters:
//   - cfg: Watcher configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Watcher
//   - Error if the fsnotify watcher cannot be created
func New(cfg Config, log logger.Logger) (Watcher, error) {
	// Set defaults.
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &watcher{
		fsw:            fsw,
		logger:         log,
		config:         cfg,
		spoolDir:       expandHome(cfg.SpoolDir),
		commits:        make(chan Event, 100),
		errors:         make(chan error, 10),
		stopChan:       make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}

	log.Info("commit watcher created",
		"spool_dir", w.spoolDir,
		"debounce_interval", cfg.DebounceInterval)

	return w, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.running = true
	w.mu.Unlock()

	// Create the spool directory if it doesn't exist.
	if err := os.MkdirAll(w.spoolDir, 0700); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	if err := w.fsw.Add(w.spoolDir); err != nil {
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	// Drain files left over from previous runs before taking live events.
	w.drainExisting()

	w.logger.Info("commit watcher started", "spool_dir", w.spoolDir)

	go w.processEvents(ctx)

	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.running {
		return ErrNotStarted
	}

	close(w.stopChan)
	w.running = false

	w.logger.Info("commit watcher stopped")
	return nil
}

// Commits implements Watcher.Commits.
func (w *watcher) Commits() <-chan Event {
	return w.commits
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if w.running {
		close(w.stopChan)
		w.running = false
	}

	close(w.commits)
	close(w.errors)

	// Cancel debounce timers.
	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = nil
	w.debounceMu.Unlock()

	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Info("commit watcher closed")
	return nil
}

// drainExisting processes spool files already present at startup.
func (w *watcher) drainExisting() {
	entries, err := os.ReadDir(w.spoolDir)
	if err != nil {
		w.logger.Warn("failed to read spool directory", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		w.processFile(filepath.Join(w.spoolDir, entry.Name()))
	}
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("spool processing stopped", "reason", "context cancelled")
			return

		case <-w.stopChan:
			w.logger.Info("spool processing stopped", "reason", "stop signal")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.logger.Warn("fsnotify events channel closed")
				return
			}

			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.logger.Warn("fsnotify errors channel closed")
				return
			}

			w.sendError(err)
		}
	}
}

// handleEvent debounces create/write events for spool files.
func (w *watcher) handleEvent(event fsnotify.Event) {
	// Only signal files matter.
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}

	// The hook writes the file once; anything else is noise.
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimers == nil {
		return
	}

	// Cancel existing timer for this path.
	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	path := event.Name
	w.debounceTimers[path] = time.AfterFunc(w.config.DebounceInterval, func() {
		w.mu.RLock()
		closed := w.closed
		w.mu.RUnlock()

		if !closed {
			w.processFile(path)
		}

		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
	})
}

// processFile parses, validates and emits one spool file, removing it
// on success. Invalid files are renamed aside so they are not retried.
func (w *watcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already consumed by an earlier event.
			return
		}
		w.sendError(fmt.Errorf("failed to read spool file %s: %w", path, err))
		return
	}

	var signal commitSignal
	if err := json.Unmarshal(data, &signal); err != nil {
		w.quarantine(path, fmt.Errorf("failed to parse spool file %s: %w", path, err))
		return
	}

	if err := validateSignal(signal); err != nil {
		w.quarantine(path, fmt.Errorf("spool file %s: %w", path, err))
		return
	}

	info := linkage.CommitInfo{
		Message:   signal.Message,
		Timestamp: time.UnixMilli(signal.Timestamp),
		Hash:      signal.Hash,
		Repository: linkage.Repository{
			Name:  signal.Repository.Name,
			Owner: signal.Repository.Owner,
		},
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn("failed to remove processed spool file",
			"path", path,
			"error", err)
	}

	w.logger.Info("commit signal received",
		"hash", info.Hash,
		"repository", info.Repository.Name)

	select {
	case w.commits <- Event{
		ID:        uuid.New().String(),
		Path:      path,
		Info:      info,
		Timestamp: time.Now(),
	}:
	default:
		w.logger.Warn("commit channel full, dropping event",
			"path", path,
			"hash", info.Hash)
	}
}

// quarantine renames a bad spool file out of the watcher's suffix match
// and reports the error.
func (w *watcher) quarantine(path string, cause error) {
	if err := os.Rename(path, path+".invalid"); err != nil {
		w.logger.Warn("failed to quarantine spool file",
			"path", path,
			"error", err)
	}
	w.sendError(cause)
}

// sendError delivers an error without blocking the event loop.
func (w *watcher) sendError(err error) {
	w.logger.Error("spool error", "error", err)

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// validateSignal checks the required commit signal fields.
func validateSignal(s commitSignal) error {
	switch {
	case strings.TrimSpace(s.Message) == "":
		return fmt.Errorf("%w: missing message", ErrInvalidSignal)
	case s.Hash == "":
		return fmt.Errorf("%w: missing hash", ErrInvalidSignal)
	case s.Timestamp <= 0:
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSignal)
	case s.Repository.Name == "":
		return fmt.Errorf("%w: missing repository name", ErrInvalidSignal)
	case s.Repository.Owner == "":
		return fmt.Errorf("%w: missing repository owner", ErrInvalidSignal)
	}
	return nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
