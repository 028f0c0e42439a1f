package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/devlog/pkg/linkage"
	"github.com/yourusername/devlog/pkg/logger"
	"github.com/yourusername/devlog/pkg/tracker"
)

// server implements the Server interface on net/http.
type server struct {
	httpServer *http.Server
	engine     tracker.Engine
	coord      linkage.Coordinator
	logger     logger.Logger
	config     Config
}

// New creates the tracking API server.
//
// Parameters:
//   - cfg: Server configuration
//   - engine: Session lifecycle engine
//   - coord: Commit linkage coordinator
//   - log: Logger instance
//
// Returns a configured Server.
func New(cfg Config, engine tracker.Engine, coord linkage.Coordinator, log logger.Logger) Server {
	// Set defaults.
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	s := &server{
		engine: engine,
		coord:  coord,
		logger: log,
		config: cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/window-state", s.handleWindowState)
	mux.HandleFunc("/api/commit", s.handleCommit)
	mux.HandleFunc("/api/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withRequestLogging(mux),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	return s
}

// Start implements Server.Start.
func (s *server) Start() error {
	s.logger.Info("http server listening", "addr", s.config.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

// Shutdown implements Server.Shutdown.
func (s *server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}

// heartbeatRequest is the wire format of POST /api/heartbeat.
type heartbeatRequest struct {
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"` // Optional, milliseconds since epoch.
}

func (s *server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	source := tracker.Source(req.Source)
	if !source.Valid() {
		writeError(w, http.StatusBadRequest, "source must be \"editor\" or \"browser\"")
		return
	}

	hb := tracker.Heartbeat{Source: source}
	if req.Timestamp > 0 {
		hb.Timestamp = time.UnixMilli(req.Timestamp)
	}

	sessionID, err := s.engine.ProcessHeartbeat(r.Context(), hb)
	if err != nil {
		s.logger.Error("heartbeat processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received":  true,
		"sessionId": sessionID,
	})
}

// statsRequest is the wire format of POST /api/stats. Pointer fields
// distinguish a missing field from an explicit zero.
type statsRequest struct {
	FilesChanged *int `json:"filesChanged"`
	LinesAdded   *int `json:"linesAdded"`
	LinesRemoved *int `json:"linesRemoved"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req statsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.FilesChanged == nil || req.LinesAdded == nil || req.LinesRemoved == nil {
		writeError(w, http.StatusBadRequest, "filesChanged, linesAdded and linesRemoved are required")
		return
	}
	if *req.FilesChanged < 0 || *req.LinesAdded < 0 || *req.LinesRemoved < 0 {
		writeError(w, http.StatusBadRequest, "statistics must be non-negative")
		return
	}

	s.engine.UpdateCodeStats(tracker.CodeStats{
		FilesChanged: *req.FilesChanged,
		LinesAdded:   *req.LinesAdded,
		LinesRemoved: *req.LinesRemoved,
	})

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

// windowStateRequest is the wire format of POST /api/window-state.
type windowStateRequest struct {
	Timestamp   int64 `json:"timestamp"` // Milliseconds since epoch, required.
	WindowState *struct {
		Focused *bool `json:"focused"`
		Active  *bool `json:"active"`
	} `json:"windowState"`
}

func (s *server) handleWindowState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req windowStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Timestamp <= 0 {
		writeError(w, http.StatusBadRequest, "timestamp is required")
		return
	}
	if req.WindowState == nil || req.WindowState.Focused == nil || req.WindowState.Active == nil {
		writeError(w, http.StatusBadRequest, "windowState.focused and windowState.active are required")
		return
	}

	s.engine.ProcessWindowState(tracker.WindowStateEvent{
		Timestamp: time.UnixMilli(req.Timestamp),
		WindowState: tracker.WindowState{
			Focused: *req.WindowState.Focused,
			Active:  *req.WindowState.Active,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

// commitRequest is the wire format of POST /api/commit.
type commitRequest struct {
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"` // Milliseconds since epoch.
	Hash       string `json:"hash"`
	Repository struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
	} `json:"repository"`
}

func (s *server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.Message == "":
		writeError(w, http.StatusBadRequest, "message is required")
		return
	case req.Hash == "":
		writeError(w, http.StatusBadRequest, "hash is required")
		return
	case req.Timestamp <= 0:
		writeError(w, http.StatusBadRequest, "timestamp is required")
		return
	case req.Repository.Name == "" || req.Repository.Owner == "":
		writeError(w, http.StatusBadRequest, "repository.name and repository.owner are required")
		return
	}

	taskID, err := s.coord.ProcessCommit(r.Context(), linkage.CommitInfo{
		Message:   req.Message,
		Timestamp: time.UnixMilli(req.Timestamp),
		Hash:      req.Hash,
		Repository: linkage.Repository{
			Name:  req.Repository.Name,
			Owner: req.Repository.Owner,
		},
	})
	if err != nil {
		s.logger.Error("commit processing failed",
			"hash", req.Hash,
			"error", err)
		writeError(w, http.StatusInternalServerError, "failed to process commit")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"taskId":   taskID,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// withRequestLogging tags each request with an ID and logs its outcome.
func (s *server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.logger.Debug("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start))
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
