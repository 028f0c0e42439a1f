// Package config provides configuration management for devlog.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Environment variables
// 2. Configuration file
// 3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("listening on %s\n", cfg.Server.Addr)
package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Session.HeartbeatInterval must be > 0
// - Session.InactivityTimeout must be > 0
// - Server.Addr must be non-empty
// - Workspace database IDs must be set when a workspace token is set.
type Config struct {
	// Session tracking settings
	Session SessionConfig `yaml:"session"`

	// Workspace store (Notion) settings
	Workspace WorkspaceConfig `yaml:"workspace"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Commit signal watcher settings
	CommitWatch CommitWatchConfig `yaml:"commit_watch"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// SessionConfig contains session lifecycle settings.
type SessionConfig struct {
	// Seconds of activity credited per accepted heartbeat
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// Seconds of silence before a session is auto-closed
	InactivityTimeout int `yaml:"inactivity_timeout"`

	// Reserved: minimum session length in seconds. Parsed and
	// validated but not enforced by any current behavior.
	MinSessionDuration int `yaml:"min_session_duration"`
}

// WorkspaceConfig contains workspace store API settings.
type WorkspaceConfig struct {
	// API token for the workspace store
	APIToken string `yaml:"api_token"`

	// BaseURL overrides the API endpoint (tests); empty means production
	BaseURL string `yaml:"base_url"`

	// Database (collection) identifiers
	ProjectsDatabaseID string `yaml:"projects_database_id"`
	TasksDatabaseID    string `yaml:"tasks_database_id"`
	SessionsDatabaseID string `yaml:"sessions_database_id"`

	// Timeout for a single API call
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Listen address, e.g. ":3000"
	Addr string `yaml:"addr"`

	// Maximum time to read and handle a single request
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CommitWatchConfig contains commit signal watcher settings.
type CommitWatchConfig struct {
	// Directory where the git post-commit hook drops signal files.
	// Empty disables the watcher.
	SpoolDir string `yaml:"spool_dir"`

	// Debounce window for file system events
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// StorageConfig contains local storage settings.
type StorageConfig struct {
	// Path to the BoltDB journal file
	JournalPath string `yaml:"journal_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns an error if any invariant is violated:
//   - Non-positive heartbeat interval or inactivity timeout
//   - Negative minimum session duration
//   - Empty server address
//   - Workspace token set without database IDs
//   - Invalid log level or format
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.Session.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if c.Session.InactivityTimeout <= 0 {
		return ErrInvalidInactivityTimeout
	}
	if c.Session.MinSessionDuration < 0 {
		return ErrInvalidMinSessionDuration
	}

	if c.Server.Addr == "" {
		return ErrEmptyServerAddr
	}

	// Database IDs are only required once a token is configured;
	// an unconfigured workspace is valid for offline development.
	if c.Workspace.APIToken != "" {
		if c.Workspace.ProjectsDatabaseID == "" ||
			c.Workspace.TasksDatabaseID == "" ||
			c.Workspace.SessionsDatabaseID == "" {
			return ErrMissingDatabaseID
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
//
// Session defaults mirror the extension-side constants: a heartbeat
// every 10 seconds credits 10 seconds, and 2 minutes of silence ends
// the session.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			HeartbeatInterval:  10,
			InactivityTimeout:  120,
			MinSessionDuration: 60,
		},
		Workspace: WorkspaceConfig{
			RequestTimeout: 15 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":3000",
			RequestTimeout: 30 * time.Second,
		},
		CommitWatch: CommitWatchConfig{
			SpoolDir:         defaultSpoolDir(),
			DebounceInterval: 100 * time.Millisecond,
		},
		Storage: StorageConfig{
			JournalPath: defaultJournalPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
