package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for config file in:
// 1. ./config.yaml (current directory)
// 2. ~/.config/devlog/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	// Start with default configuration
	cfg := Default()

	// Find config file path
	configPath := l.configPath
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	// Load from file if it exists
	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// If file is specified but can't be loaded, return error
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			// Otherwise, just use defaults
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	// Apply environment variable overrides
	cfg = l.applyEnvVars(cfg)

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile searches for a config file in standard locations.
//
// Searches in order:
// 1. ./config.yaml
// 2. ~/.config/devlog/config.yaml
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		defaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	// Merge session config
	if override.Session.HeartbeatInterval > 0 {
		result.Session.HeartbeatInterval = override.Session.HeartbeatInterval
	}
	if override.Session.InactivityTimeout > 0 {
		result.Session.InactivityTimeout = override.Session.InactivityTimeout
	}
	if override.Session.MinSessionDuration > 0 {
		result.Session.MinSessionDuration = override.Session.MinSessionDuration
	}

	// Merge workspace config
	if override.Workspace.APIToken != "" {
		result.Workspace.APIToken = override.Workspace.APIToken
	}
	if override.Workspace.BaseURL != "" {
		result.Workspace.BaseURL = override.Workspace.BaseURL
	}
	if override.Workspace.ProjectsDatabaseID != "" {
		result.Workspace.ProjectsDatabaseID = override.Workspace.ProjectsDatabaseID
	}
	if override.Workspace.TasksDatabaseID != "" {
		result.Workspace.TasksDatabaseID = override.Workspace.TasksDatabaseID
	}
	if override.Workspace.SessionsDatabaseID != "" {
		result.Workspace.SessionsDatabaseID = override.Workspace.SessionsDatabaseID
	}
	if override.Workspace.RequestTimeout > 0 {
		result.Workspace.RequestTimeout = override.Workspace.RequestTimeout
	}

	// Merge server config
	if override.Server.Addr != "" {
		result.Server.Addr = override.Server.Addr
	}
	if override.Server.RequestTimeout > 0 {
		result.Server.RequestTimeout = override.Server.RequestTimeout
	}

	// Merge commit watch config
	if override.CommitWatch.SpoolDir != "" {
		result.CommitWatch.SpoolDir = override.CommitWatch.SpoolDir
	}
	if override.CommitWatch.DebounceInterval > 0 {
		result.CommitWatch.DebounceInterval = override.CommitWatch.DebounceInterval
	}

	// Merge storage config
	if override.Storage.JournalPath != "" {
		result.Storage.JournalPath = override.Storage.JournalPath
	}

	// Merge logging config
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - DEVLOG_ADDR: HTTP listen address
//   - DEVLOG_WORKSPACE_TOKEN: Workspace API token
//   - DEVLOG_PROJECTS_DB / DEVLOG_TASKS_DB / DEVLOG_SESSIONS_DB: Database IDs
//   - DEVLOG_JOURNAL: Path to journal database file
//   - DEVLOG_SPOOL_DIR: Commit signal spool directory
//   - DEVLOG_INACTIVITY_TIMEOUT: Inactivity timeout in seconds
//   - DEVLOG_LOG_LEVEL: Log level
func (l *loader) applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if addr := os.Getenv("DEVLOG_ADDR"); addr != "" {
		result.Server.Addr = addr
	}

	if token := os.Getenv("DEVLOG_WORKSPACE_TOKEN"); token != "" {
		result.Workspace.APIToken = token
	}
	if id := os.Getenv("DEVLOG_PROJECTS_DB"); id != "" {
		result.Workspace.ProjectsDatabaseID = id
	}
	if id := os.Getenv("DEVLOG_TASKS_DB"); id != "" {
		result.Workspace.TasksDatabaseID = id
	}
	if id := os.Getenv("DEVLOG_SESSIONS_DB"); id != "" {
		result.Workspace.SessionsDatabaseID = id
	}

	if journalPath := os.Getenv("DEVLOG_JOURNAL"); journalPath != "" {
		result.Storage.JournalPath = journalPath
	}

	if spoolDir := os.Getenv("DEVLOG_SPOOL_DIR"); spoolDir != "" {
		result.CommitWatch.SpoolDir = spoolDir
	}

	if timeout := os.Getenv("DEVLOG_INACTIVITY_TIMEOUT"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil && seconds > 0 {
			result.Session.InactivityTimeout = seconds
		}
	}

	if logLevel := os.Getenv("DEVLOG_LOG_LEVEL"); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	return &result
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}
