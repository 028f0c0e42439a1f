package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidHeartbeatInterval is returned when the heartbeat interval is <= 0.
	ErrInvalidHeartbeatInterval = errors.New("invalid heartbeat interval: must be > 0")

	// ErrInvalidInactivityTimeout is returned when the inactivity timeout is <= 0.
	ErrInvalidInactivityTimeout = errors.New("invalid inactivity timeout: must be > 0")

	// ErrInvalidMinSessionDuration is returned when the minimum session duration is negative.
	ErrInvalidMinSessionDuration = errors.New("invalid minimum session duration: must be >= 0")

	// ErrEmptyServerAddr is returned when the server listen address is empty.
	ErrEmptyServerAddr = errors.New("server address cannot be empty")

	// ErrMissingDatabaseID is returned when a workspace token is configured
	// without all three database IDs.
	ErrMissingDatabaseID = errors.New("workspace token set but a database ID is missing")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
