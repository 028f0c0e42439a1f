package config

import (
	"os"
	"path/filepath"
)

// defaultJournalPath returns the default journal database file path.
//
// Returns: ~/.config/devlog/journal.db.
func defaultJournalPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./journal.db"
	}

	return filepath.Join(homeDir, ".config", "devlog", "journal.db")
}

// defaultSpoolDir returns the default commit signal spool directory.
//
// Returns: ~/.config/devlog/commits/.
func defaultSpoolDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./commits"
	}

	return filepath.Join(homeDir, ".config", "devlog", "commits")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/devlog/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "devlog", "config.yaml")
}
