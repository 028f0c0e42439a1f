package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/yourusername/devlog/pkg/logger"
	"github.com/yourusername/devlog/pkg/tracker"
)

// Bucket names.
var (
	bucketPending  = []byte("pending")  // sequence -> session ID
	bucketSessions = []byte("sessions") // session ID -> snapshot JSON
)

// boltJournal implements the Journal interface using BoltDB.
type boltJournal struct {
	db     *bolt.DB
	logger logger.Logger
	config Config
}

// New creates a new journal.
//
// Parameters:
//   - cfg: Journal configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Journal
//   - Error if database cannot be opened
func New(cfg Config, log logger.Logger) (Journal, error) {
	// Set default timeout.
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	// Expand home directory in path.
	dbPath := expandHome(cfg.DBPath)

	// Create directory if it doesn't exist.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// Open database.
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// Initialize buckets.
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketPending); createErr != nil {
			return fmt.Errorf("failed to create pending bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketSessions); createErr != nil {
			return fmt.Errorf("failed to create sessions bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close journal after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log.Info("journal initialized", "db_path", dbPath)

	return &boltJournal{
		db:     db,
		logger: log,
		config: cfg,
	}, nil
}

// AppendPending implements Journal.AppendPending.
func (j *boltJournal) AppendPending(id string) error {
	if id == "" {
		return ErrEmptySessionID
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket(bucketPending)

		// Monotonic sequence keys preserve insertion order under the
		// bucket's byte-wise key sort.
		seq, err := pending.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		if err := pending.Put(key, []byte(id)); err != nil {
			return fmt.Errorf("failed to store pending entry: %w", err)
		}

		j.logger.Debug("pending session journaled",
			"session_id", id,
			"sequence", seq)

		return nil
	})
}

// PendingIDs implements Journal.PendingIDs.
func (j *boltJournal) PendingIDs() ([]string, error) {
	ids := make([]string, 0, 10)

	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)

		// ForEach visits keys in sorted order, which for big-endian
		// sequence keys is insertion order.
		return b.ForEach(func(k, v []byte) error {
			ids = append(ids, string(v))
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list pending sessions: %w", err)
	}

	return ids, nil
}

// ClearPending implements Journal.ClearPending.
func (j *boltJournal) ClearPending() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		// Dropping and recreating the bucket also resets the sequence.
		if err := tx.DeleteBucket(bucketPending); err != nil {
			return fmt.Errorf("failed to drop pending bucket: %w", err)
		}
		if _, err := tx.CreateBucket(bucketPending); err != nil {
			return fmt.Errorf("failed to recreate pending bucket: %w", err)
		}

		j.logger.Debug("pending queue cleared")
		return nil
	})
}

// RecordSession implements Journal.RecordSession.
func (j *boltJournal) RecordSession(snap tracker.SessionSnapshot) error {
	if snap.ID == "" {
		return ErrEmptySnapshot
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		if err := sessions.Put([]byte(snap.ID), data); err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}

		j.logger.Debug("session snapshot recorded",
			"session_id", snap.ID,
			"name", snap.Name)

		return nil
	})
}

// Sessions implements Journal.Sessions.
func (j *boltJournal) Sessions() ([]tracker.SessionSnapshot, error) {
	snapshots := make([]tracker.SessionSnapshot, 0, 10)

	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		return b.ForEach(func(k, v []byte) error {
			var snap tracker.SessionSnapshot
			if unmarshalErr := json.Unmarshal(v, &snap); unmarshalErr != nil {
				j.logger.Warn("failed to unmarshal snapshot",
					"session_id", string(k),
					"error", unmarshalErr)
				return nil // Skip invalid entries.
			}

			snapshots = append(snapshots, snap)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return snapshots, nil
}

// Close implements Journal.Close.
func (j *boltJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal database: %w", err)
	}

	j.logger.Info("journal closed")
	return nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	return filepath.Join(home, path[1:])
}
