// Package session manages per-broker portal sessions: persistent cookie
// snapshots on disk, cheap HTTP probing of saved sessions, and browser-driven
// login with 2FA when no valid session exists.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fteops/dutyrecon/models"
)

// Store persists one session state file per broker under a local directory.
type Store struct {
	dir string
	log logrus.FieldLogger
}

// NewStore creates the sessions directory if needed.
func NewStore(dir string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Path returns the session file path for a broker.
func (s *Store) Path(brokerID uuid.UUID) string {
	return filepath.Join(s.dir, "broker_"+brokerID.String()+".json")
}

// Save writes the state atomically: a temp file in the same directory is
// renamed over the target.
func (s *Store) Save(brokerID uuid.UUID, state *models.SessionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "broker_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create session temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(brokerID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	s.log.WithField("broker_id", brokerID).Info("session state saved")
	return nil
}

// Load reads the persisted state for a broker, returning nil when no
// snapshot exists or the snapshot cannot be decoded.
func (s *Store) Load(brokerID uuid.UUID) *models.SessionState {
	data, err := os.ReadFile(s.Path(brokerID))
	if err != nil {
		return nil
	}
	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.WithError(err).WithField("broker_id", brokerID).Warn("discarding unreadable session state")
		return nil
	}
	return &state
}

// Has reports whether a session file exists for a broker.
func (s *Store) Has(brokerID uuid.UUID) bool {
	_, err := os.Stat(s.Path(brokerID))
	return err == nil
}

// Delete removes a broker's session file.
func (s *Store) Delete(brokerID uuid.UUID) error {
	err := os.Remove(s.Path(brokerID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// ClearAll removes every persisted session and returns the count deleted.
func (s *Store) ClearAll() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "broker_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			deleted++
		}
	}
	return deleted
}
