package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

// sessionRecord represents the structure of a session file
type sessionRecord struct {
	SessionID string          `json:"session_id"`
	SavedAt   time.Time       `json:"saved_at"`
	Token     json.RawMessage `json:"token"`
}

// FileStore keeps one JSON file per session in a data directory
type FileStore struct {
	dataDir string
	mutex   sync.RWMutex
}

// NewFileStore creates a file store, creating dataDir if it doesn't exist
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) Save(ctx context.Context, sessionID string, t token.Token) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	data, err := token.Serialize(t)
	if err != nil {
		return err
	}

	jsonData, err := json.MarshalIndent(sessionRecord{
		SessionID: sessionID,
		SavedAt:   time.Now().UTC(),
		Token:     data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Write to temp file first
	tempFile := s.path(sessionID) + ".tmp"
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, s.path(sessionID)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, sessionID string) (token.Token, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	data, err := os.ReadFile(s.path(sessionID))
	s.mutex.RUnlock()
	if os.IsNotExist(err) {
		return nil, errors.NotFound("session", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Warn("Session file is not valid JSON", "session_id", sessionID, "err", err)
		return nil, errors.CorruptTokenData(err, "malformed session file")
	}
	return token.Deserialize(record.Token)
}

func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dataDir, sessionID+".json")
}
