package tokenstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

// Store keeps serialized tokens by session ID. Every Load decodes a fresh
// token, so callers never share a token instance across requests.
type Store interface {
	// Save serializes t and stores it under sessionID, replacing any previous token
	Save(ctx context.Context, sessionID string, t token.Token) error

	// Load decodes the token stored under sessionID.
	// Returns NOT_FOUND for unknown sessions and CORRUPT_TOKEN_DATA for undecodable ones.
	Load(ctx context.Context, sessionID string) (token.Token, error)

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// RepositoryConfig contains configuration for creating a token store
type RepositoryConfig struct {
	// DataDir is required for file-based stores
	DataDir string
	// Size bounds the memory store; zero uses DefaultMemoryStoreSize
	Size int
}

// NewStore creates a token store based on the persistence type
func NewStore(persistenceType string, config RepositoryConfig) (Store, error) {
	switch persistenceType {
	case "memory", "inmem":
		return NewMemoryStore(config.Size)
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file store")
		}
		return NewFileStore(config.DataDir)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: memory, file)", persistenceType)
	}
}

// NewSessionID returns a fresh random session ID
func NewSessionID() string {
	return uuid.New().String()
}

func validateSessionID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return errors.InvalidInput("session id", "must be a UUID")
	}
	return nil
}
