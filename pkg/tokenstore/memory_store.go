package tokenstore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

// DefaultMemoryStoreSize is the session capacity used when none is configured
const DefaultMemoryStoreSize = 1024

// MemoryStore keeps the most recently used sessions in memory.
// The least recently used session is evicted once the store is full.
type MemoryStore struct {
	sessions *lru.Cache[string, []byte]
}

// NewMemoryStore creates a memory store holding up to size sessions
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemoryStoreSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &MemoryStore{sessions: cache}, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, t token.Token) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	data, err := token.Serialize(t)
	if err != nil {
		return err
	}
	s.sessions.Add(sessionID, data)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (token.Token, error) {
	data, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, errors.NotFound("session", sessionID)
	}
	return token.Deserialize(data)
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.sessions.Remove(sessionID)
	return nil
}

// Len returns the number of stored sessions
func (s *MemoryStore) Len() int {
	return s.sessions.Len()
}
