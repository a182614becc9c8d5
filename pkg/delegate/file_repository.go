package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

// DelegationRecord represents a delegation relationship
type DelegationRecord struct {
	Delegator string `json:"delegator"` // The user who is delegating, i.e. may be impersonated
	Delegatee string `json:"delegatee"` // The user receiving delegation, i.e. the impersonator
}

// UserLoader resolves usernames to users
type UserLoader interface {
	LoadUser(ctx context.Context, username string) (*token.User, error)
}

// DelegationRepository stores who may act on behalf of whom
type DelegationRepository interface {
	AddDelegation(ctx context.Context, delegator, delegatee string) error
	RemoveDelegation(ctx context.Context, delegator, delegatee string) error
	IsDelegated(ctx context.Context, delegator, delegatee string) (bool, error)
	FindDelegators(ctx context.Context, delegatee string) ([]*token.User, error)
}

// FileDelegationRepository implements DelegationRepository using file-based storage
type FileDelegationRepository struct {
	dataDir     string
	delegations []DelegationRecord
	userLoader  UserLoader
	mutex       sync.RWMutex
}

// delegationData represents the structure of data stored in the JSON file
type delegationData struct {
	Delegations []DelegationRecord `json:"delegations"`
}

// NewFileDelegationRepository creates a new file-based delegation repository
func NewFileDelegationRepository(dataDir string, userLoader UserLoader) (*FileDelegationRepository, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileDelegationRepository{
		dataDir:     dataDir,
		delegations: []DelegationRecord{},
		userLoader:  userLoader,
	}

	// Load existing data
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// FindDelegators retrieves all delegator users for the specified delegatee
func (r *FileDelegationRepository) FindDelegators(ctx context.Context, delegatee string) ([]*token.User, error) {
	r.mutex.RLock()
	delegators := make([]string, 0)
	for _, delegation := range r.delegations {
		if delegation.Delegatee == delegatee {
			delegators = append(delegators, delegation.Delegator)
		}
	}
	r.mutex.RUnlock()

	users := make([]*token.User, 0, len(delegators))
	for _, delegator := range delegators {
		user, err := r.userLoader.LoadUser(ctx, delegator)
		if err != nil {
			// Skip users that can't be found
			continue
		}
		users = append(users, user)
	}

	return users, nil
}

// IsDelegated reports whether delegator has delegated to delegatee
func (r *FileDelegationRepository) IsDelegated(ctx context.Context, delegator, delegatee string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, delegation := range r.delegations {
		if delegation.Delegator == delegator && delegation.Delegatee == delegatee {
			return true, nil
		}
	}
	return false, nil
}

// AddDelegation adds a new delegation relationship
func (r *FileDelegationRepository) AddDelegation(ctx context.Context, delegator, delegatee string) error {
	if delegator == "" || delegatee == "" {
		return errors.InvalidInput("delegation", "delegator and delegatee are required")
	}
	if delegator == delegatee {
		return errors.InvalidInput("delegation", "a user cannot delegate to themselves")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Check if delegation already exists
	for _, delegation := range r.delegations {
		if delegation.Delegator == delegator && delegation.Delegatee == delegatee {
			return errors.New(errors.ErrCodeAlreadyExists, "delegation already exists")
		}
	}

	r.delegations = append(r.delegations, DelegationRecord{
		Delegator: delegator,
		Delegatee: delegatee,
	})
	return r.save()
}

// RemoveDelegation removes a delegation relationship
func (r *FileDelegationRepository) RemoveDelegation(ctx context.Context, delegator, delegatee string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	newDelegations := make([]DelegationRecord, 0, len(r.delegations))
	found := false

	for _, delegation := range r.delegations {
		if delegation.Delegator == delegator && delegation.Delegatee == delegatee {
			found = true
			continue
		}
		newDelegations = append(newDelegations, delegation)
	}

	if !found {
		return errors.NotFound("delegation", delegator+" -> "+delegatee)
	}

	r.delegations = newDelegations
	return r.save()
}

// load reads delegation data from file
func (r *FileDelegationRepository) load() error {
	filePath := filepath.Join(r.dataDir, "delegations.json")

	// If file doesn't exist, start with empty list
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// If file is empty, start with empty list
	if len(data) == 0 {
		return nil
	}

	var delData delegationData
	if err := json.Unmarshal(data, &delData); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.delegations = delData.Delegations
	if r.delegations == nil {
		r.delegations = []DelegationRecord{}
	}

	return nil
}

// save writes delegation data to file atomically
func (r *FileDelegationRepository) save() error {
	jsonData, err := json.MarshalIndent(delegationData{Delegations: r.delegations}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(r.dataDir, "delegations.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(r.dataDir, "delegations.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
