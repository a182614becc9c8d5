package delegate

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a delegation repository
type RepositoryConfig struct {
	// DataDir is required for file-based repositories
	DataDir string
	// UserLoader is required for resolving delegators
	UserLoader UserLoader
}

// NewDelegationRepository creates a new delegation repository based on the persistence type
func NewDelegationRepository(persistenceType string, config RepositoryConfig) (DelegationRepository, error) {
	switch persistenceType {
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		if config.UserLoader == nil {
			return nil, fmt.Errorf("userLoader required for delegation repository")
		}
		return NewFileDelegationRepository(config.DataDir, config.UserLoader)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: file)", persistenceType)
	}
}
