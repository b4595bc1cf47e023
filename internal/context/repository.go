package context

import (
	"fmt"
	"sync"
)

// ConfigRepository defines an interface for fetching client configurations.
// This allows for different implementations (e.g., in-memory, database).
type ConfigRepository interface {
	Get(clientID string) (CoreConfig, error)
}

// InMemoryConfigRepository is a simple in-memory implementation used by the host server and tests.
type InMemoryConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]CoreConfig
}

// NewInMemoryConfigRepository creates a new in-memory repository.
func NewInMemoryConfigRepository() *InMemoryConfigRepository {
	return &InMemoryConfigRepository{
		configs: make(map[string]CoreConfig),
	}
}

// AddConfig adds a client configuration to the repository.
func (r *InMemoryConfigRepository) AddConfig(config CoreConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[config.ClientID] = config
}

// Get fetches a client configuration by client ID.
func (r *InMemoryConfigRepository) Get(clientID string) (CoreConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[clientID]
	if !ok {
		return CoreConfig{}, fmt.Errorf("client config not found for ID: %s", clientID)
	}
	return config, nil
}
