package models

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Lister is the backend call behind the registry client
type Lister interface {
	ListModels(ctx context.Context) ([]api.Model, error)
}

// RegistryClient is the core's view of the model list. It keeps the last
// snapshot so the UI can render between refreshes.
type RegistryClient struct {
	backend Lister

	mu       sync.RWMutex
	snapshot []api.Model
}

// NewRegistryClient creates a client over backend
func NewRegistryClient(backend Lister) *RegistryClient {
	return &RegistryClient{backend: backend}
}

// ListModels fetches the model list. Backend failures are RegistryUnavailable;
// an empty list is a valid result.
func (c *RegistryClient) ListModels(ctx context.Context) ([]api.Model, error) {
	models, err := c.backend.ListModels(ctx)
	if err != nil {
		return nil, api.E(api.ErrRegistryUnavailable, "list models", err)
	}
	if models == nil {
		models = []api.Model{}
	}

	c.mu.Lock()
	c.snapshot = append([]api.Model(nil), models...)
	c.mu.Unlock()

	return models, nil
}

// Get refreshes the list and returns one model
func (c *RegistryClient) Get(ctx context.Context, id string) (api.Model, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return api.Model{}, err
	}
	for _, m := range models {
		if strings.EqualFold(m.ID, id) {
			return m, nil
		}
	}
	return api.Model{}, api.E(api.ErrNotFound, "get model", fmt.Errorf("model %s", id))
}

// Snapshot returns the models from the last successful refresh
func (c *RegistryClient) Snapshot() []api.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]api.Model(nil), c.snapshot...)
}

// Lookup finds a model in the last snapshot
func (c *RegistryClient) Lookup(id string) (api.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.snapshot {
		if strings.EqualFold(m.ID, id) {
			return m, true
		}
	}
	return api.Model{}, false
}

// MarkDownloaded records a completed download in the snapshot. It reports
// whether the model was known.
func (c *RegistryClient) MarkDownloaded(id, localPath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.snapshot {
		if strings.EqualFold(c.snapshot[i].ID, id) {
			c.snapshot[i].Downloaded = true
			c.snapshot[i].LocalPath = localPath
			return true
		}
	}
	return false
}
