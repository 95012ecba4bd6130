package permissions

import (
	"context"
	"sync"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Store persists folder grants. Writes must be durable before they return.
type Store interface {
	Add(ctx context.Context, perm api.FolderPermission) error
	Remove(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]api.FolderPermission, error)
	Close() error
}

// MemoryStore keeps grants in process memory, in grant order
type MemoryStore struct {
	mu    sync.RWMutex
	perms []api.FolderPermission
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add appends a grant
func (s *MemoryStore) Add(_ context.Context, perm api.FolderPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms = append(s.perms, perm)
	return nil
}

// Remove deletes the grant with id, reporting whether it existed
func (s *MemoryStore) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.perms {
		if p.ID == id {
			s.perms = append(s.perms[:i], s.perms[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// List returns a copy of all grants
func (s *MemoryStore) List(_ context.Context) ([]api.FolderPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.FolderPermission, len(s.perms))
	copy(out, s.perms)
	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
