package permissions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Manager is the authority over folder grants. It canonicalizes paths on the
// way in and authorizes file operations against the store on every call.
type Manager struct {
	mu              sync.Mutex
	store           Store
	allowDuplicates bool
	log             *logging.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithAllowDuplicates makes Grant append a new record even when the
// canonical path is already granted.
func WithAllowDuplicates(allow bool) Option {
	return func(m *Manager) { m.allowDuplicates = allow }
}

// WithLogger sets the logger
func WithLogger(log *logging.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics records authorization decisions
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a manager over store
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		log:   logging.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.Named("permissions")
	return m
}

// GrantFolder records a grant for an existing directory
func (m *Manager) GrantFolder(ctx context.Context, path string) (api.FolderPermission, error) {
	canonical, err := Canonicalize(path)
	if err != nil {
		return api.FolderPermission{}, err
	}

	info, err := os.Stat(canonical)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return api.FolderPermission{}, api.E(api.ErrNotFound, "grant folder", err)
		}
		return api.FolderPermission{}, fmt.Errorf("failed to stat %s: %w", canonical, err)
	}
	if !info.IsDir() {
		return api.FolderPermission{}, fmt.Errorf("%s is not a directory", canonical)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.allowDuplicates {
		existing, err := m.store.List(ctx)
		if err != nil {
			return api.FolderPermission{}, err
		}
		for _, p := range existing {
			if p.Path == canonical {
				return p, nil
			}
		}
	}

	perm := api.FolderPermission{
		ID:        uuid.New().String(),
		Path:      canonical,
		GrantedAt: m.now().UTC(),
	}
	if err := m.store.Add(ctx, perm); err != nil {
		return api.FolderPermission{}, err
	}

	m.log.Info("folder granted", map[string]any{"id": perm.ID, "path": perm.Path})
	return perm, nil
}

// RevokeFolder removes a grant; unknown ids are NotFound
func (m *Manager) RevokeFolder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed, err := m.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return api.E(api.ErrNotFound, "revoke folder", fmt.Errorf("no grant with id %q", id))
	}

	m.log.Info("folder revoked", map[string]any{"id": id})
	return nil
}

// ListFolders returns all grants
func (m *Manager) ListFolders(ctx context.Context) ([]api.FolderPermission, error) {
	return m.store.List(ctx)
}

// Authorize canonicalizes path and checks it against the current grants.
// It returns the canonical path to operate on, or PermissionDenied.
func (m *Manager) Authorize(ctx context.Context, path string) (string, error) {
	canonical, err := Canonicalize(path)
	if err != nil {
		m.metrics.RecordPermissionCheck(false)
		return "", api.E(api.ErrPermissionDenied, "authorize", err)
	}

	perms, err := m.store.List(ctx)
	if err != nil {
		m.metrics.RecordPermissionCheck(false)
		return "", api.E(api.ErrPermissionDenied, "authorize", err)
	}

	if Covers(perms, canonical) {
		m.metrics.RecordPermissionCheck(true)
		return canonical, nil
	}

	m.metrics.RecordPermissionCheck(false)
	m.log.Debug("access denied", map[string]any{"path": canonical})
	return "", api.E(api.ErrPermissionDenied, "authorize",
		fmt.Errorf("%s is not inside a granted folder", path))
}

// Close closes the backing store
func (m *Manager) Close() error {
	return m.store.Close()
}

// Covers reports whether any grant contains the canonical path
func Covers(perms []api.FolderPermission, canonical string) bool {
	for _, p := range perms {
		if IsSubPath(p.Path, canonical) {
			return true
		}
	}
	return false
}
