package permissions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// canonicalTempDir returns a temp dir with symlinks resolved (macOS /var -> /private/var)
func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := Canonicalize(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestIsSubPath(t *testing.T) {
	sep := string(filepath.Separator)
	base := filepath.Join(sep+"home", "u", "docs")

	tests := []struct {
		name  string
		child string
		want  bool
	}{
		{"same dir", base, true},
		{"nested file", filepath.Join(base, "a.txt"), true},
		{"deeply nested", filepath.Join(base, "x", "y", "z.md"), true},
		{"sibling with shared prefix", base + "2", false},
		{"parent", filepath.Dir(base), false},
		{"unrelated", filepath.Join(sep+"home", "u", "other", "b.txt"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSubPath(base, tt.child))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	dir := canonicalTempDir(t)

	t.Run("cleans dot segments", func(t *testing.T) {
		got, err := Canonicalize(filepath.Join(dir, "a", "..", "b.txt"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "b.txt"), got)
	})

	t.Run("missing leaf keeps real parent", func(t *testing.T) {
		got, err := Canonicalize(filepath.Join(dir, "new", "file.txt"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "new", "file.txt"), got)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Canonicalize("  ")
		assert.Error(t, err)
	})

	t.Run("symlink escape resolves to target", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("symlinks need privileges on windows")
		}
		outside := canonicalTempDir(t)
		link := filepath.Join(dir, "link")
		require.NoError(t, os.Symlink(outside, link))

		got, err := Canonicalize(filepath.Join(link, "secret.txt"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(outside, "secret.txt"), got)
		assert.False(t, IsSubPath(dir, got))
	})
}

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "perms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestGrantDedupe(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := canonicalTempDir(t)
			m := NewManager(store)

			first, err := m.GrantFolder(ctx, dir)
			require.NoError(t, err)
			assert.Equal(t, dir, first.Path)
			assert.NotEmpty(t, first.ID)

			second, err := m.GrantFolder(ctx, filepath.Join(dir, "."))
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID)

			perms, err := m.ListFolders(ctx)
			require.NoError(t, err)
			assert.Len(t, perms, 1)
		})
	}
}

func TestGrantAllowDuplicates(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := canonicalTempDir(t)
			m := NewManager(store, WithAllowDuplicates(true))

			first, err := m.GrantFolder(ctx, dir)
			require.NoError(t, err)
			second, err := m.GrantFolder(ctx, dir)
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)

			perms, err := m.ListFolders(ctx)
			require.NoError(t, err)
			require.Len(t, perms, 2)
			assert.Equal(t, first.ID, perms[0].ID)
			assert.Equal(t, second.ID, perms[1].ID)
		})
	}
}

func TestGrantRejectsMissingAndFiles(t *testing.T) {
	ctx := context.Background()
	dir := canonicalTempDir(t)
	m := NewManager(NewMemoryStore())

	_, err := m.GrantFolder(ctx, filepath.Join(dir, "nope"))
	assert.True(t, errors.Is(err, api.ErrNotFound))

	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = m.GrantFolder(ctx, file)
	assert.Error(t, err)

	perms, err := m.ListFolders(ctx)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestRevokeDenies(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := canonicalTempDir(t)
			m := NewManager(store)

			perm, err := m.GrantFolder(ctx, dir)
			require.NoError(t, err)

			target := filepath.Join(dir, "a.txt")
			got, err := m.Authorize(ctx, target)
			require.NoError(t, err)
			assert.Equal(t, target, got)

			require.NoError(t, m.RevokeFolder(ctx, perm.ID))

			_, err = m.Authorize(ctx, target)
			assert.True(t, errors.Is(err, api.ErrPermissionDenied))
		})
	}
}

func TestRevokeUnknown(t *testing.T) {
	m := NewManager(NewMemoryStore())
	err := m.RevokeFolder(context.Background(), "missing")
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestAuthorizeSharedPrefix(t *testing.T) {
	ctx := context.Background()
	root := canonicalTempDir(t)
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.Mkdir(docs, 0755))

	m := NewManager(NewMemoryStore())
	_, err := m.GrantFolder(ctx, docs)
	require.NoError(t, err)

	_, err = m.Authorize(ctx, filepath.Join(root, "docs2", "a.txt"))
	assert.True(t, errors.Is(err, api.ErrPermissionDenied))

	_, err = m.Authorize(ctx, filepath.Join(docs, "..", "other.txt"))
	assert.True(t, errors.Is(err, api.ErrPermissionDenied))
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "perms.db")
	dir := canonicalTempDir(t)

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	perm, err := NewManager(store).GrantFolder(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	perms, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, perm.ID, perms[0].ID)
	assert.Equal(t, dir, perms[0].Path)
	assert.True(t, perm.GrantedAt.Equal(perms[0].GrantedAt))
}

type failingService struct{}

func (failingService) GrantFolder(context.Context, string) (api.FolderPermission, error) {
	return api.FolderPermission{}, errors.New("ipc closed")
}
func (failingService) RevokeFolder(context.Context, string) error { return errors.New("ipc closed") }
func (failingService) ListFolders(context.Context) ([]api.FolderPermission, error) {
	return nil, errors.New("ipc closed")
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		dir := canonicalTempDir(t)
		c := NewClient(NewManager(NewMemoryStore()), nil, nil)

		perm, err := c.Grant(ctx, dir)
		require.NoError(t, err)

		ok, err := c.Allowed(ctx, filepath.Join(dir, "notes.md"))
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, c.Revoke(ctx, perm.ID))

		ok, err = c.Allowed(ctx, filepath.Join(dir, "notes.md"))
		require.NoError(t, err)
		assert.False(t, ok)

		err = c.Revoke(ctx, perm.ID)
		assert.True(t, errors.Is(err, api.ErrNotFound))
	})

	t.Run("backend failure", func(t *testing.T) {
		c := NewClient(failingService{}, nil, nil)
		_, err := c.Grant(ctx, "/tmp")
		assert.True(t, errors.Is(err, api.ErrBackend))
		assert.Equal(t, "ipc closed", api.Cause(err).Error())
	})
}
