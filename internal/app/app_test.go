package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeblockz/localwork-hero/internal/config"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

const modelBody = "GGUF fake model weights"

func newTestApp(t *testing.T) *App {
	t.Helper()
	root := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(modelBody)))
		_, _ = w.Write([]byte(modelBody))
	}))
	t.Cleanup(srv.Close)

	sum := sha256.Sum256([]byte(modelBody))
	catalog := fmt.Sprintf(`models:
  - id: m1
    name: Model One
    filename: m1.gguf
    size_bytes: %d
    sha256: %s
    sources:
      - url: %s/m1.gguf
        priority: 1
`, len(modelBody), hex.EncodeToString(sum[:]), srv.URL)
	catalogPath := filepath.Join(root, "models.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalog), 0o644))

	cfg := &config.Config{
		DataDir:       root,
		ModelsDir:     filepath.Join(root, "models"),
		CatalogFile:   catalogPath,
		PermissionsDB: ":memory:",
		UseMockEngine: true,
		ContextSize:   2048,
		MaxTokens:     64,
		Temperature:   0.7,
		MaxToolRounds: 5,
		LogLevel:      "info",
	}
	require.NoError(t, cfg.Validate())

	a, err := New(cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAppEndToEnd(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	info, err := a.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.AppName, info.Name)

	list, err := a.Models.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m1", list[0].ID)
	assert.False(t, list[0].Downloaded)

	// Not downloaded yet
	assert.ErrorIs(t, a.SelectModel(ctx, "m1"), api.ErrLoadFailed)
	_, err = a.Agent.Send(ctx, "hi")
	assert.ErrorIs(t, err, api.ErrNoModelSelected)
	assert.Empty(t, a.Agent.History())

	job, err := a.Downloads.Start(ctx, "m1")
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	path, err := job.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, job.Last().PercentValue())

	m, ok := a.Models.Lookup("m1")
	require.True(t, ok)
	assert.True(t, m.Downloaded)
	assert.Equal(t, path, m.LocalPath)
	snap := a.Models.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Downloaded)

	require.NoError(t, a.SelectModel(ctx, "m1"))
	id, ready := a.Session.Ready()
	require.True(t, ready)
	assert.Equal(t, "m1", id)

	reply, err := a.Agent.Send(ctx, "hi")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply.Content, "MOCK MODE"))
	assert.Len(t, a.Agent.History(), 2)
}

func TestAppFolders(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	docs := t.TempDir()
	target := filepath.Join(docs, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("alpha"), 0o644))

	allowed, err := a.Folders.Allowed(ctx, target)
	require.NoError(t, err)
	assert.False(t, allowed)

	perm, err := a.Folders.Grant(ctx, docs)
	require.NoError(t, err)

	allowed, err = a.Folders.Allowed(ctx, target)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, a.Folders.Revoke(ctx, perm.ID))
	allowed, err = a.Folders.Allowed(ctx, target)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.ErrorIs(t, a.Folders.Revoke(ctx, perm.ID), api.ErrNotFound)
}

func TestWatchDisabledReturnsImmediately(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Watch(ctx))
}
