package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeblockz/localwork-hero/internal/download"
	"github.com/Codeblockz/localwork-hero/internal/inference"
	"github.com/Codeblockz/localwork-hero/internal/models"
	"github.com/Codeblockz/localwork-hero/internal/permissions"
	"github.com/Codeblockz/localwork-hero/internal/tools"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

type fakeFetcher struct {
	dir   string
	calls int
}

func (f *fakeFetcher) Download(_ context.Context, modelID string, progress models.ProgressFunc) (string, error) {
	f.calls++
	progress(0, 4)
	progress(4, 4)
	path := filepath.Join(f.dir, modelID+".gguf")
	return path, os.WriteFile(path, []byte("GGUF"), 0o644)
}

type harness struct {
	backend *Backend
	engine  *inference.MockEngine
	perms   *permissions.Manager
	fetcher *fakeFetcher
	docs    string
}

func newHarness(t *testing.T, rounds int) *harness {
	t.Helper()
	root := t.TempDir()
	modelsDir := filepath.Join(root, "models")
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte("alpha"), 0o644))

	catalog := &models.ModelCatalog{Models: []models.CatalogEntry{
		{ID: "m1", Name: "Model One", Filename: "m1.gguf", Size: 4},
	}}
	perms := permissions.NewManager(permissions.NewMemoryStore())
	engine := inference.NewMockEngine()
	fetcher := &fakeFetcher{dir: modelsDir}

	b := New(Options{
		Engine:        engine,
		Registry:      models.NewRegistry(modelsDir, catalog),
		Fetcher:       fetcher,
		Permissions:   perms,
		Executor:      tools.NewExecutor(tools.NewFacade(perms, nil), nil, nil),
		Load:          inference.DefaultLoadOptions(),
		Generation:    inference.DefaultGenerationOptions(),
		MaxToolRounds: rounds,
	})
	return &harness{backend: b, engine: engine, perms: perms, fetcher: fetcher, docs: docs}
}

func (h *harness) loadModel(t *testing.T) {
	t.Helper()
	path, err := h.backend.DownloadModel(context.Background(), "m1", "m1.gguf", nil)
	require.NoError(t, err)
	require.NoError(t, h.backend.LoadModel(context.Background(), path))
}

func TestAppInfo(t *testing.T) {
	h := newHarness(t, 5)
	info, err := h.backend.AppInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LocalWork Hero", info.Name)
	assert.Equal(t, Version, info.Version)
}

func TestDownloadMarksRegistry(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	list, err := h.backend.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Downloaded)

	var updates []api.DownloadProgress
	path, err := h.backend.DownloadModel(ctx, "m1", "m1.gguf", func(p api.DownloadProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, 0.0, updates[0].PercentValue())
	assert.Equal(t, 100.0, updates[1].PercentValue())
	assert.Equal(t, "m1", updates[1].ModelID)

	list, err = h.backend.ListModels(ctx)
	require.NoError(t, err)
	assert.True(t, list[0].Downloaded)
	assert.Equal(t, path, list[0].LocalPath)
}

func TestDownloadRejectsUnknownAndMismatched(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	_, err := h.backend.DownloadModel(ctx, "nope", "nope.gguf", nil)
	assert.Error(t, err)
	_, err = h.backend.DownloadModel(ctx, "m1", "other.gguf", nil)
	assert.Error(t, err)
	assert.Zero(t, h.fetcher.calls)
}

// gatedFetcher finishes writing the model, then holds the result until
// the gate opens
type gatedFetcher struct {
	dir     string
	written chan struct{}
	gate    chan struct{}
}

func (f *gatedFetcher) Download(_ context.Context, modelID string, progress models.ProgressFunc) (string, error) {
	path := filepath.Join(f.dir, modelID+".gguf")
	if err := os.WriteFile(path, []byte("GGUF"), 0o644); err != nil {
		return "", err
	}
	progress(4, 4)
	close(f.written)
	<-f.gate
	return path, nil
}

func TestCancelAfterTransferLeavesModelNotDownloaded(t *testing.T) {
	modelsDir := t.TempDir()
	catalog := &models.ModelCatalog{Models: []models.CatalogEntry{
		{ID: "m1", Name: "Model One", Filename: "m1.gguf", Size: 4},
	}}
	fetcher := &gatedFetcher{dir: modelsDir, written: make(chan struct{}), gate: make(chan struct{})}
	b := New(Options{
		Engine:      inference.NewMockEngine(),
		Registry:    models.NewRegistry(modelsDir, catalog),
		Fetcher:     fetcher,
		Permissions: permissions.NewManager(permissions.NewMemoryStore()),
	})
	client := models.NewRegistryClient(b)
	coord := download.NewCoordinator(b, client, nil, nil)
	ctx := context.Background()

	job, err := coord.Start(ctx, "m1")
	require.NoError(t, err)
	<-fetcher.written
	require.True(t, job.Cancel())
	close(fetcher.gate)

	path := filepath.Join(modelsDir, "m1.gguf")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	m, err := client.Get(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, m.Downloaded)
	assert.Empty(t, m.LocalPath)

	_, err = job.Result()
	assert.ErrorIs(t, err, api.ErrDownloadCancelled)
}

func TestDiscardModelForgetsDownload(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	path, err := h.backend.DownloadModel(ctx, "m1", "m1.gguf", nil)
	require.NoError(t, err)
	require.NoError(t, h.backend.DiscardModel(ctx, "m1", path))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	list, err := h.backend.ListModels(ctx)
	require.NoError(t, err)
	assert.False(t, list[0].Downloaded)
}

func TestLoadModelMissingFile(t *testing.T) {
	h := newHarness(t, 5)
	err := h.backend.LoadModel(context.Background(), filepath.Join(t.TempDir(), "missing.gguf"))
	assert.Error(t, err)
	assert.False(t, h.engine.IsLoaded())
}

func TestSendTurnPlainReply(t *testing.T) {
	h := newHarness(t, 5)
	h.loadModel(t)
	h.engine.Script("hello")

	resp, err := h.backend.SendTurn(context.Background(), []api.ConversationMessage{api.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Empty(t, resp.ToolCalls)

	prompts := h.engine.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "<|im_start|>system\nYou are a helpful AI assistant running locally")
	assert.Contains(t, prompts[0], "<|im_start|>user\nhi<|im_end|>")
	assert.True(t, strings.HasSuffix(prompts[0], "<|im_start|>assistant\n"))
}

func TestSendTurnExecutesTools(t *testing.T) {
	h := newHarness(t, 5)
	h.loadModel(t)
	ctx := context.Background()

	perm, err := h.perms.GrantFolder(ctx, h.docs)
	require.NoError(t, err)

	a := filepath.Join(h.docs, "a.txt")
	h.engine.Script(
		`Let me read it. <tool_call>{"name": "read_file", "arguments": {"path": "`+a+`"}}</tool_call>`,
		"The file says alpha.",
	)

	resp, err := h.backend.SendTurn(ctx, []api.ConversationMessage{api.UserMessage("what is in a.txt?")})
	require.NoError(t, err)
	assert.Equal(t, "The file says alpha.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_0", resp.ToolCalls[0].ID)
	require.True(t, resp.ToolCalls[0].Resolved())
	assert.Equal(t, "alpha", *resp.ToolCalls[0].Result)

	prompts := h.engine.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "- "+perm.Path)
	assert.Contains(t, prompts[1], "<|im_start|>tool\nResult of read_file (call_0):\nalpha<|im_end|>")
}

func TestSendTurnToolFailureIsAResult(t *testing.T) {
	h := newHarness(t, 5)
	h.loadModel(t)

	h.engine.Script(
		`<tool_call>{"name": "read_file", "arguments": {"path": "/etc/hostname"}}</tool_call>`,
		"I can't access that file.",
	)

	resp, err := h.backend.SendTurn(context.Background(), []api.ConversationMessage{api.UserMessage("read it")})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.True(t, resp.ToolCalls[0].Failed())
	assert.True(t, strings.HasPrefix(*resp.ToolCalls[0].Result, "Error: Access denied"))
}

func TestSendTurnStopsAtRoundLimit(t *testing.T) {
	h := newHarness(t, 2)
	h.loadModel(t)

	loop := `again <tool_call>{"name": "list_files", "arguments": {"path": "/"}}</tool_call>`
	h.engine.Script(loop, loop, loop, loop)

	resp, err := h.backend.SendTurn(context.Background(), []api.ConversationMessage{api.UserMessage("loop")})
	require.NoError(t, err)
	assert.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "again", resp.Content)
	assert.Len(t, h.engine.Prompts(), 3)
	assert.Equal(t, "call_1", resp.ToolCalls[1].ID)
}

func TestSendTurnEngineError(t *testing.T) {
	h := newHarness(t, 5)

	_, err := h.backend.SendTurn(context.Background(), []api.ConversationMessage{api.UserMessage("hi")})
	require.Error(t, err)
	engineErr := inference.AsEngineError(err)
	require.NotNil(t, engineErr)
	assert.Equal(t, inference.ErrCodeNotLoaded, engineErr.Code)

	h.loadModel(t)
	cause := errors.New("context window exceeded")
	h.engine.SetGenerateError(cause)
	_, err = h.backend.SendTurn(context.Background(), []api.ConversationMessage{api.UserMessage("hi")})
	assert.ErrorIs(t, err, cause)
}

func TestFoldersDelegateToManager(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	perm, err := h.backend.GrantFolder(ctx, h.docs)
	require.NoError(t, err)

	list, err := h.backend.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, perm.ID, list[0].ID)

	require.NoError(t, h.backend.RevokeFolder(ctx, perm.ID))
	assert.ErrorIs(t, h.backend.RevokeFolder(ctx, perm.ID), api.ErrNotFound)
}

func TestBuildPromptReplaysToolCalls(t *testing.T) {
	call := api.ToolCall{ID: "call_0", Name: "list_files", Arguments: map[string]any{"path": "/d"}}.WithResult("Directory is empty")
	history := []api.ConversationMessage{
		api.UserMessage("list /d"),
		api.AssistantMessage("Nothing there.", []api.ToolCall{call}),
		api.UserMessage("thanks"),
	}

	prompt := buildPrompt("sys", history)
	want := "<|im_start|>system\nsys<|im_end|>\n" +
		"<|im_start|>user\nlist /d<|im_end|>\n" +
		"<|im_start|>assistant\nNothing there.\n" + `<tool_call>{"name":"list_files","arguments":{"path":"/d"}}</tool_call>` + "<|im_end|>\n" +
		"<|im_start|>tool\nResult of list_files (call_0):\nDirectory is empty<|im_end|>\n" +
		"<|im_start|>user\nthanks<|im_end|>\n" +
		"<|im_start|>assistant\n"
	assert.Equal(t, want, prompt)
}
