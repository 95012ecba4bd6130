// Package local implements backend.Backend in-process: a model registry and
// downloader on disk, an inference engine, the folder permission manager and
// a tool loop over the scoped file facade.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Codeblockz/localwork-hero/internal/backend"
	"github.com/Codeblockz/localwork-hero/internal/inference"
	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/models"
	"github.com/Codeblockz/localwork-hero/internal/permissions"
	"github.com/Codeblockz/localwork-hero/internal/resource"
	"github.com/Codeblockz/localwork-hero/internal/tools"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Version is reported by AppInfo. Override at build time with
// -ldflags "-X github.com/Codeblockz/localwork-hero/internal/backend/local.Version=..."
var Version = "0.1.0"

var _ backend.Backend = (*Backend)(nil)

// Fetcher transfers a catalog model to disk
type Fetcher interface {
	Download(ctx context.Context, modelID string, progress models.ProgressFunc) (string, error)
}

// Options wires the backend's collaborators
type Options struct {
	Engine      inference.Engine
	Registry    *models.Registry
	Fetcher     Fetcher
	Permissions *permissions.Manager
	Executor    *tools.Executor

	Load          inference.LoadOptions
	Generation    inference.GenerationOptions
	MaxToolRounds int

	Log *logging.Logger
}

// Backend is the in-process backend
type Backend struct {
	engine    inference.Engine
	registry  *models.Registry
	fetcher   Fetcher
	perms     *permissions.Manager
	executor  *tools.Executor
	load      inference.LoadOptions
	gen       inference.GenerationOptions
	maxRounds int
	log       *logging.Logger

	// engine is single-capacity
	turnMu sync.Mutex
}

// New creates a backend from opts
func New(opts Options) *Backend {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	rounds := opts.MaxToolRounds
	if rounds <= 0 {
		rounds = 5
	}
	return &Backend{
		engine:    opts.Engine,
		registry:  opts.Registry,
		fetcher:   opts.Fetcher,
		perms:     opts.Permissions,
		executor:  opts.Executor,
		load:      opts.Load,
		gen:       opts.Generation,
		maxRounds: rounds,
		log:       log.Named("backend"),
	}
}

// AppInfo returns the application name and version
func (b *Backend) AppInfo(ctx context.Context) (api.AppInfo, error) {
	return api.AppInfo{Name: api.AppName, Version: Version}, nil
}

// ListModels rescans the models directory and lists catalog and local models
func (b *Backend) ListModels(ctx context.Context) ([]api.Model, error) {
	if err := b.registry.ScanModels(); err != nil {
		return nil, err
	}
	return b.registry.ListModels(), nil
}

// DownloadModel fetches a catalog model and records it in the registry
func (b *Backend) DownloadModel(ctx context.Context, modelID, filename string, progress func(api.DownloadProgress)) (string, error) {
	entry := b.registry.Catalog().FindModel(modelID)
	if entry == nil {
		return "", fmt.Errorf("model not found in catalog: %s", modelID)
	}
	if filename != "" && filename != entry.Filename {
		return "", fmt.Errorf("filename %s does not match catalog entry %s", filename, entry.Filename)
	}

	path, err := b.fetcher.Download(ctx, entry.ID, func(done, total int64) {
		if progress != nil {
			progress(api.NewDownloadProgress(entry.ID, done, total))
		}
	})
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		// Cancelled after the fetcher finished; the file must not count as downloaded
		b.removeFile(path)
		return "", err
	}

	b.registry.MarkDownloaded(entry.ID, path)
	return path, nil
}

// DiscardModel undoes a download whose job was cancelled after the
// transfer completed
func (b *Backend) DiscardModel(_ context.Context, modelID, localPath string) error {
	err := b.registry.DeleteModel(modelID)
	if errors.Is(err, api.ErrNotFound) {
		b.removeFile(localPath)
		return nil
	}
	if err == nil {
		b.log.Info("discarded cancelled download", map[string]any{"model_id": modelID, "path": localPath})
	}
	return err
}

func (b *Backend) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		b.log.Warn("failed to remove cancelled download", map[string]any{"path": path, "error": err})
	}
}

// LoadModel opens a model file in the engine
func (b *Backend) LoadModel(ctx context.Context, localPath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("model file: %w", err)
	}
	if err := resource.CheckAvailableMemory(resource.EstimateModelMemory(info.Size())); err != nil {
		// mmap can still page the model in, so this is only a warning
		b.log.Warn("model may not fit in memory", map[string]any{"path": localPath, "error": err})
	}
	return b.engine.Load(ctx, localPath, b.load)
}

// SendTurn generates a reply to history. Tool calls in the model output are
// executed and fed back for up to MaxToolRounds rounds; the final text and
// every executed call are returned.
func (b *Backend) SendTurn(ctx context.Context, history []api.ConversationMessage) (api.TurnResponse, error) {
	b.turnMu.Lock()
	defer b.turnMu.Unlock()

	folders, err := b.perms.ListFolders(ctx)
	if err != nil {
		return api.TurnResponse{}, fmt.Errorf("list folders: %w", err)
	}
	system := systemPrompt(folders)

	var parser tools.Parser
	convo := append([]api.ConversationMessage(nil), history...)
	var executed []api.ToolCall

	for round := 0; ; round++ {
		output, err := b.engine.Generate(ctx, buildPrompt(system, convo), b.gen)
		if err != nil {
			return api.TurnResponse{}, err
		}

		content := tools.ExtractTextContent(output)
		calls := parser.Parse(output)
		if len(calls) == 0 {
			return api.TurnResponse{Content: content, ToolCalls: executed}, nil
		}
		if round >= b.maxRounds {
			b.log.Warn("tool round limit reached", map[string]any{"rounds": round, "pending_calls": len(calls)})
			return api.TurnResponse{Content: content, ToolCalls: executed}, nil
		}

		resolved := make([]api.ToolCall, 0, len(calls))
		for _, call := range calls {
			resolved = append(resolved, b.executor.Execute(ctx, call))
		}
		executed = append(executed, resolved...)
		convo = append(convo, api.AssistantMessage(content, resolved))
	}
}

// GrantFolder grants access to a directory
func (b *Backend) GrantFolder(ctx context.Context, path string) (api.FolderPermission, error) {
	return b.perms.GrantFolder(ctx, path)
}

// RevokeFolder revokes a grant by id
func (b *Backend) RevokeFolder(ctx context.Context, id string) error {
	return b.perms.RevokeFolder(ctx, id)
}

// ListFolders lists current grants
func (b *Backend) ListFolders(ctx context.Context) ([]api.FolderPermission, error) {
	return b.perms.ListFolders(ctx)
}
