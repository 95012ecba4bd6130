// Package app wires the orchestration core to a backend
package app

import (
	"context"
	"fmt"

	"github.com/Codeblockz/localwork-hero/internal/agents"
	"github.com/Codeblockz/localwork-hero/internal/backend"
	"github.com/Codeblockz/localwork-hero/internal/backend/local"
	"github.com/Codeblockz/localwork-hero/internal/config"
	"github.com/Codeblockz/localwork-hero/internal/download"
	"github.com/Codeblockz/localwork-hero/internal/inference"
	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/internal/models"
	"github.com/Codeblockz/localwork-hero/internal/permissions"
	"github.com/Codeblockz/localwork-hero/internal/tools"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// App holds one instance of every core component. Each singleton (the
// download slot, the active model, the conversation) is owned here and
// passed to whoever needs it.
type App struct {
	Backend   backend.Backend
	Models    *models.RegistryClient
	Downloads *download.Coordinator
	Session   *inference.SessionManager
	Folders   *permissions.Client
	Agent     *agents.Session
	Metrics   *metrics.Metrics

	log     *logging.Logger
	watcher *models.Watcher
	closers []func() error
}

// New builds the in-process backend from cfg and wires the core to it
func New(cfg *config.Config, log *logging.Logger, mt *metrics.Metrics) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}

	store, err := permissions.NewSQLiteStore(cfg.PermissionsDB)
	if err != nil {
		return nil, fmt.Errorf("open permission store: %w", err)
	}
	perms := permissions.NewManager(store,
		permissions.WithAllowDuplicates(cfg.AllowDuplicateGrants),
		permissions.WithLogger(log),
		permissions.WithMetrics(mt),
	)

	catalog := models.DefaultCatalog()
	if cfg.CatalogFile != "" {
		catalog, err = models.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			perms.Close()
			return nil, err
		}
	}

	registry := models.NewRegistry(cfg.ModelsDir, catalog)
	if err := registry.ScanModels(); err != nil {
		log.Warn("failed to scan models", map[string]any{"error": err})
	}

	downloader := models.NewDownloader(cfg.ModelsDir, catalog)
	downloader.SetMinFreeBytes(uint64(cfg.MinFreeDiskMB) * 1024 * 1024)
	downloader.SetLogger(log)

	var engine inference.Engine
	if cfg.UseMockEngine {
		engine = inference.NewMockEngine()
	} else {
		engine = inference.NewLlamaEngine(log)
	}

	gen := inference.DefaultGenerationOptions()
	gen.MaxTokens = cfg.MaxTokens
	gen.Temperature = float32(cfg.Temperature)

	be := local.New(local.Options{
		Engine:      engine,
		Registry:    registry,
		Fetcher:     downloader,
		Permissions: perms,
		Executor:    tools.NewExecutor(tools.NewFacade(perms, log), log, mt),
		Load: inference.LoadOptions{
			ContextSize:  cfg.ContextSize,
			NumGPULayers: cfg.NumGPULayers,
			NumThreads:   cfg.NumThreads,
			UseMmap:      true,
		},
		Generation:    gen,
		MaxToolRounds: cfg.MaxToolRounds,
		Log:           log,
	})

	a := NewWithBackend(be, log, mt)
	a.closers = append(a.closers, engine.Unload, perms.Close)
	if cfg.WatchModels {
		a.watcher = models.NewWatcher(registry, a.refreshModels, log)
	}
	return a, nil
}

// NewWithBackend wires the core to an existing backend
func NewWithBackend(be backend.Backend, log *logging.Logger, mt *metrics.Metrics) *App {
	if log == nil {
		log = logging.Nop()
	}
	registry := models.NewRegistryClient(be)
	session := inference.NewSessionManager(be, log, mt)
	return &App{
		Backend:   be,
		Models:    registry,
		Downloads: download.NewCoordinator(be, registry, log, mt),
		Session:   session,
		Folders:   permissions.NewClient(be, log, mt),
		Agent:     agents.NewSession(be, session, log, mt),
		Metrics:   mt,
		log:       log,
	}
}

// Info returns the backend's name and version
func (a *App) Info(ctx context.Context) (api.AppInfo, error) {
	info, err := a.Backend.AppInfo(ctx)
	if err != nil {
		return api.AppInfo{}, api.E(api.ErrBackend, "app info", err)
	}
	return info, nil
}

// SelectModel loads a downloaded model and makes it the active one
func (a *App) SelectModel(ctx context.Context, modelID string) error {
	m, err := a.Models.Get(ctx, modelID)
	if err != nil {
		return err
	}
	return a.Session.LoadModel(ctx, m.ID, m.LocalPath)
}

// Watch rescans the models directory on changes until ctx is done. It
// returns immediately when watching is disabled.
func (a *App) Watch(ctx context.Context) error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Run(ctx)
}

func (a *App) refreshModels() {
	if _, err := a.Models.ListModels(context.Background()); err != nil {
		a.log.Warn("model refresh failed", map[string]any{"error": err})
	}
}

// Close releases the engine and the permission store
func (a *App) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
