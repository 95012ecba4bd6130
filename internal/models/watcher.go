package models

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Codeblockz/localwork-hero/internal/logging"
)

// Watcher rescans the registry when model files appear or disappear in the
// models directory.
type Watcher struct {
	registry *Registry
	debounce time.Duration
	onChange func()
	log      *logging.Logger
}

// NewWatcher creates a watcher for the registry's models directory.
// onChange, if set, runs after every rescan.
func NewWatcher(registry *Registry, onChange func(), log *logging.Logger) *Watcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{
		registry: registry,
		debounce: 300 * time.Millisecond,
		onChange: onChange,
		log:      log.Named("models-watcher"),
	}
}

// Run watches until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.registry.ModelsDir()); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", map[string]any{"error": err})

		case <-timer.C:
			if err := w.registry.ScanModels(); err != nil {
				w.log.Warn("rescan failed", map[string]any{"error": err})
				continue
			}
			w.log.Debug("models rescanned")
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	return isModelFile(base)
}
