package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Registry tracks which catalog models are present in the models directory.
// Model files dropped into the directory by hand are listed too.
type Registry struct {
	mu        sync.RWMutex
	catalog   *ModelCatalog
	modelsDir string
	local     map[string]string // model id -> local path
	extra     []api.Model       // files not in the catalog
}

// NewRegistry creates a new model registry
func NewRegistry(modelsDir string, catalog *ModelCatalog) *Registry {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Registry{
		catalog:   catalog,
		modelsDir: modelsDir,
		local:     make(map[string]string),
	}
}

// Catalog returns the catalog backing the registry
func (r *Registry) Catalog() *ModelCatalog {
	return r.catalog
}

// ModelsDir returns the directory models are stored in
func (r *Registry) ModelsDir() string {
	return r.modelsDir
}

// ScanModels scans the models directory for available models
func (r *Registry) ScanModels() error {
	if err := os.MkdirAll(r.modelsDir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	entries, err := os.ReadDir(r.modelsDir)
	if err != nil {
		return fmt.Errorf("failed to scan models directory: %w", err)
	}

	byFilename := make(map[string]*CatalogEntry, len(r.catalog.Models))
	for i := range r.catalog.Models {
		byFilename[r.catalog.Models[i].Filename] = &r.catalog.Models[i]
	}

	local := make(map[string]string)
	var extra []api.Model
	for _, entry := range entries {
		name := entry.Name()
		// Skip directories, hidden files and partial downloads
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		if !isModelFile(name) {
			continue
		}

		path := filepath.Join(r.modelsDir, name)
		if ce, ok := byFilename[name]; ok {
			local[ce.ID] = path
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		extra = append(extra, api.Model{
			ID:          generateModelID(name),
			DisplayName: name,
			Filename:    name,
			SizeBytes:   info.Size(),
			LocalPath:   path,
			Downloaded:  true,
		})
	}

	r.mu.Lock()
	r.local = local
	r.extra = extra
	r.mu.Unlock()
	return nil
}

// ListModels returns catalog models in catalog order, then untracked files
func (r *Registry) ListModels() []api.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]api.Model, 0, len(r.catalog.Models)+len(r.extra))
	for _, ce := range r.catalog.Models {
		m := api.Model{
			ID:          ce.ID,
			DisplayName: ce.Name,
			Filename:    ce.Filename,
			SizeBytes:   ce.Size,
		}
		if path, ok := r.local[ce.ID]; ok {
			m.LocalPath = path
			m.Downloaded = true
		}
		models = append(models, m)
	}
	models = append(models, r.extra...)
	return models
}

// GetModel returns a single model by id
func (r *Registry) GetModel(id string) (api.Model, error) {
	for _, m := range r.ListModels() {
		if strings.EqualFold(m.ID, id) {
			return m, nil
		}
	}
	return api.Model{}, api.E(api.ErrNotFound, "get model", fmt.Errorf("model %s", id))
}

// MarkDownloaded records a finished download without rescanning
func (r *Registry) MarkDownloaded(id, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[id] = path
}

// DeleteModel removes a downloaded catalog model from disk
func (r *Registry) DeleteModel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, ok := r.local[id]
	if !ok {
		return api.E(api.ErrNotFound, "delete model", fmt.Errorf("model %s is not downloaded", id))
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete model file: %w", err)
	}
	delete(r.local, id)
	return nil
}

func isModelFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gguf", ".ggml", ".bin":
		return true
	}
	return false
}

func generateModelID(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return strings.ToLower(base)
}
