package models

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelCatalog contains the models the app offers for download
type ModelCatalog struct {
	Models []CatalogEntry `yaml:"models" json:"models"`
}

// CatalogEntry is a single downloadable model file
type CatalogEntry struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Parameters  string        `yaml:"parameters" json:"parameters"` // "7B", "13B", etc.
	License     string        `yaml:"license" json:"license"`
	Provider    string        `yaml:"provider" json:"provider"`
	Filename    string        `yaml:"filename" json:"filename"`
	Size        int64         `yaml:"size_bytes" json:"size_bytes"`
	SHA256      string        `yaml:"sha256" json:"sha256"`
	Sources     []ModelSource `yaml:"sources" json:"sources"`
	Tags        []string      `yaml:"tags" json:"tags"`
}

// ModelSource represents where to download a model from
type ModelSource struct {
	URL      string `yaml:"url" json:"url"`
	Mirror   bool   `yaml:"mirror" json:"mirror"`     // Is this a mirror/backup source?
	Priority int    `yaml:"priority" json:"priority"` // Lower number = higher priority
}

// DefaultCatalog returns the built-in model catalog
func DefaultCatalog() *ModelCatalog {
	return &ModelCatalog{
		Models: []CatalogEntry{
			{
				ID:          "tinyllama-1.1b-chat",
				Name:        "TinyLlama 1.1B Chat",
				Description: "Compact model for low-resource machines",
				Parameters:  "1.1B",
				License:     "Apache 2.0",
				Provider:    "TinyLlama",
				Filename:    "tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
				Size:        668788096, // ~638MB
				SHA256:      "9fecc3b3cd76bba89d504f29b616eedf7da85b96540e490ca5824d3f7d2776a0",
				Tags:        []string{"chat", "lightweight"},
				Sources: []ModelSource{
					{URL: "https://huggingface.co/TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF/resolve/main/tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf", Priority: 1},
				},
			},
			{
				ID:          "phi-2",
				Name:        "Phi-2",
				Description: "Microsoft's efficient 2.7B parameter model",
				Parameters:  "2.7B",
				License:     "MIT",
				Provider:    "Microsoft",
				Filename:    "phi-2.Q4_K_M.gguf",
				Size:        1789239136, // ~1.67GB
				SHA256:      "324356668fa5ba9f4135de348447bb2bbe2467eaa1b8fcfb53719de62fbd2499",
				Tags:        []string{"efficient", "reasoning"},
				Sources: []ModelSource{
					{URL: "https://huggingface.co/TheBloke/phi-2-GGUF/resolve/main/phi-2.Q4_K_M.gguf", Priority: 1},
				},
			},
			{
				ID:          "mistral-7b-instruct",
				Name:        "Mistral 7B Instruct",
				Description: "Instruction-following model with reliable tool use",
				Parameters:  "7B",
				License:     "Apache 2.0",
				Provider:    "Mistral AI",
				Filename:    "mistral-7b-instruct-v0.2.Q4_K_M.gguf",
				Size:        4368439584, // ~4.1GB
				SHA256:      "3e0039fd0273fcbebb49228943b17831aadd55cbcbf56f0af00499be2040ccf9",
				Tags:        []string{"instruct", "tools"},
				Sources: []ModelSource{
					{URL: "https://huggingface.co/TheBloke/Mistral-7B-Instruct-v0.2-GGUF/resolve/main/mistral-7b-instruct-v0.2.Q4_K_M.gguf", Priority: 1},
				},
			},
			{
				ID:          "llama-2-7b-chat",
				Name:        "Llama 2 7B Chat",
				Description: "Meta's open chat model",
				Parameters:  "7B",
				License:     "Llama 2 Community",
				Provider:    "Meta",
				Filename:    "llama-2-7b-chat.Q4_K_M.gguf",
				Size:        4081004224, // ~3.8GB
				SHA256:      "08a5566d61d7cb6b420c3e4387a39e0078e1f2fe5f055f3a03887385304d4bfa",
				Tags:        []string{"chat", "general"},
				Sources: []ModelSource{
					{URL: "https://huggingface.co/TheBloke/Llama-2-7B-Chat-GGUF/resolve/main/llama-2-7b-chat.Q4_K_M.gguf", Priority: 1},
				},
			},
		},
	}
}

// LoadCatalog reads a catalog from a YAML file
func LoadCatalog(path string) (*ModelCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog ModelCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks that entries are usable
func (c *ModelCatalog) Validate() error {
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("catalog entry %d: missing id", i)
		}
		key := strings.ToLower(m.ID)
		if seen[key] {
			return fmt.Errorf("catalog entry %d: duplicate id %s", i, m.ID)
		}
		seen[key] = true
		if m.Filename == "" || strings.ContainsAny(m.Filename, `/\`) {
			return fmt.Errorf("catalog entry %s: filename must be a plain file name", m.ID)
		}
		if len(m.Sources) == 0 {
			return fmt.Errorf("catalog entry %s: no sources", m.ID)
		}
	}
	return nil
}

// FindModel finds a model by ID (case-insensitive)
func (c *ModelCatalog) FindModel(id string) *CatalogEntry {
	for i := range c.Models {
		if strings.EqualFold(c.Models[i].ID, id) {
			return &c.Models[i]
		}
	}
	return nil
}

// SortedSources returns the entry's sources by priority
func (e *CatalogEntry) SortedSources() []ModelSource {
	sources := append([]ModelSource(nil), e.Sources...)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority < sources[j].Priority
	})
	return sources
}
