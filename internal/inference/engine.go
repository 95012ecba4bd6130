package inference

import (
	"context"
)

// Engine defines the interface for LLM inference backends
type Engine interface {
	// Load loads a model from the given path, replacing any loaded model
	Load(ctx context.Context, modelPath string, opts LoadOptions) error

	// Unload unloads the currently loaded model
	Unload() error

	// Generate completes a fully rendered prompt
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)

	// IsLoaded returns whether a model is currently loaded
	IsLoaded() bool
}

// LoadOptions contains options for loading a model
type LoadOptions struct {
	ContextSize  int  // Context window size
	NumGPULayers int  // Number of layers to offload to GPU
	NumThreads   int  // Number of CPU threads to use
	UseMlock     bool // Use mlock to keep model in RAM
	UseMmap      bool // Use mmap for faster loading
}

// GenerationOptions contains options for text generation
type GenerationOptions struct {
	MaxTokens     int
	Temperature   float32
	TopP          float32
	TopK          int
	StopSequences []string
}

// DefaultLoadOptions returns default load options optimized for low-end hardware
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		ContextSize:  4096,
		NumGPULayers: 0, // CPU only by default
		NumThreads:   0, // 0 = auto-detect based on CPU cores
		UseMlock:     false,
		UseMmap:      true,
	}
}

// DefaultGenerationOptions returns default generation options
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		MaxTokens:     1024,
		Temperature:   0.7,
		TopP:          0.95,
		TopK:          40,
		StopSequences: []string{ChatMLEnd},
	}
}

// ChatML markers
const (
	ChatMLStart = "<|im_start|>"
	ChatMLEnd   = "<|im_end|>"
)
