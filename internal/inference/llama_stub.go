//go:build !llama
// +build !llama

package inference

import (
	"context"

	"github.com/Codeblockz/localwork-hero/internal/logging"
)

// LlamaEngine stub when llama.cpp is not available
// To enable real llama.cpp support:
// 1. Install llama.cpp: git clone https://github.com/ggerganov/llama.cpp && cd llama.cpp && make
// 2. Set environment: export C_INCLUDE_PATH=/path/to/llama.cpp:$C_INCLUDE_PATH
// 3. Build with: go build -tags llama
type LlamaEngine struct {
	*MockEngine
	log *logging.Logger
}

// NewLlamaEngine creates a stub that delegates to MockEngine
func NewLlamaEngine(log *logging.Logger) *LlamaEngine {
	if log == nil {
		log = logging.Nop()
	}
	return &LlamaEngine{
		MockEngine: NewMockEngine(),
		log:        log.Named("engine"),
	}
}

// Load logs a warning and delegates to mock
func (e *LlamaEngine) Load(ctx context.Context, modelPath string, opts LoadOptions) error {
	e.log.Warn("llama.cpp not compiled in, using mock responses; build with -tags llama for real inference",
		map[string]any{"model_path": modelPath})
	return e.MockEngine.Load(ctx, modelPath, opts)
}
