//go:build llama
// +build llama

package inference

import (
	"context"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"github.com/Codeblockz/localwork-hero/internal/logging"
)

// LlamaEngine implements the Engine interface using llama.cpp
type LlamaEngine struct {
	mu        sync.Mutex
	model     *llama.LLama
	modelPath string
	opts      LoadOptions
	log       *logging.Logger
}

// NewLlamaEngine creates a new llama.cpp engine
func NewLlamaEngine(log *logging.Logger) *LlamaEngine {
	if log == nil {
		log = logging.Nop()
	}
	return &LlamaEngine{log: log.Named("engine")}
}

// Load loads a GGUF model file. The previous model stays usable until the
// new one is open.
func (e *LlamaEngine) Load(ctx context.Context, modelPath string, opts LoadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	llamaOpts := []llama.ModelOption{
		llama.SetContext(opts.ContextSize),
		llama.SetGPULayers(opts.NumGPULayers),
		llama.SetMMap(opts.UseMmap),
	}
	if opts.UseMlock {
		llamaOpts = append(llamaOpts, llama.EnableMLock)
	}

	model, err := llama.New(modelPath, llamaOpts...)
	if err != nil {
		return &EngineError{Code: ErrCodeLoad, Message: "failed to load model", Details: err.Error()}
	}

	e.mu.Lock()
	previous := e.model
	e.model = model
	e.modelPath = modelPath
	e.opts = opts
	e.mu.Unlock()

	if previous != nil {
		previous.Free()
	}
	e.log.Info("model loaded", map[string]any{"model_path": modelPath, "context_size": opts.ContextSize})
	return nil
}

// Unload unloads the current model
func (e *LlamaEngine) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	e.modelPath = ""
	return nil
}

// Generate runs prediction on a rendered prompt. The engine is
// single-capacity, so calls are serialized.
func (e *LlamaEngine) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return "", errNotLoaded()
	}

	predictOpts := []llama.PredictOption{
		llama.SetTemperature(float64(opts.Temperature)),
		llama.SetTopP(float64(opts.TopP)),
		llama.SetTopK(opts.TopK),
		llama.SetTokens(opts.MaxTokens),
		llama.SetTokenCallback(func(string) bool {
			return ctx.Err() == nil
		}),
	}
	if e.opts.NumThreads > 0 {
		predictOpts = append(predictOpts, llama.SetThreads(e.opts.NumThreads))
	}

	stop := opts.StopSequences
	if len(stop) == 0 {
		stop = []string{ChatMLEnd}
	}
	predictOpts = append(predictOpts, llama.SetStopWords(stop...))

	response, err := e.model.Predict(prompt, predictOpts...)
	if err != nil {
		return "", &EngineError{Code: ErrCodeGenerate, Message: "prediction failed", Details: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	response = strings.TrimSuffix(strings.TrimSpace(response), ChatMLEnd)
	return strings.TrimSpace(response), nil
}

// IsLoaded returns whether a model is loaded
func (e *LlamaEngine) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}
