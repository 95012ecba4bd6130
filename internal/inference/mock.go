package inference

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// mockResponse is returned once the script runs out
const mockResponse = "MOCK MODE: real inference is not compiled into this build. Rebuild with -tags llama to chat with the loaded model."

// MockEngine is a scripted engine for tests and builds without llama.cpp.
// Generate pops scripted responses in order.
type MockEngine struct {
	mu          sync.Mutex
	loaded      bool
	modelPath   string
	script      []string
	prompts     []string
	generateErr error
}

// NewMockEngine creates a new mock engine
func NewMockEngine(responses ...string) *MockEngine {
	return &MockEngine{script: append([]string(nil), responses...)}
}

// Script queues responses for the next Generate calls
func (e *MockEngine) Script(responses ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script = append(e.script, responses...)
}

// SetGenerateError makes every Generate call fail with err until cleared
func (e *MockEngine) SetGenerateError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generateErr = err
}

// Load checks that the model file exists and marks it loaded
func (e *MockEngine) Load(ctx context.Context, modelPath string, opts LoadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(modelPath)
	if err != nil {
		return &EngineError{Code: ErrCodeLoad, Message: "failed to load model", Details: err.Error()}
	}
	if info.IsDir() {
		return &EngineError{Code: ErrCodeLoad, Message: "failed to load model", Details: fmt.Sprintf("%s is a directory", modelPath)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.modelPath = modelPath
	e.loaded = true
	return nil
}

// Unload unloads the model
func (e *MockEngine) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	e.modelPath = ""
	return nil
}

// Generate returns the next scripted response
func (e *MockEngine) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return "", errNotLoaded()
	}
	e.prompts = append(e.prompts, prompt)
	if e.generateErr != nil {
		return "", e.generateErr
	}
	if len(e.script) == 0 {
		return mockResponse, nil
	}
	next := e.script[0]
	e.script = e.script[1:]
	return next, nil
}

// IsLoaded returns whether a model is loaded
func (e *MockEngine) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// ModelPath returns the loaded model file
func (e *MockEngine) ModelPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modelPath
}

// Prompts returns every prompt passed to Generate
func (e *MockEngine) Prompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}
