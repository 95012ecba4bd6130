package inference

import "errors"

const (
	// ErrCodeNotLoaded indicates a generate call with no model in the engine
	ErrCodeNotLoaded = "model_not_loaded"
	// ErrCodeLoad indicates the engine could not open the model file
	ErrCodeLoad = "model_load"
	// ErrCodeGenerate indicates a failure while predicting tokens
	ErrCodeGenerate = "generate"
)

// EngineError wraps structured errors returned by inference engines so callers can react
// to known failure modes without string matching.
type EngineError struct {
	Code    string
	Message string
	Details string
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Details != "" {
			return e.Message + ": " + e.Details
		}
		return e.Message
	}
	return e.Details
}

// AsEngineError returns the EngineError if the provided error chain contains one.
func AsEngineError(err error) *EngineError {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr
	}
	return nil
}

func errNotLoaded() error {
	return &EngineError{Code: ErrCodeNotLoaded, Message: "no model loaded"}
}
