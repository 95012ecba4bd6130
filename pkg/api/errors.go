package api

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrDownloadBusy        = errors.New("another download is in progress")
	ErrDownloadFailed      = errors.New("download failed")
	ErrDownloadCancelled   = errors.New("download cancelled")
	ErrLoadFailed          = errors.New("model load failed")
	ErrNoModelSelected     = errors.New("no model selected")
	ErrSessionBusy         = errors.New("session is busy")
	ErrBackend             = errors.New("backend error")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")

	// ErrLoadBusy is a LoadFailed raised when a load is already pending
	ErrLoadBusy = fmt.Errorf("%w: another load is in progress", ErrLoadFailed)
)

// Error carries an error kind, the operation that failed and the verbatim
// cause reported by the collaborator.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// E builds an *Error
func E(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// AsError returns the *Error if the chain contains one
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// Cause returns the collaborator's error for user display, or err itself
func Cause(err error) error {
	if apiErr := AsError(err); apiErr != nil && apiErr.Err != nil {
		return apiErr.Err
	}
	return err
}
