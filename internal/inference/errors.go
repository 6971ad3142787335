package inference

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors, one per failure kind. Typed errors below wrap them so
// callers can match with errors.Is.
var (
	ErrBackendInit         = errors.New("backend initialization failed")
	ErrModelLoad           = errors.New("model load failed")
	ErrContextCreation     = errors.New("context creation failed")
	ErrTokenization        = errors.New("tokenization failed")
	ErrDecode              = errors.New("decode failed")
	ErrSampling            = errors.New("sampling failed")
	ErrPoolTimeout         = errors.New("timed out waiting for context")
	ErrInterrupted         = errors.New("generation interrupted")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrBatchFull           = errors.New("batch full")
	ErrWouldExceedCapacity = errors.New("would exceed batch capacity")
	ErrModelNotLoaded      = errors.New("model not loaded")
	ErrPoolClosed          = errors.New("context pool closed")
	ErrIO                  = errors.New("i/o error")
)

// ModelLoadError reports which file could not be loaded.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model from %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() []error { return []error{ErrModelLoad, e.Err} }

// DecodeError carries the non-zero code returned by the engine.
type DecodeError struct {
	Code int32
	Err  error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("decode failed with code %d: %v", e.Code, e.Err)
	case e.Code == 1:
		return "decode failed with code 1: no cache slot for batch (context full)"
	default:
		return fmt.Sprintf("decode failed with code %d", e.Code)
	}
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// PoolTimeoutError is returned when no context became available in time.
type PoolTimeoutError struct {
	Waited  string
	LastErr error
}

func (e *PoolTimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("timeout waiting for context (%s): last growth error: %v", e.Waited, e.LastErr)
	}
	return fmt.Sprintf("timeout waiting for context (%s)", e.Waited)
}

func (e *PoolTimeoutError) Unwrap() error { return ErrPoolTimeout }

// StageError pins an error to the generation stage it happened in when the
// underlying error does not identify one itself.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Stage names a failure kind for operators and HTTP status mapping.
func Stage(err error) string {
	var se *StageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se) && se.Stage != "":
		return se.Stage
	case errors.Is(err, ErrPoolTimeout):
		return "timeout"
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "interrupted"
	case errors.Is(err, ErrModelLoad), errors.Is(err, ErrModelNotLoaded):
		return "load"
	case errors.Is(err, ErrTokenization):
		return "tokenize"
	case errors.Is(err, ErrDecode), errors.Is(err, ErrBatchFull), errors.Is(err, ErrWouldExceedCapacity):
		return "decode"
	case errors.Is(err, ErrSampling):
		return "sample"
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrBackendInit), errors.Is(err, ErrContextCreation), errors.Is(err, ErrPoolClosed):
		return "config"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "unknown"
	}
}

// IsRetryable reports whether the caller may retry the same request later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPoolTimeout)
}

// interrupted converts a context error into ErrInterrupted while keeping the cause.
func interrupted(err error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, err)
}
