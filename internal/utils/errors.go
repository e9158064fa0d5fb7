package utils

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the order pipeline. Wrap them with AppError or fmt.Errorf
// and test with errors.Is.
var (
	// ErrNoOrderList reports a provider response without a recognisable order list.
	ErrNoOrderList = errors.New("API response format unrecognized -- no order list found")
	// ErrFetchFailed reports transient fetch failures that outlived the retry budget.
	ErrFetchFailed = errors.New("failed to fetch data")
	// ErrExtractionTimeout reports a single extraction call exceeding its deadline.
	ErrExtractionTimeout = errors.New("extraction timed out")
	// ErrExtractionCall reports a single extraction call that failed or returned garbage.
	ErrExtractionCall = errors.New("extraction call failed")
	// ErrExtractionFailed reports that no extraction call produced a result.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrScoring reports a per-record scoring failure.
	ErrScoring = errors.New("scoring failed")
	// ErrInvalidRequest reports a caller request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotConfigured reports a service dependency that was not wired at startup.
	ErrNotConfigured = errors.New("not configured")
	// ErrOrderNotFound reports a raw order lookup the provider could not satisfy.
	ErrOrderNotFound = errors.New("order not found")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// Message returns the human-facing part of err, dropping operation prefixes when err is an AppError.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Err == nil {
			return appErr.Msg
		}
		return fmt.Sprintf("%s: %v", appErr.Msg, appErr.Err)
	}
	return err.Error()
}
