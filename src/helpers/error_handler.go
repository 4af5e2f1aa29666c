package helpers

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type PricelinkError struct {
	Message string
	Cause   error
}

func (e *PricelinkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PricelinkError) Unwrap() error {
	return e.Cause
}

// Helper to define distinct error types for type assertions if needed
type ConfigurationError struct{ PricelinkError }
type UpstreamError struct{ PricelinkError }
type DatabaseError struct{ PricelinkError }

// -----------------------------------------------------------------------------

// NewUpstreamError wraps a provider failure. All upstream causes are
// treated identically by callers, so the message is purely diagnostic.
func NewUpstreamError(message string, cause error) *UpstreamError {
	return &UpstreamError{PricelinkError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------

// IsUpstream reports whether err originates from the upstream provider.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// -----------------------------------------------------------------------------

// NewDatabaseError wraps a storage failure.
func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{PricelinkError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		fmt.Printf("Warning: Attempt %d/%d failed for %s: %v. Retrying in %v\n", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return nil, lastErr
}
