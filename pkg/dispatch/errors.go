package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError represents a backend call that exceeded its transport budget.
// Timeouts are retried up to the configured timeout retry count.
type TimeoutError struct {
	// Seat is the seat whose backend timed out
	Seat string

	// Budget is the outer transport budget that was exceeded
	Budget time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %q timeout after %s", e.Seat, e.Budget)
}

// Unwrap returns the underlying error for error chain support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// TransientError represents a retryable backend failure: HTTP 429, 500,
// 502, 503 or 504.
type TransientError struct {
	// Seat is the seat whose backend failed
	Seat string

	// StatusCode is the HTTP status code returned by the backend
	StatusCode int

	// Message is the (truncated) response body
	Message string
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("backend %q transient error (status %d): %s", e.Seat, e.StatusCode, e.Message)
}

// FatalError represents a failure that is never retried: other HTTP errors,
// transport failures and malformed responses.
type FatalError struct {
	// Seat is the seat whose backend failed
	Seat string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Reason is a short machine-readable reason such as "invalid_response"
	Reason string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %q fatal error (status %d): %s", e.Seat, e.StatusCode, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("backend %q fatal error: %s: %v", e.Seat, e.Reason, e.Cause)
	}
	return fmt.Sprintf("backend %q fatal error: %s", e.Seat, e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *FatalError) Unwrap() error {
	return e.Cause
}

// transientStatus lists the HTTP statuses that are worth retrying.
var transientStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsTransientStatus reports whether an HTTP status is retried.
func IsTransientStatus(code int) bool {
	return transientStatus[code]
}

// ErrorType classifies err into the short label used by metrics and
// fallback reasons: "timeout", "http_<status>", "invalid_response",
// "canceled" or "transport".
func ErrorType(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return "timeout"
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return fmt.Sprintf("http_%d", tr.StatusCode)
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		if fe.StatusCode > 0 {
			return fmt.Sprintf("http_%d", fe.StatusCode)
		}
		if fe.Reason != "" {
			return fe.Reason
		}
	}
	return "transport"
}
