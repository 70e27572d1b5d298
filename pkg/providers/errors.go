package providers

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError is a transport failure (StatusCode 0) or an unexpected
// non-2xx answer from the judge model's API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Retryable reports whether another attempt could succeed.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// Retryable reports whether err, anywhere in its chain, is a ProviderError
// worth retrying. Auth, rate-limit, timeout and parse failures are not.
func Retryable(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Retryable()
}

// AuthError is a 401 or 403: the API key was rejected.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: credentials rejected: %s", e.Provider, e.Message)
}

// RateLimitError is a 429. RetryAfter is zero when no hint was sent.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry in %s: %s", e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Message)
}

// TimeoutError is an attempt that exceeded the provider timeout.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no answer within %s", e.Provider, e.Timeout)
}

// ParseError is a 2xx answer with no usable completion in it.
type ParseError struct {
	Provider    string
	RawResponse string
	Cause       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unreadable completion: %v", e.Provider, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ValidationError is a completion request rejected before sending.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid completion request: %s: %s", e.Field, e.Message)
}

// ConfigError is a judge provider configuration that cannot be used.
type ConfigError struct {
	Provider string
	Field    string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Field, e.Message)
}
