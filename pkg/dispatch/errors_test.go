package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &TimeoutError{Seat: "p1"}, "timeout"},
		{"wrapped timeout", fmt.Errorf("attempt: %w", &TimeoutError{Seat: "p1"}), "timeout"},
		{"transient", &TransientError{StatusCode: 429}, "http_429"},
		{"fatal status", &FatalError{StatusCode: 401}, "http_401"},
		{"fatal reason", &FatalError{Reason: "invalid_response"}, "invalid_response"},
		{"canceled", fmt.Errorf("admission: %w", context.Canceled), "canceled"},
		{"plain", errors.New("boom"), "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorType(tt.err); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsTransientStatus(code) {
			t.Errorf("Expected %d to be transient", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 501} {
		if IsTransientStatus(code) {
			t.Errorf("Expected %d not to be transient", code)
		}
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("dial refused")
	err := &FatalError{Seat: "p1", Reason: "transport", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Expected FatalError to unwrap its cause")
	}
	timeout := &TimeoutError{Seat: "p1", Cause: context.DeadlineExceeded}
	if !errors.Is(timeout, context.DeadlineExceeded) {
		t.Error("Expected TimeoutError to unwrap its cause")
	}
}
