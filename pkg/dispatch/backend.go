package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"lycan-hq/arbiter/pkg/telemetry/tracing"
)

const maxResponseBytes = 1 << 20

// Backend performs a single call against a seat's backend. Retry, admission
// and fallback are the Dispatcher's job.
type Backend interface {
	// Act posts req to {endpoint}/act within budget and returns the raw body
	// of a 2xx answer.
	Act(ctx context.Context, reg Registration, req ActRequest, budget time.Duration) ([]byte, error)

	// Health probes {endpoint}/health.
	Health(ctx context.Context, reg Registration) error
}

// HTTPBackend is the Backend used in production. It keeps one pooled
// http.Client for all seats; per-attempt timeouts come from the context.
type HTTPBackend struct {
	client *http.Client
	logger *slog.Logger
}

// HTTPOptions tunes the connection pool of an HTTPBackend.
type HTTPOptions struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// NewHTTPBackend creates an HTTP backend with connection pooling.
func NewHTTPBackend(opts HTTPOptions) *HTTPBackend {
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 64
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 8
	}
	if opts.IdleConnTimeout <= 0 {
		opts.IdleConnTimeout = 90 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     opts.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &HTTPBackend{
		client: &http.Client{Transport: transport},
		logger: slog.Default().With("component", "dispatch.backend"),
	}
}

// Act implements Backend.
func (b *HTTPBackend) Act(ctx context.Context, reg Registration, req ActRequest, budget time.Duration) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &FatalError{Seat: reg.SeatID, Reason: "encode_request", Cause: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, reg.Endpoint+"/act", bytes.NewReader(body))
	if err != nil {
		return nil, &FatalError{Seat: reg.SeatID, Reason: "build_request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tracing.Inject(attemptCtx, httpReq.Header)

	b.logger.Debug("sending act request",
		"seat", reg.SeatID,
		"phase", req.Phase,
		"budget", budget,
	)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if isTimeout(attemptCtx, err) {
			return nil, &TimeoutError{Seat: reg.SeatID, Budget: budget, Cause: err}
		}
		return nil, &FatalError{Seat: reg.SeatID, Reason: "transport", Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(attemptCtx, err) {
			return nil, &TimeoutError{Seat: reg.SeatID, Budget: budget, Cause: err}
		}
		return nil, &FatalError{Seat: reg.SeatID, Reason: "read_response", Cause: err}
	}

	if resp.StatusCode >= 400 {
		msg := truncateRunes(string(payload), 200)
		if IsTransientStatus(resp.StatusCode) {
			return nil, &TransientError{Seat: reg.SeatID, StatusCode: resp.StatusCode, Message: msg}
		}
		return nil, &FatalError{Seat: reg.SeatID, StatusCode: resp.StatusCode, Reason: msg}
	}
	return payload, nil
}

// Health implements Backend. Any 2xx answer counts as healthy.
func (b *HTTPBackend) Health(ctx context.Context, reg Registration) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reg.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe %s: %w", reg.SeatID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe %s: status %d", reg.SeatID, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
