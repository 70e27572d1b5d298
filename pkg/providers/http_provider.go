package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const maxResponseBytes = 4 << 20

// HTTPProvider is the base of the provider adapters. It owns the pooled
// HTTP client, retries transient failures and tracks consecutive failures.
//
// Adapters embed it and implement SendCompletion.
type HTTPProvider struct {
	config ProviderConfig
	client *http.Client
	logger *slog.Logger

	mu                  sync.Mutex
	consecutiveFailures int
	lastError           error
}

// NewHTTPProvider creates a base HTTP provider with connection pooling.
func NewHTTPProvider(config ProviderConfig) *HTTPProvider {
	config = config.WithDefaults()
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &HTTPProvider{
		config: config,
		client: &http.Client{Transport: transport},
		logger: slog.Default().With("component", "providers", "provider", config.Name),
	}
}

// GetName returns the provider's configured name.
func (p *HTTPProvider) GetName() string {
	return p.config.Name
}

// GetConfig returns the provider's configuration.
func (p *HTTPProvider) GetConfig() ProviderConfig {
	return p.config
}

// ConsecutiveFailures returns the number of failed requests since the last
// success, and the last error.
func (p *HTTPProvider) ConsecutiveFailures() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveFailures, p.lastError
}

func (p *HTTPProvider) recordResult(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.consecutiveFailures = 0
		p.lastError = nil
		return
	}
	p.consecutiveFailures++
	p.lastError = err
}

// DoRequest posts body to url and returns the body of a 2xx answer.
// Network errors and 5xx answers are retried up to MaxRetries times with
// exponential backoff; 4xx answers and timeouts are returned immediately.
func (p *HTTPProvider) DoRequest(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.config.Backoff << (attempt - 1)
			p.logger.Debug("retrying request",
				"attempt", attempt,
				"max_retries", p.config.MaxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				p.recordResult(ctx.Err())
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		data, err := p.attempt(ctx, url, body, headers)
		if err == nil {
			p.recordResult(nil)
			return data, nil
		}
		lastErr = err

		if !Retryable(err) {
			break
		}
		p.logger.Warn("request failed, will retry",
			"attempt", attempt+1,
			"error", err,
		)
	}

	p.recordResult(lastErr)
	return nil, lastErr
}

func (p *HTTPProvider) attempt(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: p.config.Name, Message: "build request", Cause: err}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Provider: p.config.Name, Timeout: p.config.Timeout}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{Provider: p.config.Name, Message: "transport error", Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{Provider: p.config.Name, StatusCode: resp.StatusCode, Message: "read body", Cause: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	detail := ErrorDetail(data)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{Provider: p.config.Name, Message: detail}
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Provider:   p.config.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    detail,
		}
	}
	return nil, &ProviderError{Provider: p.config.Name, StatusCode: resp.StatusCode, Message: fmt.Sprintf("url=%s detail=%s", url, detail)}
}

// DoJSONRequest marshals reqBody, posts it and returns the raw answer.
func (p *HTTPProvider) DoJSONRequest(ctx context.Context, url string, reqBody any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}
	return p.DoRequest(ctx, url, body, headers)
}

// Close closes idle connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// ErrorDetail extracts a short message from an error body: error.message,
// error.type, a string error, detail or message, else the first 300 bytes.
func ErrorDetail(body []byte) string {
	if obj, ok := ParseObject(body); ok {
		switch e := obj["error"].(type) {
		case map[string]any:
			for _, key := range []string{"message", "type"} {
				if s, ok := e[key].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		case string:
			if strings.TrimSpace(e) != "" {
				return strings.TrimSpace(e)
			}
		}
		for _, key := range []string{"detail", "message"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 300 {
		text = text[:300]
	}
	if text == "" {
		return "unknown"
	}
	return text
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
