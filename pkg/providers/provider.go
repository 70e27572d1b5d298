package providers

import (
	"context"
	"time"
)

// Provider is a chat-completion backend. The judge uses it to produce phase
// narration; seats never talk to a Provider directly.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must return promptly when the context is cancelled.
type Provider interface {
	// SendCompletion sends one request and returns the assistant text.
	// Transient failures are retried with exponential backoff.
	SendCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// GetName returns the configured provider name.
	GetName() string

	// GetConfig returns the provider's configuration.
	GetConfig() ProviderConfig

	// Close releases idle connections.
	Close() error
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-agnostic chat request. System is sent the
// way the provider expects it: as a leading system message or as a
// top-level field.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the normalized answer.
type CompletionResponse struct {
	ID      string
	Model   string
	Content string

	// Raw is the undecoded response body.
	Raw string
}

// ProviderConfig describes one chat-completion endpoint.
type ProviderConfig struct {
	Name string `yaml:"name"`

	// Type selects the wire format: "openai" (any OpenAI-compatible API)
	// or "anthropic" (alias "claude").
	Type string `yaml:"provider"`

	BaseURL string `yaml:"api_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model_name"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after a transient failure.
	MaxRetries int `yaml:"max_retries"`

	// Backoff is the delay before the first retry; it doubles per retry.
	Backoff time.Duration `yaml:"backoff"`

	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// Defaults for ProviderConfig.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
	DefaultBackoff     = time.Second
)

// WithDefaults fills zero fields with their defaults.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 16
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 4
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	return c
}
