package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"lycan-hq/arbiter/pkg/providers"
)

const (
	// DefaultAnthropicVersion is the API version to use
	DefaultAnthropicVersion = "2023-06-01"

	// DefaultBaseURL is used when no api_url is configured.
	DefaultBaseURL = "https://api.anthropic.com/v1"
)

// Provider is the Anthropic Messages API adapter.
type Provider struct {
	*providers.HTTPProvider
}

// AnthropicRequest is a messages request body.
type AnthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []AnthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

// AnthropicMessage is a message in Anthropic format.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewProvider creates an Anthropic provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		config.Name = "anthropic"
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Anthropic",
		}
	}

	p := &Provider{HTTPProvider: providers.NewHTTPProvider(config)}
	slog.Info("Anthropic provider initialized",
		"provider", config.Name,
		"url", MessagesURL(config.BaseURL),
	)
	return p, nil
}

// MessagesURL appends /messages unless the url already ends with it.
func MessagesURL(apiURL string) string {
	url := strings.TrimSpace(apiURL)
	if strings.HasSuffix(url, "/messages") {
		return url
	}
	return strings.TrimRight(url, "/") + "/messages"
}

// SendCompletion implements providers.Provider.
func (p *Provider) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	cfg := p.GetConfig()

	body := AnthropicRequest{
		Model:       req.Model,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.Model == "" {
		body.Model = cfg.Model
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = cfg.MaxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = cfg.Temperature
	}
	for _, m := range req.Messages {
		if m.Role == providers.RoleSystem {
			// System turns go to the top-level field.
			body.System = strings.TrimSpace(body.System + "\n" + m.Content)
			continue
		}
		body.Messages = append(body.Messages, AnthropicMessage{Role: m.Role, Content: m.Content})
	}

	headers := map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": DefaultAnthropicVersion,
	}
	raw, err := p.DoJSONRequest(ctx, MessagesURL(cfg.BaseURL), body, headers)
	if err != nil {
		return nil, err
	}

	text, err := ExtractText(raw)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.GetName(), RawResponse: string(raw), Cause: err}
	}

	resp := &providers.CompletionResponse{Model: body.Model, Content: text, Raw: string(raw)}
	if obj, ok := providers.ParseObject(raw); ok {
		if id, ok := obj["id"].(string); ok {
			resp.ID = id
		}
		if model, ok := obj["model"].(string); ok && model != "" {
			resp.Model = model
		}
	}

	slog.Debug("completion request succeeded",
		"provider", p.GetName(),
		"model", resp.Model,
	)
	return resp, nil
}

// ExtractText returns the text of the content blocks, or of the legacy
// completion field.
func ExtractText(raw []byte) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", errors.New("response is empty")
	}
	obj, ok := providers.ParseObject([]byte(text))
	if !ok {
		return "", errors.New("response is not valid JSON")
	}
	if s := providers.ContentText(obj["content"]); s != "" {
		return s, nil
	}
	if s := providers.ContentText(obj["completion"]); s != "" {
		return s, nil
	}
	return "", errors.New("response missing text content")
}
