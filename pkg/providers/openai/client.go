package openai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"lycan-hq/arbiter/pkg/providers"
)

// Provider is the adapter for OpenAI-compatible chat completion APIs.
type Provider struct {
	*providers.HTTPProvider
}

// OpenAIRequest is a chat completion request body.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// OpenAIMessage is a message in OpenAI format.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewProvider creates an OpenAI-compatible provider.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		config.Name = "openai"
	}
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "api_url", Message: "API url is required"}
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "api_key", Message: "API key is required"}
	}

	p := &Provider{HTTPProvider: providers.NewHTTPProvider(config)}
	slog.Info("OpenAI-compatible provider initialized",
		"provider", config.Name,
		"url", NormalizeURL(config.BaseURL),
	)
	return p, nil
}

// NormalizeURL completes a base url to its chat completions endpoint.
// Urls already ending in /chat/completions are kept; a trailing /v1 gets
// /chat/completions; anything else gets /v1/chat/completions.
func NormalizeURL(apiURL string) string {
	url := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if url == "" {
		return ""
	}
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, "/chat/completions"):
		return url
	case strings.HasSuffix(lower, "/v1"):
		return url + "/chat/completions"
	}
	return url + "/v1/chat/completions"
}

// SendCompletion implements providers.Provider.
func (p *Provider) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	cfg := p.GetConfig()

	body := OpenAIRequest{
		Model:       firstNonEmpty(req.Model, cfg.Model),
		Temperature: firstNonZero(req.Temperature, cfg.Temperature),
		MaxTokens:   firstNonZeroInt(req.MaxTokens, cfg.MaxTokens),
	}
	if req.System != "" {
		body.Messages = append(body.Messages, OpenAIMessage{Role: providers.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, OpenAIMessage{Role: m.Role, Content: m.Content})
	}

	headers := map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
		"x-api-key":     cfg.APIKey,
	}
	raw, err := p.DoJSONRequest(ctx, NormalizeURL(cfg.BaseURL), body, headers)
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
	return resp, nil
}

var (
	errEmpty   = errors.New("response is empty")
	errNoText  = errors.New("response missing text content")
	maxRawText = 4000
)

// ExtractText finds the assistant text in an OpenAI-compatible answer.
//
// A body that already is the judge's JSON object is returned as is. An
// error object fails. Otherwise the text is searched in
// choices[0].message.content, message.reasoning_content, text,
// delta.content, delta.reasoning_content, then output_text, content,
// response and Gemini-style candidates. Server-sent event streams are
// concatenated. A short non-JSON body is returned verbatim.
func ExtractText(raw []byte) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", errEmpty
	}

	if obj, ok := providers.ParseObject([]byte(text)); ok {
		for _, key := range []string{"narration", "reasoning", "rulings", "phase_instructions"} {
			if _, ok := obj[key]; ok {
				return text, nil
			}
		}
		if e, ok := obj["error"].(map[string]any); ok {
			msg, _ := e["message"].(string)
			if strings.TrimSpace(msg) == "" {
				msg = "unknown error"
			}
			return "", errors.New("error payload: " + strings.TrimSpace(msg))
		}
		if s := fromChoices(obj); s != "" {
			return s, nil
		}
		for _, key := range []string{"output_text", "content", "response"} {
			if s := providers.ContentText(obj[key]); s != "" {
				return s, nil
			}
		}
		if s := fromCandidates(obj); s != "" {
			return s, nil
		}
	}

	if strings.Contains(text, "data:") {
		if s := fromEventStream(text); s != "" {
			return s, nil
		}
	}

	if len(text) <= maxRawText {
		return text, nil
	}
	return "", errNoText
}

func fromChoices(obj map[string]any) string {
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, _ := choices[0].(map[string]any)
	if first == nil {
		return ""
	}
	paths := [][]string{
		{"message", "content"},
		{"message", "reasoning_content"},
		{"text"},
		{"delta", "content"},
		{"delta", "reasoning_content"},
	}
	for _, path := range paths {
		if s := providers.ContentText(providers.Field(first, path...)); s != "" {
			return s
		}
	}
	return ""
}

func fromCandidates(obj map[string]any) string {
	candidates, ok := obj["candidates"].([]any)
	if !ok {
		return ""
	}
	var pieces []string
	for _, c := range candidates {
		cand, _ := c.(map[string]any)
		parts, _ := providers.Field(cand, "content", "parts").([]any)
		for _, part := range parts {
			if m, ok := part.(map[string]any); ok {
				if s := providers.ContentText(m["text"]); s != "" {
					pieces = append(pieces, s)
				}
			}
		}
	}
	return strings.TrimSpace(strings.Join(pieces, "\n"))
}

func fromEventStream(text string) string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		row := strings.TrimSpace(line)
		if !strings.HasPrefix(row, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(row, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk map[string]any
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		var piece string
		if choices, ok := chunk["choices"].([]any); ok && len(choices) > 0 {
			if c0, ok := choices[0].(map[string]any); ok {
				piece = providers.ContentText(providers.Field(c0, "delta", "content"))
				if piece == "" {
					piece = providers.ContentText(c0["text"])
				}
			}
		}
		if piece == "" {
			piece = providers.ContentText(chunk["output_text"])
		}
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return strings.TrimSpace(strings.Join(chunks, ""))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(a, b float64) float64 {
	if a != 0 {
		return a
	}
	return b
}

func firstNonZeroInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
