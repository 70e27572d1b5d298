package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"lycan-hq/arbiter/internal/agenttest"
	"lycan-hq/arbiter/pkg/providers"
)

func testConfig(url string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:    "judge",
		Type:    "openai",
		BaseURL: url,
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.example.com", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/chat/completions", "https://api.example.com/v1/chat/completions"},
		{"https://gw.example.com/openai/chat/completions", "https://gw.example.com/openai/chat/completions"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q): Expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestNewProvider_RequiresKeyAndURL(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.APIKey = ""
	_, err := NewProvider(cfg)
	var cerr *providers.ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "api_key" {
		t.Fatalf("Expected api_key ConfigError, got %v", err)
	}

	cfg = testConfig("")
	_, err = NewProvider(cfg)
	if !errors.As(err, &cerr) || cerr.Field != "api_url" {
		t.Fatalf("Expected api_url ConfigError, got %v", err)
	}
}

func TestProvider_SendCompletion(t *testing.T) {
	srv := agenttest.NewServer(nil)
	defer srv.Close()
	srv.SetResponse("/v1/chat/completions", agenttest.Reply{
		Body: agenttest.OpenAIResponse(`{"narration":"Night falls."}`, "gpt-4o-mini"),
	})

	p, err := NewProvider(testConfig(srv.URL()))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	defer p.Close()

	resp, err := p.SendCompletion(context.Background(), &providers.CompletionRequest{
		System:   "You are the judge.",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "Narrate."}},
	})
	if err != nil {
		t.Fatalf("SendCompletion failed: %v", err)
	}
	if resp.Content != `{"narration":"Night falls."}` {
		t.Errorf("Expected narration JSON, got %q", resp.Content)
	}
	if resp.ID != "chatcmpl-123" {
		t.Errorf("Expected id chatcmpl-123, got %q", resp.ID)
	}

	got := srv.Received("/v1/chat/completions")
	if len(got) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(got))
	}
	if auth := got[0].Header.Get("Authorization"); auth != "Bearer sk-test" {
		t.Errorf("Expected bearer header, got %q", auth)
	}
	if key := got[0].Header.Get("x-api-key"); key != "sk-test" {
		t.Errorf("Expected x-api-key header, got %q", key)
	}

	var body OpenAIRequest
	if err := json.Unmarshal(got[0].Body, &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != providers.RoleSystem {
		t.Fatalf("Expected system message first, got %+v", body.Messages)
	}
	if body.Model != "gpt-4o-mini" || body.MaxTokens != providers.DefaultMaxTokens {
		t.Errorf("Expected configured model and default max tokens, got %+v", body)
	}
}

func TestProvider_SendCompletion_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, func(err error) bool {
			var e *providers.AuthError
			return errors.As(err, &e)
		}},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool {
			var e *providers.RateLimitError
			return errors.As(err, &e)
		}},
		{"bad request", http.StatusBadRequest, func(err error) bool {
			var e *providers.ProviderError
			return errors.As(err, &e) && e.StatusCode == http.StatusBadRequest
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := agenttest.NewServer(nil)
			defer srv.Close()
			srv.SetResponse("/v1/chat/completions", agenttest.Reply{
				StatusCode: tt.status,
				Body:       map[string]any{"error": map[string]any{"message": "nope"}},
			})
			p, err := NewProvider(testConfig(srv.URL() + "/v1"))
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			_, err = p.SendCompletion(context.Background(), &providers.CompletionRequest{
				Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
			})
			if err == nil || !tt.check(err) {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestProvider_SendCompletion_EmptyMessages(t *testing.T) {
	p, err := NewProvider(testConfig("http://localhost"))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	_, err = p.SendCompletion(context.Background(), &providers.CompletionRequest{})
	var verr *providers.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "judge object passes through",
			raw:  `{"narration":"Dawn breaks."}`,
			want: `{"narration":"Dawn breaks."}`,
		},
		{
			name: "message content",
			raw:  `{"choices":[{"message":{"content":"hello"}}]}`,
			want: "hello",
		},
		{
			name: "reasoning content",
			raw:  `{"choices":[{"message":{"content":"","reasoning_content":"thought"}}]}`,
			want: "thought",
		},
		{
			name: "content parts",
			raw:  `{"choices":[{"message":{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}}]}`,
			want: "a\nb",
		},
		{
			name: "legacy text",
			raw:  `{"choices":[{"text":"legacy"}]}`,
			want: "legacy",
		},
		{
			name: "delta",
			raw:  `{"choices":[{"delta":{"content":"partial"}}]}`,
			want: "partial",
		},
		{
			name: "output_text",
			raw:  `{"output_text":"responses api"}`,
			want: "responses api",
		},
		{
			name: "gemini candidates",
			raw:  `{"candidates":[{"content":{"parts":[{"text":"gem"}]}}]}`,
			want: "gem",
		},
		{
			name: "event stream",
			raw:  "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\ndata: [DONE]\n",
			want: "Hello",
		},
		{
			name: "plain text",
			raw:  "just words",
			want: "just words",
		},
		{
			name:    "error payload",
			raw:     `{"error":{"message":"quota exceeded"}}`,
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "   ",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
