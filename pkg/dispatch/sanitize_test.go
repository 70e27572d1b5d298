package dispatch

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSanitizer_Text(t *testing.T) {
	s := NewSanitizer(20, 0)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "I trust Bob", "I trust Bob"},
		{"banned word", "the password is", "the *** is"},
		{"upper case banned word", "MY SECRET", "MY ***"},
		{"key scrubbed", "key sk-abc123", "key sk-***"},
		{"capped", strings.Repeat("a", 30), strings.Repeat("a", 20)},
		{"cap counts runes", strings.Repeat("狼", 25), strings.Repeat("狼", 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Text(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSanitizer_PayloadMasksKeys(t *testing.T) {
	s := NewSanitizer(0, 0)

	out := s.Payload(map[string]any{
		"seat": "p1",
		"agent_config": map[string]any{
			"api_key": "sk-live",
			"nested":  []any{map[string]any{"Token": "t0k"}},
		},
	})

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %q: %v", out, err)
	}
	cfg := decoded["agent_config"].(map[string]any)
	if cfg["api_key"] != "***" {
		t.Errorf("Expected api_key masked, got %v", cfg["api_key"])
	}
	nested := cfg["nested"].([]any)[0].(map[string]any)
	if nested["Token"] != "***" {
		t.Errorf("Expected nested token masked, got %v", nested["Token"])
	}
	if decoded["seat"] != "p1" {
		t.Errorf("Expected seat kept, got %v", decoded["seat"])
	}
}

func TestSanitizer_PayloadTruncates(t *testing.T) {
	s := NewSanitizer(0, 50)

	out := s.Payload(map[string]string{"speech": strings.Repeat("x", 200)})

	var decoded map[string]string
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %q: %v", out, err)
	}
	truncated, ok := decoded["truncated"]
	if !ok {
		t.Fatalf("Expected truncated wrapper, got %q", out)
	}
	if !strings.HasSuffix(truncated, "...") || len(truncated) != 53 {
		t.Errorf("Expected 50 chars plus ellipsis, got %d: %q", len(truncated), truncated)
	}
}
