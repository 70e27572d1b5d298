package providerfactory

import (
	"errors"
	"testing"

	"lycan-hq/arbiter/pkg/providers"
	"lycan-hq/arbiter/pkg/providers/anthropic"
	"lycan-hq/arbiter/pkg/providers/openai"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		wantType string
	}{
		{"default is openai", "", "openai"},
		{"openai", "openai", "openai"},
		{"claude", "claude", "anthropic"},
		{"anthropic alias", "Anthropic", "anthropic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(providers.ProviderConfig{
				Type:    tt.typ,
				BaseURL: "http://localhost:9",
				APIKey:  "key",
			})
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			defer p.Close()

			switch tt.wantType {
			case "openai":
				if _, ok := p.(*openai.Provider); !ok {
					t.Errorf("Expected *openai.Provider, got %T", p)
				}
			case "anthropic":
				if _, ok := p.(*anthropic.Provider); !ok {
					t.Errorf("Expected *anthropic.Provider, got %T", p)
				}
			}
			if p.GetName() != "judge" {
				t.Errorf("Expected default name judge, got %q", p.GetName())
			}
		})
	}
}

func TestNewProvider_UnsupportedType(t *testing.T) {
	_, err := NewProvider(providers.ProviderConfig{Type: "gemini", APIKey: "key"})
	var cerr *providers.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if cerr.Field != "provider" {
		t.Errorf("Expected field provider, got %q", cerr.Field)
	}
}

func TestNewProvider_WrapsAdapterError(t *testing.T) {
	_, err := NewProvider(providers.ProviderConfig{Type: "openai", BaseURL: "http://localhost:9"})
	var cerr *providers.ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "api_key" {
		t.Fatalf("Expected wrapped api_key ConfigError, got %v", err)
	}
}
