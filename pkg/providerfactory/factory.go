// Package providerfactory builds the judge's chat provider from its
// configuration.
package providerfactory

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"lycan-hq/arbiter/pkg/providers"
	"lycan-hq/arbiter/pkg/providers/anthropic"
	"lycan-hq/arbiter/pkg/providers/openai"
)

type constructor func(providers.ProviderConfig) (providers.Provider, error)

// constructors is keyed by the judge.provider values the config accepts.
// An empty value means openai, which covers any OpenAI-compatible server.
var constructors = map[string]constructor{
	"openai":    func(c providers.ProviderConfig) (providers.Provider, error) { return openai.NewProvider(c) },
	"claude":    func(c providers.ProviderConfig) (providers.Provider, error) { return anthropic.NewProvider(c) },
	"anthropic": func(c providers.ProviderConfig) (providers.Provider, error) { return anthropic.NewProvider(c) },
}

// NewProvider returns the provider for config.Type, named "judge" unless
// config says otherwise.
func NewProvider(config providers.ProviderConfig) (providers.Provider, error) {
	kind := strings.ToLower(strings.TrimSpace(config.Type))
	if kind == "" {
		kind = "openai"
	}
	if config.Name == "" {
		config.Name = "judge"
	}
	config.Type = kind

	build, ok := constructors[kind]
	if !ok {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "provider",
			Message:  fmt.Sprintf("%q is not one of %s", kind, strings.Join(slices.Sorted(maps.Keys(constructors)), ", ")),
		}
	}

	p, err := build(config)
	if err != nil {
		return nil, fmt.Errorf("judge provider %s: %w", config.Name, err)
	}
	slog.Debug("judge provider ready", "name", config.Name, "type", kind, "base_url", config.BaseURL)
	return p, nil
}
