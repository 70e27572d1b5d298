package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secrets in the environment.
const DefaultEnvPrefix = "ARBITER_SECRET_"

// EnvProvider reads secrets from environment variables. The secret
// "openai-key" is read from PREFIX + "OPENAI_KEY".
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a provider. An empty prefix means DefaultEnvPrefix.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{prefix: prefix}
}

// Get implements Provider.
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	key := p.EnvVar(name)
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s (env %s)", ErrNotFound, name, key)
	}
	return value, nil
}

// EnvVar returns the variable a secret is read from.
func (p *EnvProvider) EnvVar(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_", "/", "_")
	return p.prefix + strings.ToUpper(r.Replace(name))
}

// Name implements Provider.
func (p *EnvProvider) Name() string { return "env" }
