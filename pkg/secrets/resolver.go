package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when no provider knows a secret.
var ErrNotFound = errors.New("secret not found")

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return refPattern.MatchString(s)
}

// Resolver looks secrets up in its providers, first match wins.
type Resolver struct {
	providers []Provider
	cache     *cache
	logger    *slog.Logger
}

// NewResolver creates a resolver over providers. Values are cached for
// cacheTTL; zero disables caching. A watched FileProvider clears the cache
// when its directory changes.
func NewResolver(cacheTTL time.Duration, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: providers,
		cache:     newCache(cacheTTL),
		logger:    slog.Default().With("component", "secrets"),
	}
	for _, p := range providers {
		if fp, ok := p.(*FileProvider); ok {
			fp.OnChange(r.cache.clear)
		}
	}
	return r
}

// Get returns the secret called name.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	if value, ok := r.cache.get(name); ok {
		return value, nil
	}

	var errs []error
	for _, p := range r.providers {
		value, err := p.Get(ctx, name)
		if err == nil {
			r.cache.set(name, value)
			r.logger.Debug("secret resolved", "name", redactName(name), "provider", p.Name())
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("failed to resolve secret %q: %w", name, errors.Join(errs...))
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Expand replaces every ${secret:name} reference in s. Unresolvable
// references are left in place and reported together.
func (r *Resolver) Expand(ctx context.Context, s string) (string, error) {
	if !HasReference(s) {
		return s, nil
	}
	var failed []string
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(refPattern.FindStringSubmatch(match)[1])
		value, err := r.Get(ctx, name)
		if err != nil {
			failed = append(failed, name)
			errs = append(errs, err)
			return match
		}
		return value
	})
	if len(errs) > 0 {
		return out, fmt.Errorf("unresolved secrets %v: %w", failed, errors.Join(errs...))
	}
	return out, nil
}

// Refresh drops cached values in the resolver and its providers.
func (r *Resolver) Refresh() {
	r.cache.clear()
	for _, p := range r.providers {
		if rp, ok := p.(Refresher); ok {
			rp.Refresh()
		}
	}
}

// redactName shortens a secret name for logs.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
