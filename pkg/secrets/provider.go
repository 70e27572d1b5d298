package secrets

import "context"

// Provider retrieves secrets by name.
type Provider interface {
	// Get returns the secret called name, or an error when it is unknown.
	Get(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs ("env", "file").
	Name() string
}

// Refresher is a Provider that can drop what it has cached.
type Refresher interface {
	Provider
	Refresh()
}
