package config

import (
	"fmt"
	"sync/atomic"
)

// current is the configuration the running process acts on. Commands publish
// it once after loading and the file watcher replaces it on every valid
// reload.
var current atomic.Pointer[Config]

// Current returns the published configuration, or nil before Publish.
func Current() *Config {
	return current.Load()
}

// Publish makes cfg current and returns the configuration it replaced.
func Publish(cfg *Config) *Config {
	return current.Swap(cfg)
}

// Reload loads path with environment overrides and publishes the result.
// An invalid file leaves the current configuration in place.
func Reload(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	Publish(cfg)
	return cfg, nil
}
