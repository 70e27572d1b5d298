package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider reads each secret from its own file in a directory. Files
// must be mode 0600 or 0400.
//
// # Thread Safety
//
// Get, Refresh and Close are safe for concurrent use.
type FileProvider struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	values   map[string]string
	onChange []func()

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider opens dir. With watch set, writes to the directory drop
// the cached values and notify OnChange subscribers.
func NewFileProvider(dir string, watch bool) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", dir)
	}

	p := &FileProvider{
		dir:    dir,
		logger: slog.Default().With("component", "secrets.file"),
		values: make(map[string]string),
		done:   make(chan struct{}),
	}
	if !watch {
		return p, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch secrets directory: %w", err)
	}
	p.watcher = w
	go p.watch()
	p.logger.Info("watching secrets directory", "path", dir)
	return p, nil
}

// Get implements Provider.
func (p *FileProvider) Get(_ context.Context, name string) (string, error) {
	p.mu.RLock()
	value, ok := p.values[name]
	p.mu.RUnlock()
	if ok {
		return value, nil
	}

	path, err := p.path(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s (file %s)", ErrNotFound, name, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat secret %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret %s is not a regular file", name)
	}
	if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, perm)
	}

	// #nosec G304 - path is confined to dir
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", name, err)
	}
	value = strings.TrimSpace(string(data))

	p.mu.Lock()
	p.values[name] = value
	p.mu.Unlock()
	return value, nil
}

// path maps a secret name into dir, rejecting names that escape it.
func (p *FileProvider) path(name string) (string, error) {
	base, err := filepath.Abs(p.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secrets directory: %w", err)
	}
	path := filepath.Join(base, name)
	if !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	return path, nil
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file" }

// OnChange subscribes fn to directory changes. Only called when watching.
func (p *FileProvider) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = append(p.onChange, fn)
	p.mu.Unlock()
}

// Refresh drops every cached value.
func (p *FileProvider) Refresh() {
	p.mu.Lock()
	p.values = make(map[string]string)
	subscribers := append([]func(){}, p.onChange...)
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn()
	}
}

// Close stops watching.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	close(p.done)
	return p.watcher.Close()
}

func (p *FileProvider) watch() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.logger.Debug("secret file changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			p.Refresh()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("secrets watcher error", "error", err)

		case <-p.done:
			return
		}
	}
}
