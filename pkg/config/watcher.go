package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a changed file is reloaded.
const DefaultDebounceInterval = 200 * time.Millisecond

// ReloadFunc receives a successfully reloaded configuration together with
// the seats that were added or changed since the previous one.
type ReloadFunc func(cfg *Config, changed []SeatConfig)

// FileWatcher reloads the configuration file when it changes and hands the
// changed seat registrations to a callback, so backends can be swapped while
// a game runs. Rapid writes are debounced into one reload.
//
// # Thread Safety
//
// Watch runs on the caller's goroutine; the callback runs on a timer
// goroutine, never concurrently with itself.
type FileWatcher struct {
	path     string
	interval time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	current *Config
	running bool
	stopped bool
	reload  sync.Mutex
}

// NewFileWatcher watches the configuration file at path. current is the
// configuration already in use; seat changes are computed against it.
func NewFileWatcher(path string, current *Config, interval time.Duration) (*FileWatcher, error) {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		path:     filepath.Clean(path),
		interval: interval,
		watcher:  w,
		current:  current,
		logger:   slog.Default().With("component", "config.watcher"),
	}, nil
}

// Watch blocks until ctx is cancelled or Close is called. Editors often
// replace a file instead of writing it, so the parent directory is watched
// and events are filtered by file name.
func (fw *FileWatcher) Watch(ctx context.Context, onReload ReloadFunc) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", fw.path, err)
	}
	fw.logger.Info("config watcher started", "path", fw.path, "debounce", fw.interval)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != fw.path || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			fw.logger.Debug("config file event", "op", event.Op.String())
			fw.trigger(onReload)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Error("config watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) trigger(onReload ReloadFunc) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return
	}
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.interval, func() { fw.apply(onReload) })
}

func (fw *FileWatcher) apply(onReload ReloadFunc) {
	fw.reload.Lock()
	defer fw.reload.Unlock()

	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return
	}
	previous := fw.current
	fw.mu.Unlock()

	cfg, err := Reload(fw.path)
	if err != nil {
		fw.logger.Error("config reload failed, keeping current configuration", "error", err)
		return
	}

	fw.mu.Lock()
	fw.current = cfg
	fw.mu.Unlock()

	changed := ChangedSeats(previous, cfg)
	fw.logger.Info("config reloaded", "changed_seats", len(changed))
	if onReload != nil {
		onReload(cfg, changed)
	}
}

// Close stops the watcher and cancels a pending reload.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	fw.stopped = true
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()
	return fw.watcher.Close()
}

// ChangedSeats returns the seats in next that are new or differ from their
// entry in previous, in next's order.
func ChangedSeats(previous, next *Config) []SeatConfig {
	if next == nil {
		return nil
	}
	old := make(map[string]SeatConfig)
	if previous != nil {
		for _, seat := range previous.Seats {
			old[seat.ID] = seat
		}
	}
	var changed []SeatConfig
	for _, seat := range next.Seats {
		if prev, ok := old[seat.ID]; ok && prev == seat {
			continue
		}
		changed = append(changed, seat)
	}
	return changed
}
