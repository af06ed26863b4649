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
const DefaultDebounceInterval = 250 * time.Millisecond

// Watcher reloads a Holder when its configuration file changes.
//
// The parent directory is watched rather than the file itself, so editors
// that replace the file by rename and Kubernetes ConfigMap symlink swaps are
// both seen.
type Watcher struct {
	holder   *Holder
	watcher  *fsnotify.Watcher
	interval time.Duration
	logger   *slog.Logger

	// onReload, when set, is called after every reload attempt.
	onReload func(error)

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewWatcher creates a watcher for holder's file. interval <= 0 uses
// DefaultDebounceInterval.
func NewWatcher(holder *Holder, interval time.Duration) (*Watcher, error) {
	if holder.Path() == "" {
		return nil, fmt.Errorf("holder has no configuration file to watch")
	}
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		holder:   holder,
		watcher:  fw,
		interval: interval,
		logger:   slog.Default().With("component", "config.watcher"),
	}, nil
}

// OnReload registers fn to be called with the result of each reload.
// It must be called before Watch.
func (w *Watcher) OnReload(fn func(error)) {
	w.onReload = fn
}

// Watch blocks until ctx is cancelled, reloading the holder after changes.
func (w *Watcher) Watch(ctx context.Context) error {
	path, err := filepath.Abs(w.holder.Path())
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", w.holder.Path(), err)
	}
	dir := filepath.Dir(path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	defer w.close()

	w.logger.Info("config watcher started",
		"path", path,
		"debounce_ms", w.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op == fsnotify.Chmod || !w.relevant(path, event.Name) {
				continue
			}
			w.logger.Debug("config file event", "path", event.Name, "op", event.Op.String())
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// relevant reports whether an event on name can change the file at path.
// ConfigMap mounts swap a "..data" symlink in the same directory.
func (w *Watcher) relevant(path, name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == path || filepath.Base(abs) == "..data"
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	err := w.holder.Reload()
	if err != nil {
		w.logger.Error("config reload failed, keeping previous configuration", "error", err)
	} else {
		w.logger.Info("config reloaded", "path", w.holder.Path())
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("failed to close fsnotify watcher", "error", err)
	}
}
