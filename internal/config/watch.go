package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/laraflow/laraflow/internal/errors"
)

// Holder publishes the live configuration to long-running components.
type Holder struct {
	cur atomic.Pointer[Config]
}

// NewHolder creates a holder with an initial configuration.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.cur.Store(cfg)
	return h
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Set replaces the current configuration.
func (h *Holder) Set(cfg *Config) {
	h.cur.Store(cfg)
}

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes on disk. Invalid files are
// logged and ignored so the last good configuration stays live.
type Watcher struct {
	Path     string
	Holder   *Holder
	Debounce time.Duration
	Logger   *slog.Logger
	// OnReload runs after a valid configuration has been published.
	OnReload func(*Config)
}

// Watch blocks until ctx is cancelled. The parent directory is watched so
// editors that replace the file by rename are handled.
func (w *Watcher) Watch(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer fw.Close()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", filepath.Dir(target))
	}
	logger.Info("config watcher started", "path", target)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("config watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() { w.reload(logger) })
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(logger *slog.Logger) {
	cfg, err := Load(w.Path)
	if err != nil {
		logger.Error("config reload failed", "path", w.Path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config reload rejected", "path", w.Path, "error", err)
		return
	}

	w.Holder.Set(cfg)
	logger.Info("config reloaded", "path", w.Path)
	if w.OnReload != nil {
		w.OnReload(cfg)
	}
}

// Reload loads the file immediately, as if a change had been observed.
func (w *Watcher) Reload() {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w.reload(logger)
}
