// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	sclog "github.com/ManuGH/streamcap/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// Holder holds the current configuration and reloads it when the file
// changes. Only hot fields (log level, denylist) take effect without a
// restart; listeners decide what to apply.
type Holder struct {
	mu      sync.RWMutex
	current Config
	loader  *Loader
	logger  zerolog.Logger

	// Debounce delays a reload after the last file event.
	Debounce time.Duration

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	listenersMu sync.RWMutex
	listeners   []chan<- Config
}

// NewHolder creates a holder with an initial config.
func NewHolder(initial Config, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   sclog.WithComponent("config"),
		Debounce: defaultDebounce,
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Clone(h.current)
}

// Reload loads and validates the file. On failure the old configuration is
// kept.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(old, next)
	h.notify(next)
	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the directory of the config file and reloads after
// writes settle. It is a no-op without a config file.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("config file watcher disabled (no config file)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// editors replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = watcher

	h.logger.Info().Str("event", "config.watcher_started").Str("path", path).Msg("watching config file for changes")
	h.wg.Add(1)
	go h.watchLoop(ctx, filepath.Clean(path))
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, path string) {
	defer h.wg.Done()
	defer func() { _ = h.watcher.Close() }()

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str("event", "config.file_changed").Str("op", event.Op.String()).Msg("config file changed")
			if debounce == nil {
				debounce = time.NewTimer(h.Debounce)
			} else {
				debounce.Reset(h.Debounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			if err := h.Reload(ctx); err != nil {
				h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic config reload failed")
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Wait blocks until the watcher goroutine has exited.
func (h *Holder) Wait() {
	h.wg.Wait()
}

// RegisterListener registers a channel that receives every successfully
// reloaded config. Sends never block; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg Config) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- Clone(cfg):
		default:
			h.logger.Warn().Str("event", "config.listener_full").Msg("config listener channel full, skipping notification")
		}
	}
}

// logChanges reports hot-reloaded fields and those that need a restart.
func (h *Holder) logChanges(old, next Config) {
	if old.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", old.LogLevel).Str("new", next.LogLevel).Msg("log level changed")
	}
	if !slices.Equal(old.Capture.Denylist, next.Capture.Denylist) {
		h.logger.Info().Strs("denylist", next.Capture.Denylist).Msg("capture denylist changed")
	}
	var restart []string
	if old.Listen != next.Listen {
		restart = append(restart, "listen")
	}
	if old.DataDir != next.DataDir {
		restart = append(restart, "dataDir")
	}
	if old.Browser != next.Browser {
		restart = append(restart, "browser")
	}
	if old.Schedule != next.Schedule {
		restart = append(restart, "schedule")
	}
	if old.Cache != next.Cache {
		restart = append(restart, "cache")
	}
	if old.Telemetry != next.Telemetry {
		restart = append(restart, "telemetry")
	}
	if len(restart) > 0 {
		h.logger.Warn().Strs("fields", restart).Msg("changed settings take effect after a restart")
	}
}
