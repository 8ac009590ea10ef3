// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/streamcap/internal/config"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/rs/zerolog"
)

// App owns the long-lived runtime lifecycle (watchers, reload wiring,
// schedule loop, session janitor) and the API server.
type App struct {
	logger       zerolog.Logger
	rt           *Runtime
	cfgHolder    *config.Holder
	reloadSignal os.Signal

	// Listener replaces the configured listen address when set.
	Listener net.Listener
}

// NewApp creates a new App orchestrator. cfgHolder may be nil.
func NewApp(rt *Runtime, cfgHolder *config.Holder) *App {
	return &App{
		logger:       log.WithComponent("daemon"),
		rt:           rt,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts every subsystem and blocks until ctx is cancelled or one of
// them fails. The runtime is shut down before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a.rt == nil {
		return ErrMissingRuntime
	}

	g, gctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(gctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		applyCh := make(chan config.Config, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})

		if a.reloadSignal != nil {
			g.Go(func() error {
				hupChan := make(chan os.Signal, 1)
				signal.Notify(hupChan, a.reloadSignal)
				defer signal.Stop(hupChan)

				for {
					select {
					case <-gctx.Done():
						return nil
					case <-hupChan:
						a.logger.Info().
							Str(log.FieldEvent, "config.reload_signal").
							Str("signal", a.reloadSignal.String()).
							Msg("received reload signal, reloading config")
						if err := a.cfgHolder.Reload(gctx); err != nil {
							a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
						}
					}
				}
			})
		}
	}

	g.Go(func() error { return a.rt.Scheduler.Run(gctx) })
	g.Go(func() error { return a.rt.Registry.Run(gctx) })
	g.Go(func() error {
		if a.Listener != nil {
			return a.rt.API.Serve(gctx, a.Listener)
		}
		return a.rt.API.ListenAndServe(gctx)
	})

	a.logger.Info().Str(log.FieldEvent, "daemon.started").Str("listen", a.rt.Config.Listen).Msg("streamcap running")
	err := g.Wait()
	if a.cfgHolder != nil {
		a.cfgHolder.Wait()
	}
	if serr := a.rt.Manager.Shutdown(ctx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// apply takes over the hot-reloadable settings.
func (a *App) apply(cfg config.Config) {
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		a.logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
	}
	a.rt.Classifier.SetDenylist(cfg.Capture.Denylist)
	a.logger.Info().Str(log.FieldEvent, "config.applied").Msg("applied reloaded settings")
}
