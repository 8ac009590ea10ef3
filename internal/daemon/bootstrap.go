// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the capture runtime together and owns its
// lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/streamcap/internal/api"
	"github.com/ManuGH/streamcap/internal/browser"
	"github.com/ManuGH/streamcap/internal/cache"
	"github.com/ManuGH/streamcap/internal/capture/admission"
	"github.com/ManuGH/streamcap/internal/capture/classify"
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/capture/registry"
	"github.com/ManuGH/streamcap/internal/capture/session"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/ManuGH/streamcap/internal/config"
	"github.com/ManuGH/streamcap/internal/download"
	"github.com/ManuGH/streamcap/internal/ffmpeg"
	"github.com/ManuGH/streamcap/internal/health"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/schedule"
	"github.com/ManuGH/streamcap/internal/telemetry"
)

// Overrides replace external collaborators, for tests.
type Overrides struct {
	Launcher browser.Launcher
	Runner   download.Runner
	Prober   classify.Prober
	Clock    clock.Clock
	// Skips Chrome profile handling when Launcher is set.
	Profile registry.ProfileClearer
}

// Runtime holds the wired components.
type Runtime struct {
	Config     config.Config
	Classifier *classify.Classifier
	Downloads  *download.Supervisor
	Registry   *registry.Registry
	Engine     *schedule.Engine
	Scheduler  *schedule.Scheduler
	Health     *health.Manager
	API        *api.Server
	Manager    *Manager
}

// Bootstrap builds every component from cfg. Resources acquired here are
// released by Runtime.Manager.Shutdown; on error the ones already acquired
// are released before returning.
func Bootstrap(ctx context.Context, cfg config.Config, version string, ov Overrides) (rt *Runtime, err error) {
	logger := log.WithComponent("bootstrap")
	mgr := NewManager(0)
	defer func() {
		if err != nil {
			_ = mgr.Shutdown(context.Background())
		}
	}()
	clk := clock.OrReal(ov.Clock)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "streamcap",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Protocol:       cfg.Telemetry.Protocol,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)

	probeCache, err := cache.New(cache.Options{
		Backend:         cfg.Cache.Backend,
		CleanupInterval: time.Minute,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		},
	}, log.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("probe cache: %w", err)
	}
	mgr.RegisterShutdownHook("cache", func(context.Context) error { return probeCache.Close() })

	launcher := ov.Launcher
	profile := ov.Profile
	if launcher == nil {
		prof := browser.NewProfile(cfg.Browser.ProfileDir)
		launcher = browser.NewChrome(browser.ChromeOptions{
			Binary:     cfg.Browser.Binary,
			Profile:    prof,
			DebugPort:  cfg.Browser.DebugPort,
			Headless:   cfg.Browser.Headless,
			NavTimeout: cfg.Browser.NavTimeout,
			KillGrace:  cfg.FFmpeg.KillGrace,
			Clock:      clk,
		})
		profile = prof
	}

	runner := ov.Runner
	if runner == nil {
		runner = download.ExecRunner{Exec: ffmpeg.NewExecutor(cfg.FFmpeg.Binary, log.WithComponent("ffmpeg"))}
	}
	downloads := download.NewSupervisor(download.Options{
		Runner:         runner,
		KillGrace:      cfg.FFmpeg.KillGrace,
		SampleInterval: cfg.FFmpeg.SampleInterval,
		Clock:          clk,
		WriteSidecar:   true,
	})

	var prober classify.Prober = ffmpeg.NewProber(cfg.FFmpeg.FFprobeBinary, cfg.Capture.ProbeTimeout)
	if ov.Prober != nil {
		prober = ov.Prober
	}
	classifier := classify.New(cfg.Capture.Denylist, clk)
	enricher := classify.NewEnricher(classify.EnricherOptions{
		Prober:   prober,
		Cache:    probeCache,
		CacheTTL: cfg.Cache.TTL,
		Logger:   log.WithComponent("classify.enricher"),
	})

	store, err := schedule.OpenStore(cfg.Schedule.Store.Backend, cfg.ScheduleStoreDir())
	if err != nil {
		return nil, fmt.Errorf("schedule store: %w", err)
	}
	mgr.RegisterShutdownHook("schedule-store", func(context.Context) error { return store.Close() })

	// the engine reports session outcomes, so it is created before the
	// registry and handed the launcher afterwards
	launchVia := &lateLauncher{}
	engine, err := schedule.NewEngine(ctx, schedule.Options{
		Store:    store,
		Launcher: launchVia,
		Clock:    clk,
	})
	if err != nil {
		return nil, err
	}

	reg := registry.New(registry.Options{
		Deps: session.Deps{
			Launcher:    launcher,
			Classifier:  classifier,
			Enricher:    enricher,
			Downloader:  downloads,
			Thumbnailer: ffmpeg.NewThumbnailer(cfg.FFmpeg.Binary),
			Clock:       clk,
		},
		Session: session.Config{
			MonitorTimeout: cfg.Capture.MonitorTimeout,
			SettleWindow:   cfg.Capture.SettleWindow,
			AutoCloseDelay: cfg.Capture.AutoCloseDelay,
			DownloadDir:    cfg.DownloadDir,
		},
		Admission: admission.NewController(admission.Limits{
			MaxLaunching: cfg.Capture.MaxLaunching,
			MaxOpen:      cfg.Capture.MaxOpen,
		}),
		GCGrace: cfg.Capture.GCGrace,
		Profile: profile,
		OnTransition: func(tr session.Transition) {
			if tr.Snapshot != nil && tr.Snapshot.ScheduleID != "" && tr.To.IsTerminal() {
				engine.ReportOutcome(context.Background(), tr.Snapshot.ScheduleID, tr.Snapshot)
			}
		},
	})
	launchVia.set(reg)
	mgr.RegisterShutdownHook("downloads", downloads.StopAll)
	mgr.RegisterShutdownHook("sessions", reg.Shutdown)

	sched := schedule.NewScheduler(engine, clk)
	sched.Tick = cfg.Schedule.Tick

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewDirChecker("data_dir", cfg.DataDir))
	hm.RegisterChecker(health.NewDirChecker("download_dir", cfg.DownloadDir))
	hm.RegisterChecker(health.NewLastRunChecker(sched.LastRun, 3*max(cfg.Schedule.Tick, schedule.DefaultTick)))
	if ov.Launcher == nil {
		hm.RegisterChecker(health.NewBinaryChecker("browser", cfg.Browser.Binary))
	}
	if ov.Runner == nil {
		hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Binary))
	}
	if rc, ok := probeCache.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewFuncChecker("probe_cache", health.StatusDegraded, rc.HealthCheck))
	}

	srv := api.New(api.Config{
		Listen:         cfg.Listen,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RateLimitRPM:   cfg.API.RateLimitRPM,
		Tracing:        cfg.Telemetry.Enabled,
	}, api.Deps{
		Sessions:        reg,
		Schedules:       engine,
		Health:          hm.ServeHealth,
		Ready:           hm.ServeReady,
		ScheduleChanged: sched.Kick,
	})

	logger.Info().
		Str("store", cfg.Schedule.Store.Backend).
		Str("cache", cfg.Cache.Backend).
		Int("max_launching", cfg.Capture.MaxLaunching).
		Msg("runtime assembled")

	return &Runtime{
		Config:     cfg,
		Classifier: classifier,
		Downloads:  downloads,
		Registry:   reg,
		Engine:     engine,
		Scheduler:  sched,
		Health:     hm,
		API:        srv,
		Manager:    mgr,
	}, nil
}

var errNoLauncher = errors.New("session registry not ready")

// lateLauncher forwards scheduled launches to the registry once it exists.
type lateLauncher struct {
	reg atomic.Pointer[registry.Registry]
}

func (l *lateLauncher) set(reg *registry.Registry) { l.reg.Store(reg) }

func (l *lateLauncher) Launch(ctx context.Context, req model.LaunchRequest) (*model.Snapshot, error) {
	reg := l.reg.Load()
	if reg == nil {
		return nil, errNoLauncher
	}
	return reg.Launch(ctx, req)
}
