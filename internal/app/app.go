package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"toastd/internal/announce"
	"toastd/internal/config"
	"toastd/internal/eventbus"
	"toastd/internal/history"
	"toastd/internal/observability/debug"
	"toastd/internal/render"
	"toastd/internal/render/desktop"
	"toastd/internal/render/logsink"
	"toastd/internal/render/telegram"
	rtsup "toastd/internal/runtime/supervisor"
	"toastd/internal/storage"
	"toastd/internal/toast"
	"toastd/internal/unitwatch"
	logx "toastd/pkg/logx"
)

// App owns the controller and everything that feeds or mirrors it.
type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	reg  *prometheus.Registry

	ctrl     *toast.Controller
	store    storage.Store
	recorder *history.Recorder
	announce *announce.Service
	debug    *debug.Service

	desktopSrv desktop.Server
	tgClient   *telegram.Client
	surfaces   []surfaceRunner

	units   *unitwatch.Watcher
	unitsSD unitwatch.Systemd
}

type surfaceRunner struct {
	name string
	run  func(ctx context.Context) error
}

// NewApp loads the config and builds every component. Nothing runs until
// Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfgm, cfg)
}

func newApp(cfgm *config.ConfigManager, cfg *config.Config) (*App, error) {
	settings, err := cfg.Toasts.Resolve()
	if err != nil {
		return nil, err
	}
	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := eventbus.New()
	ctrl := toast.New(
		toast.WithLogger(log.With(logx.String("comp", "toast"))),
		toast.WithBus(bus),
		toast.WithMetrics(toast.NewMetrics(reg)),
		toast.WithTiming(settings.Timing),
		toast.WithMaxVisible(settings.MaxVisible),
		toast.WithAppearance(settings.Appearance),
	)

	a := &App{
		cfgPath: cfgm.Path(),
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		reg:     reg,
		ctrl:    ctrl,
	}

	// Storage (optional)
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, a.abort(err)
	}
	if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, a.abort(err)
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}
	rate := 0
	if cfg.Storage != nil {
		rate = cfg.Storage.RatePerSec
	}
	a.recorder = history.New(a.store,
		history.WithLogger(log.With(logx.String("comp", "history"))),
		history.WithRate(rate),
	)

	a.announce = announce.New(ctrl, log.With(logx.String("comp", "announce")))
	defs, err := config.Defs(cfg.Announcements)
	if err != nil {
		return nil, a.abort(err)
	}
	if err := a.announce.Apply(defs); err != nil {
		return nil, a.abort(err)
	}

	dcfg, err := mapDebugConfig(cfg)
	if err != nil {
		return nil, a.abort(err)
	}
	a.debug = debug.New(dcfg, debug.Sources{
		Toasts:   ctrl,
		History:  a.recorder,
		Gatherer: reg,
	}, log.With(logx.String("comp", "debug")))

	if err := a.buildSurfaces(cfg); err != nil {
		return nil, a.abort(err)
	}
	return a, nil
}

// abort releases what newApp opened before failing.
func (a *App) abort(err error) error {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.desktopSrv != nil {
		_ = a.desktopSrv.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// buildSurfaces wires the configured mirrors. A desktop session bus that is
// missing is not fatal; the log sink always runs.
func (a *App) buildSurfaces(cfg *config.Config) error {
	a.surfaces = append(a.surfaces, surfaceRunner{
		name: "surface.log",
		run: func(ctx context.Context) error {
			return render.Run(ctx, a.ctrl, logsink.New(a.log), a.log)
		},
	})

	if cfg.Desktop.Enabled {
		srv, err := desktop.Dial()
		if err != nil {
			a.log.Warn("desktop notifications unavailable", logx.Err(err))
		} else {
			a.desktopSrv = srv
			ds := desktop.New(srv, a.ctrl, mapDesktopOptions(cfg), a.log)
			a.surfaces = append(a.surfaces, surfaceRunner{name: "surface.desktop", run: ds.Run})
		}
	}

	if cfg.Telegram.Enabled {
		tcfg, err := mapTelegramConfig(cfg)
		if err != nil {
			return err
		}
		client, err := telegram.Dial(tcfg, a.log)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		a.tgClient = client
		ts := telegram.NewSurface(client, a.ctrl, tcfg.ChatID, tcfg.RatePerSec, a.log)
		a.surfaces = append(a.surfaces,
			surfaceRunner{name: "surface.telegram", run: ts.Run},
			surfaceRunner{name: "telegram.poll", run: func(ctx context.Context) error { return client.Serve(ctx, ts) }},
		)
	}
	return nil
}

func (a *App) Controller() *toast.Controller { return a.ctrl }

func (a *App) Recorder() *history.Recorder { return a.recorder }

func (a *App) Registry() *prometheus.Registry { return a.reg }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log)
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapDebugConfig(cfg); err != nil {
			return err
		}
		if _, err := mapTelegramConfig(cfg); err != nil {
			return err
		}
		_, err := mapUnitsConfig(cfg)
		return err
	})

	if err := a.ctrl.Start(a.sup.Context()); err != nil {
		return err
	}

	// Subscribe before anything can show a toast so no lifecycle event is missed.
	events, unsub := a.bus.Subscribe(256, history.Types...)
	a.sup.Go0("history.record", func(c context.Context) {
		defer unsub()
		a.recorder.Run(c, events)
	})

	for _, s := range a.surfaces {
		a.sup.Go(s.name, s.run)
	}

	a.announce.Start(a.sup.Context())
	a.debug.Start(a.sup.Context())

	cfg := a.cfgm.Get()
	if cfg.Units.Enabled {
		a.startUnits(cfg)
	}

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Int("surfaces", len(a.surfaces)),
		logx.Int("max_visible", a.ctrl.MaxVisible()),
		logx.Bool("storage", a.store != nil),
	)
	return nil
}

// startUnits connects to systemd and starts the watcher. Failure to reach the
// system bus is logged, not fatal.
func (a *App) startUnits(cfg *config.Config) {
	ucfg, err := mapUnitsConfig(cfg)
	if err != nil {
		a.log.Warn("invalid units config", logx.Err(err))
		return
	}
	cctx, cancel := context.WithTimeout(a.sup.Context(), 5*time.Second)
	sd, err := unitwatch.Connect(cctx)
	cancel()
	if err != nil {
		a.log.Warn("unit watcher unavailable", logx.Err(err))
		return
	}
	a.unitsSD = sd
	a.units = unitwatch.New(sd, a.ctrl, ucfg, a.log)
	a.sup.Go("units.watch", a.units.Run)
}

// reloadLoop is the hot reload config fan-out.
func (a *App) reloadLoop(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			a.apply(c, lastApplied, newCfg)
			lastApplied = newCfg

			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Info("config reloaded (no changes)")
			}
		}
	}
}

// apply pushes the hot-reloadable parts of newCfg into the running
// components.
func (a *App) apply(c context.Context, oldCfg, newCfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(newCfg))

	if settings, err := newCfg.Toasts.Resolve(); err != nil {
		a.log.Warn("invalid toasts config; keeping previous", logx.Err(err))
	} else {
		a.ctrl.SetMaxVisibleToasts(settings.MaxVisible)
		a.ctrl.SetPosition(settings.Appearance.Position)
		a.ctrl.SetAnimation(settings.Appearance.Animation)
		a.ctrl.SetTheme(settings.Appearance.Theme)
	}

	if defs, err := config.Defs(newCfg.Announcements); err != nil {
		a.log.Warn("invalid announcements; keeping previous", logx.Err(err))
	} else if err := a.announce.Apply(defs); err != nil {
		a.log.Warn("announcements apply failed", logx.Err(err))
	}

	if dcfg, err := mapDebugConfig(newCfg); err != nil {
		a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
	} else {
		a.debug.Reconfigure(c, dcfg)
	}

	switch {
	case a.units != nil && newCfg.Units.Enabled:
		if ucfg, err := mapUnitsConfig(newCfg); err != nil {
			a.log.Warn("invalid units config; keeping previous", logx.Err(err))
		} else {
			a.units.Apply(ucfg)
		}
	case a.units == nil && newCfg.Units.Enabled:
		a.startUnits(newCfg)
	case a.units != nil && !newCfg.Units.Enabled:
		// An empty name list leaves the watcher idle until units are re-enabled.
		a.units.Apply(unitwatch.Config{})
		a.log.Info("unit watcher disabled via config")
	}

	for _, w := range restartOnly(oldCfg, newCfg) {
		a.log.Warn(w + " config changed; restart required for changes to take effect")
	}
}

// restartOnly names the changed sections that are only read at startup.
func restartOnly(oldCfg, newCfg *config.Config) []string {
	var out []string
	if oldCfg == nil || newCfg == nil {
		return out
	}
	var oS, nS config.StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		out = append(out, "storage")
	}
	if oldCfg.Toasts.Timing != newCfg.Toasts.Timing || oldCfg.Toasts.DefaultTimeout != newCfg.Toasts.DefaultTimeout {
		out = append(out, "toasts.timing")
	}
	if oldCfg.Desktop != newCfg.Desktop {
		out = append(out, "desktop")
	}
	if oldCfg.Telegram != newCfg.Telegram {
		out = append(out, "telegram")
	}
	return out
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Surfaces close their mirrors on cancel, so they must see it before the
	// controller stops.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Producers first, then the controller, then the sinks it feeds.
	step("announce", 2*time.Second, func(c context.Context) error { a.announce.Stop(c); return nil })
	step("debug", 1*time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	step("supervisor", 4*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("controller", 2*time.Second, a.ctrl.Stop)
	step("desktop", 1*time.Second, func(context.Context) error {
		if a.desktopSrv != nil {
			return a.desktopSrv.Close()
		}
		return nil
	})
	step("units", 1*time.Second, func(context.Context) error {
		if a.unitsSD != nil {
			a.unitsSD.Close()
		}
		return nil
	})
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.String("reason", string(reason)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
