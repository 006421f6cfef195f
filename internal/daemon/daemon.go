// Package daemon runs the escrow registry as a long-lived service: the HTTP
// API, the periodic ledger statistics job and the configuration watcher.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/taskescrow/internal/api"
	"git.home.luguber.info/inful/taskescrow/internal/config"
	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
	"git.home.luguber.info/inful/taskescrow/internal/metrics"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Daemon represents the main daemon service
type Daemon struct {
	config         *config.Config
	configFilePath string
	runtime        *Runtime
	level          *slog.LevelVar
	status         atomic.Value // Status
	startTime      time.Time
	mu             sync.RWMutex

	apiServer     *api.Server
	scheduler     *Scheduler
	configWatcher *ConfigWatcher

	lastStats   escrow.Stats
	lastStatsAt time.Time
}

// New creates a daemon around an opened runtime. configPath may be empty,
// which disables config hot reload. level, when set, is adjusted on reload.
func New(cfg *config.Config, configPath string, rt *Runtime, level *slog.LevelVar) (*Daemon, error) {
	if cfg == nil || rt == nil {
		return nil, ferrors.DaemonError("daemon requires a config and a runtime").Build()
	}
	d := &Daemon{
		config:         cfg,
		configFilePath: configPath,
		runtime:        rt,
		level:          level,
	}
	d.status.Store(StatusStopped)

	opts := []api.Option{api.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)}
	if rt.Audit != nil {
		opts = append(opts, api.WithAuditLog(rt.Audit))
	}
	if cfg.Metrics.Enabled && rt.Prometheus != nil {
		opts = append(opts, api.WithMetricsHandler(cfg.Metrics.Path, metrics.HTTPHandler(rt.Prometheus)))
	}
	d.apiServer = api.NewServer(cfg.HTTP.Addr, rt.Registry, opts...)

	return d, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return d.status.Load().(Status)
}

// LastStats returns the most recent ledger statistics and when they were taken.
func (d *Daemon) LastStats() (escrow.Stats, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastStats, d.lastStatsAt
}

// Run starts every component and blocks until ctx is cancelled or a
// component fails, then shuts everything down.
func (d *Daemon) Run(ctx context.Context) error {
	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	scheduler, err := NewScheduler()
	if err != nil {
		d.status.Store(StatusError)
		return err
	}
	d.scheduler = scheduler
	if _, err := scheduler.ScheduleEvery("ledger-stats", d.config.Stats.Interval, func() { d.refreshStats(ctx) }); err != nil {
		_ = scheduler.Stop(ctx)
		d.status.Store(StatusError)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if d.configFilePath != "" {
		watcher, err := NewConfigWatcher(d.configFilePath, d.applyConfig)
		if err != nil {
			_ = scheduler.Stop(ctx)
			d.status.Store(StatusError)
			return err
		}
		if err := watcher.Start(gctx); err != nil {
			_ = watcher.Stop()
			_ = scheduler.Stop(ctx)
			d.status.Store(StatusError)
			return err
		}
		d.configWatcher = watcher
	}

	scheduler.Start()

	g.Go(func() error {
		slog.Info("API server listening", logfields.Addr(d.config.HTTP.Addr))
		if err := d.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return ferrors.DaemonError("API server failed").WithCause(err).WithContext("addr", d.config.HTTP.Addr).Build()
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		d.status.Store(StatusStopping)
		return d.shutdown()
	})

	d.status.Store(StatusRunning)
	slog.Info("Daemon started",
		logfields.ProgramID(d.runtime.Registry.Program().String()),
		logfields.Driver(string(d.config.Store.Driver)))

	err = g.Wait()
	if err != nil {
		d.status.Store(StatusError)
	} else {
		d.status.Store(StatusStopped)
	}
	slog.Info("Daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return err
}

func (d *Daemon) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.config.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := d.apiServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, ferrors.DaemonError("API server shutdown failed").WithCause(err).Build())
	}
	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(); err != nil {
			slog.Warn("Config watcher stop failed", logfields.Error(err))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(shutdownCtx); err != nil {
			slog.Warn("Scheduler stop failed", logfields.Error(err))
		}
	}
	return errors.Join(errs...)
}

// refreshStats recounts records and refreshes the gauges.
func (d *Daemon) refreshStats(ctx context.Context) {
	start := time.Now()
	st, err := d.runtime.Registry.Stats(ctx)
	if err != nil {
		slog.Warn("Ledger stats refresh failed", logfields.Error(err))
		return
	}

	d.mu.Lock()
	d.lastStats = st
	d.lastStatsAt = time.Now()
	d.mu.Unlock()

	slog.Debug("Ledger stats refreshed",
		slog.Int("open", st.Open),
		slog.Int("completed", st.Completed),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
}

// applyConfig applies the reloadable subset of a new configuration (log
// level). Other changes are logged and need a restart.
func (d *Daemon) applyConfig(_ context.Context, next *config.Config) error {
	d.mu.Lock()
	current := d.config
	d.mu.Unlock()

	if d.level != nil && next.Logging.Level != current.Logging.Level {
		d.level.Set(next.Logging.Level.SlogLevel())
		slog.Info("Log level changed", slog.String("level", string(next.Logging.Level)))
	}
	if next.Store != current.Store || next.HTTP.Addr != current.HTTP.Addr || next.Events != current.Events {
		slog.Warn("Store, HTTP or event settings changed; restart required for them to take effect")
	}

	d.mu.Lock()
	d.config.Logging = next.Logging
	d.mu.Unlock()
	return nil
}
