package daemon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/taskescrow/internal/config"
	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/eventstore"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
	"git.home.luguber.info/inful/taskescrow/internal/metrics"
	"git.home.luguber.info/inful/taskescrow/internal/notify"
	"git.home.luguber.info/inful/taskescrow/internal/storage"
)

// Runtime holds the components shared by the daemon and the one-shot CLI
// commands: the record store, the registry and its observers.
type Runtime struct {
	Config     *config.Config
	Store      storage.Store
	Registry   *escrow.Registry
	Events     *eventstore.SQLiteStore
	Audit      *eventstore.AuditLog
	Publisher  *notify.Publisher
	Prometheus *prometheus.Registry
}

// OpenRuntime opens the configured store and wires the registry with its
// audit log, NATS publisher and Prometheus recorder as configured.
func OpenRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	rt.Store = store

	opts := []escrow.Option{escrow.WithLogger(logger)}

	if cfg.Metrics.Enabled {
		rt.Prometheus = prometheus.NewRegistry()
		rt.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, escrow.WithRecorder(metrics.NewPrometheusRecorder(rt.Prometheus)))
	}

	if cfg.Events.AuditPath != "" {
		events, err := eventstore.NewSQLiteStore(cfg.Events.AuditPath)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.Events = events
		projection := eventstore.NewLedgerProjection(events, 100)
		if err := projection.Rebuild(ctx); err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.Audit = eventstore.NewAuditLog(events, projection)
		opts = append(opts, escrow.WithObserver("audit", rt.Audit))
		logger.Info("Audit log opened",
			slog.String("path", cfg.Events.AuditPath),
			slog.Int("open", projection.Counts().Open),
			slog.Int("completed", projection.Counts().Completed))
	}

	if cfg.Events.NATSURL != "" {
		pub, err := notify.Connect(cfg.Events.NATSURL, cfg.Events.NATSSubject)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.Publisher = pub
		opts = append(opts, escrow.WithObserver("nats", pub))
	}

	rt.Registry = escrow.NewRegistry(store, opts...)
	logger.Debug("Runtime ready",
		logfields.Driver(string(cfg.Store.Driver)),
		logfields.ProgramID(rt.Registry.Program().String()))
	return rt, nil
}

// Close releases every component that was opened.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Publisher != nil {
		rt.Publisher.Close()
	}
	if rt.Events != nil {
		errs = append(errs, rt.Events.Close())
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	return errors.Join(errs...)
}
