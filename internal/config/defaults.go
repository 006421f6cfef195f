package config

import "time"

const (
	DefaultHTTPAddr      = ":8080"
	DefaultMetricsPath   = "/metrics"
	DefaultSQLitePath    = "./taskescrow.db"
	DefaultNATSBucket    = "task_escrow"
	DefaultNATSSubject   = "taskescrow.events"
	DefaultNATSTimeout   = 5 * time.Second
	DefaultStatsInterval = time.Minute

	defaultRetryInitial    = 10 * time.Millisecond
	defaultRetryMax        = 500 * time.Millisecond
	defaultRetryMaxRetries = 5
)

// applyDefaults fills zero values and normalizes enum fields. Unknown enum
// values are left in place so Validate can report them.
func applyDefaults(cfg *Config) error {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverMemory
	} else if d, err := storeDriverNormalizer.NormalizeWithError(string(cfg.Store.Driver)); err == nil {
		cfg.Store.Driver = d
	}
	if cfg.Store.Driver == StoreDriverSQLite && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultSQLitePath
	}
	if cfg.Store.NATS.Bucket == "" {
		cfg.Store.NATS.Bucket = DefaultNATSBucket
	}
	if cfg.Store.NATS.Timeout <= 0 {
		cfg.Store.NATS.Timeout = DefaultNATSTimeout
	}
	if cfg.Store.Retry.Backoff == "" {
		cfg.Store.Retry.Backoff = RetryBackoffExponential
	} else if m := NormalizeRetryBackoff(string(cfg.Store.Retry.Backoff)); m != "" {
		cfg.Store.Retry.Backoff = m
	}
	if cfg.Store.Retry.Initial <= 0 {
		cfg.Store.Retry.Initial = defaultRetryInitial
	}
	if cfg.Store.Retry.Max <= 0 {
		cfg.Store.Retry.Max = defaultRetryMax
	}
	if cfg.Store.Retry.MaxRetries == 0 {
		cfg.Store.Retry.MaxRetries = defaultRetryMaxRetries
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Events.NATSURL != "" && cfg.Events.NATSSubject == "" {
		cfg.Events.NATSSubject = DefaultNATSSubject
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	if cfg.Stats.Interval <= 0 {
		cfg.Stats.Interval = DefaultStatsInterval
	}
	return nil
}
