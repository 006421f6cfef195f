package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// Example returns the configuration written by Init.
func Example() Config {
	return Config{
		Store: StoreConfig{
			Driver:     StoreDriverSQLite,
			SQLitePath: "./taskescrow.db",
			NATS: NATSConfig{
				URL:    "${TASKESCROW_NATS_URL}",
				Bucket: DefaultNATSBucket,
			},
			Retry: RetryConfig{
				Backoff:    RetryBackoffExponential,
				Initial:    defaultRetryInitial,
				Max:        defaultRetryMax,
				MaxRetries: defaultRetryMaxRetries,
			},
		},
		HTTP: HTTPConfig{
			Addr: DefaultHTTPAddr,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Events: EventsConfig{
			AuditPath: "./taskescrow-audit.db",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Stats: StatsConfig{
			Interval: DefaultStatsInterval,
		},
	}
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.AlreadyExistsError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	data, err := yaml.Marshal(Example())
	if err != nil {
		return ferrors.InternalError("failed to marshal example config").WithCause(err).Build()
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.ConfigError("failed to create config directory").
				WithCause(err).
				WithContext("path", dir).
				Build()
		}
	}

	// #nosec G306 -- example configuration contains no secrets
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.ConfigError("failed to write config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}
	return nil
}
