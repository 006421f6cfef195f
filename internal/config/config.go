package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// Config is the root configuration for the taskescrow daemon and CLI.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	HTTP    HTTPConfig    `yaml:"http"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
	Logging LoggingConfig `yaml:"logging"`
	Stats   StatsConfig   `yaml:"stats"`
}

// StoreConfig selects and configures the keyed record store.
type StoreConfig struct {
	Driver     StoreDriver `yaml:"driver"`
	SQLitePath string      `yaml:"sqlite_path,omitempty"`
	NATS       NATSConfig  `yaml:"nats,omitempty"`
	Retry      RetryConfig `yaml:"retry,omitempty"`
}

// NATSConfig holds the JetStream connection and key-value bucket settings.
type NATSConfig struct {
	URL     string        `yaml:"url,omitempty"`
	Bucket  string        `yaml:"bucket,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// RetryConfig governs compare-and-swap retries inside stores that need them.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// EventsConfig configures the audit log and the NATS fan-out of committed events.
type EventsConfig struct {
	AuditPath   string `yaml:"audit_path,omitempty"`
	NATSURL     string `yaml:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// StatsConfig controls the periodic ledger statistics job.
type StatsConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Load reads, expands and validates the configuration at configPath.
// Variables from .env/.env.local are made available for ${VAR} expansion.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.ConfigError("failed to read config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	return Parse(data)
}

// Parse decodes YAML configuration bytes, applying env expansion, defaults and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.ConfigError("failed to unmarshal config").WithCause(err).Build()
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied (memory store, API on :8080).
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}
