package config

import (
	"strings"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// Validate checks the configuration after defaults have been applied.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ferrors.ConfigError("configuration is nil").Build()
	}
	if err := validateStore(&cfg.Store); err != nil {
		return err
	}
	if err := validateHTTP(&cfg.HTTP); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return ferrors.ConfigError("metrics path must start with /").
			WithContext("path", cfg.Metrics.Path).
			Build()
	}
	if cfg.Events.NATSSubject != "" && strings.ContainsAny(cfg.Events.NATSSubject, " \t*>") {
		return ferrors.ConfigError("events nats_subject must be a literal subject").
			WithContext("subject", cfg.Events.NATSSubject).
			Build()
	}
	if _, err := logLevelNormalizer.NormalizeWithError(string(cfg.Logging.Level)); err != nil {
		return err
	}
	if _, err := logFormatNormalizer.NormalizeWithError(string(cfg.Logging.Format)); err != nil {
		return err
	}
	return nil
}

func validateStore(s *StoreConfig) error {
	if _, err := storeDriverNormalizer.NormalizeWithError(string(s.Driver)); err != nil {
		return err
	}
	switch s.Driver {
	case StoreDriverSQLite:
		if s.SQLitePath == "" {
			return ferrors.ConfigError("store.sqlite_path is required for the sqlite driver").Build()
		}
	case StoreDriverNATS:
		if s.NATS.URL == "" {
			return ferrors.ConfigError("store.nats.url is required for the nats driver").Build()
		}
		if s.NATS.Bucket == "" {
			return ferrors.ConfigError("store.nats.bucket is required for the nats driver").Build()
		}
	}

	r := s.Retry
	if NormalizeRetryBackoff(string(r.Backoff)) == "" {
		return ferrors.ConfigError("invalid store.retry.backoff").
			WithContext("value", string(r.Backoff)).
			Build()
	}
	if r.MaxRetries < 0 {
		return ferrors.ConfigError("store.retry.max_retries cannot be negative").Build()
	}
	if r.Max < r.Initial {
		return ferrors.ConfigError("store.retry.max must be >= initial").
			WithContext("initial", r.Initial.String()).
			WithContext("max", r.Max.String()).
			Build()
	}
	return nil
}

func validateHTTP(h *HTTPConfig) error {
	if strings.TrimSpace(h.Addr) == "" {
		return ferrors.ConfigError("http.addr is required").Build()
	}
	if !strings.Contains(h.Addr, ":") {
		return ferrors.ConfigError("http.addr must be host:port").
			WithContext("addr", h.Addr).
			Build()
	}
	return nil
}
