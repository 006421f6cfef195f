package storage

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/taskescrow/internal/config"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
)

// Open constructs the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	slog.Debug("Opening record store", logfields.Driver(string(cfg.Driver)))

	switch cfg.Driver {
	case config.StoreDriverMemory, "":
		return NewMemoryStore(), nil
	case config.StoreDriverSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreDriverNATS:
		s, err := NewKVStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, ferrors.ConfigError("unsupported store driver").
			WithContext("driver", string(cfg.Driver)).
			Build()
	}
}
