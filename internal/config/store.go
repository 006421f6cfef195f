package config

import "git.home.luguber.info/inful/taskescrow/internal/foundation/normalization"

// StoreDriver names a record store implementation.
type StoreDriver string

const (
	StoreDriverMemory StoreDriver = "memory"
	StoreDriverSQLite StoreDriver = "sqlite"
	StoreDriverNATS   StoreDriver = "nats"
)

var storeDriverNormalizer = normalization.NewNormalizer("store driver", map[string]StoreDriver{
	"memory": StoreDriverMemory,
	"sqlite": StoreDriverSQLite,
	"nats":   StoreDriverNATS,
}, StoreDriverMemory)

// NormalizeStoreDriver converts user input into a typed driver, defaulting to memory.
func NormalizeStoreDriver(raw string) StoreDriver {
	return storeDriverNormalizer.Normalize(raw)
}
