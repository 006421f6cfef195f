// Package storage provides keyed record stores for task escrow slots.
//
// A store is the sole arbiter of slot allocation: Allocate must fail with
// ErrSlotOccupied when the key already holds a record, atomically with respect
// to concurrent callers. Records are never deleted.
package storage

import (
	"context"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// Store persists opaque record bytes under slot keys.
type Store interface {
	// Allocate writes data under key if and only if the key is empty.
	// Returns ErrSlotOccupied if a record already exists.
	Allocate(ctx context.Context, key string, data []byte) error

	// Load returns the record stored under key.
	// Returns ErrSlotNotFound if the key is empty.
	Load(ctx context.Context, key string) ([]byte, error)

	// Update atomically replaces the record under key with fn(current).
	// Returns ErrSlotNotFound if the key is empty; errors from fn abort the
	// update and are returned unchanged.
	Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error)

	// Scan calls fn for every stored record. Iteration order is unspecified.
	Scan(ctx context.Context, fn ScanFunc) error

	// Close releases any resources held by the store.
	Close() error
}

// UpdateFunc computes the replacement for a stored record.
type UpdateFunc func(current []byte) ([]byte, error)

// ScanFunc receives one stored record; returning an error stops the scan.
type ScanFunc func(key string, data []byte) error

var (
	// ErrSlotOccupied is returned by Allocate when the key already holds a record.
	ErrSlotOccupied = ferrors.AlreadyExistsError("slot already allocated").Build()

	// ErrSlotNotFound is returned when no record exists under the key.
	ErrSlotNotFound = ferrors.NotFoundError("slot not found").Build()
)

func occupied(key string) error {
	return ErrSlotOccupied.WithContext("slot", key)
}

func notFound(key string) error {
	return ErrSlotNotFound.WithContext("slot", key)
}
