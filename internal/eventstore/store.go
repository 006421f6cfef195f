package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store. The event's UUID and timestamp are
	// generated when unset; the stored sequence number is assigned by the store.
	Append(ctx context.Context, event *BaseEvent) error

	// GetBySlot retrieves all events for a task slot in append order.
	GetBySlot(ctx context.Context, slot string) ([]Event, error)

	// GetRange retrieves events within a time range in append order.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
