package eventstore

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
)

// AuditLog records committed registry events and keeps a LedgerProjection
// current. It implements escrow.Observer.
type AuditLog struct {
	store      Store
	projection *LedgerProjection
}

// NewAuditLog wires an event store to a projection. projection may be nil.
func NewAuditLog(store Store, projection *LedgerProjection) *AuditLog {
	return &AuditLog{store: store, projection: projection}
}

// Observe appends the event and applies it to the projection.
func (a *AuditLog) Observe(ctx context.Context, ev escrow.Event) error {
	record, err := FromRegistryEvent(ev)
	if err != nil {
		return err
	}
	if err := a.store.Append(ctx, record); err != nil {
		return err
	}
	if a.projection != nil {
		a.projection.Apply(record)
	}
	slog.Debug("Audit event recorded",
		logfields.EventType(record.EventType),
		logfields.EventID(record.EventUUID),
		logfields.Slot(record.EventSlot))
	return nil
}

// Projection returns the attached projection (may be nil).
func (a *AuditLog) Projection() *LedgerProjection {
	return a.projection
}

// History returns the recorded events for a slot.
func (a *AuditLog) History(ctx context.Context, slot string) ([]Event, error) {
	return a.store.GetBySlot(ctx, slot)
}

var _ escrow.Observer = (*AuditLog)(nil)
