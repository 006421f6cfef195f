package escrow

import (
	"context"
	"time"

	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

// EventType names a committed registry event.
type EventType string

const (
	EventTaskCreated        EventType = "task.created"
	EventTaskCompleted      EventType = "task.completed"
	EventProgramInitialized EventType = "program.initialized"
)

// Event describes a committed state change (or the handshake).
// Slot and Record are zero for EventProgramInitialized.
type Event struct {
	Type       EventType         `json:"type"`
	ProgramID  identity.Identity `json:"program_id"`
	Slot       identity.Identity `json:"slot"`
	Record     TaskEscrow        `json:"record"`
	OccurredAt time.Time         `json:"occurred_at"`

	// WasCompleted is the completion flag before a complete_task call.
	WasCompleted bool `json:"was_completed,omitempty"`
}

// Observer is notified after a registry operation has committed. A failing
// observer never undoes the operation.
type Observer interface {
	Observe(ctx context.Context, event Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event) error

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, event Event) error {
	return f(ctx, event)
}
