package eventstore

import "time"

// Event represents a recorded registry event.
type Event interface {
	// ID returns the store sequence number for this event.
	ID() int64
	// UUID returns the globally unique event identifier.
	UUID() string
	// Slot returns the task slot this event belongs to (empty for program events).
	Slot() string
	// Type returns the event type name.
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// Payload returns the event data as bytes.
	Payload() []byte
	// Metadata returns optional event metadata.
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID        int64
	EventUUID      string
	EventSlot      string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) UUID() string                { return e.EventUUID }
func (e *BaseEvent) Slot() string                { return e.EventSlot }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }
