package eventstore

import (
	"encoding/json"
	"strconv"
	"time"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

const (
	TypeTaskCreated        = "TaskCreated"
	TypeTaskCompleted      = "TaskCompleted"
	TypeProgramInitialized = "ProgramInitialized"
)

// TaskCreated is recorded when an escrow is allocated.
type TaskCreated struct {
	BaseEvent
	Depositor string `json:"depositor"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount,string"`
}

// NewTaskCreated creates a TaskCreated event.
func NewTaskCreated(slot, depositor, recipient string, amount uint64, at time.Time) (*TaskCreated, error) {
	payload, err := json.Marshal(map[string]any{
		"depositor": depositor,
		"recipient": recipient,
		"amount":    strconv.FormatUint(amount, 10),
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal TaskCreated payload").
			WithCause(err).
			WithContext("slot", slot).
			Build()
	}
	return &TaskCreated{
		BaseEvent: BaseEvent{
			EventSlot:      slot,
			EventType:      TypeTaskCreated,
			EventTimestamp: at,
			EventPayload:   payload,
		},
		Depositor: depositor,
		Recipient: recipient,
		Amount:    amount,
	}, nil
}

// TaskCompleted is recorded on every successful complete_task, including
// repeats; WasCompleted distinguishes the first completion from the rest.
type TaskCompleted struct {
	BaseEvent
	WasCompleted bool `json:"was_completed"`
}

// NewTaskCompleted creates a TaskCompleted event.
func NewTaskCompleted(slot string, wasCompleted bool, at time.Time) (*TaskCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"was_completed": wasCompleted,
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal TaskCompleted payload").
			WithCause(err).
			WithContext("slot", slot).
			Build()
	}
	return &TaskCompleted{
		BaseEvent: BaseEvent{
			EventSlot:      slot,
			EventType:      TypeTaskCompleted,
			EventTimestamp: at,
			EventPayload:   payload,
		},
		WasCompleted: wasCompleted,
	}, nil
}

// ProgramInitialized is recorded for each handshake.
type ProgramInitialized struct {
	BaseEvent
	ProgramID string `json:"program_id"`
}

// NewProgramInitialized creates a ProgramInitialized event.
func NewProgramInitialized(programID string, at time.Time) (*ProgramInitialized, error) {
	payload, err := json.Marshal(map[string]any{
		"program_id": programID,
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal ProgramInitialized payload").
			WithCause(err).
			Build()
	}
	return &ProgramInitialized{
		BaseEvent: BaseEvent{
			EventType:      TypeProgramInitialized,
			EventTimestamp: at,
			EventPayload:   payload,
		},
		ProgramID: programID,
	}, nil
}

// FromRegistryEvent converts a committed registry event into its audit record.
func FromRegistryEvent(ev escrow.Event) (*BaseEvent, error) {
	slot := ev.Slot.String()
	switch ev.Type {
	case escrow.EventTaskCreated:
		e, err := NewTaskCreated(slot, ev.Record.Depositor.String(), ev.Record.Recipient.String(), ev.Record.Amount, ev.OccurredAt)
		if err != nil {
			return nil, err
		}
		return &e.BaseEvent, nil
	case escrow.EventTaskCompleted:
		e, err := NewTaskCompleted(slot, ev.WasCompleted, ev.OccurredAt)
		if err != nil {
			return nil, err
		}
		return &e.BaseEvent, nil
	case escrow.EventProgramInitialized:
		e, err := NewProgramInitialized(ev.ProgramID.String(), ev.OccurredAt)
		if err != nil {
			return nil, err
		}
		return &e.BaseEvent, nil
	default:
		return nil, ErrUnknownEventType.WithContext("event_type", string(ev.Type))
	}
}
