// Package notify fans committed registry events out over NATS.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
)

// MsgPublisher is satisfied by *nats.Conn.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Envelope is the JSON body published for each event.
type Envelope struct {
	ID           string             `json:"id"`
	Type         escrow.EventType   `json:"type"`
	ProgramID    string             `json:"program_id"`
	Slot         string             `json:"slot,omitempty"`
	Record       *escrow.TaskEscrow `json:"record,omitempty"`
	WasCompleted bool               `json:"was_completed,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// Publisher publishes registry events to "<prefix>.<event type>".
// It implements escrow.Observer.
type Publisher struct {
	conn   MsgPublisher
	prefix string
	newID  func() string
	closer func()
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn MsgPublisher, subjectPrefix string) *Publisher {
	return &Publisher{conn: conn, prefix: subjectPrefix, newID: uuid.NewString}
}

// Connect dials NATS and returns a publisher owning the connection.
func Connect(url, subjectPrefix string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("taskescrow-events"))
	if err != nil {
		return nil, ferrors.TransportError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS event publisher connected", slog.String("url", url), logfields.Subject(subjectPrefix))

	p := NewPublisher(conn, subjectPrefix)
	p.closer = func() { _ = conn.Drain() }
	return p, nil
}

// Subject returns the subject used for an event type.
func (p *Publisher) Subject(t escrow.EventType) string {
	return p.prefix + "." + string(t)
}

// Observe publishes ev over core NATS, fire-and-forget. The envelope ID is
// also sent as the Nats-Msg-Id header so subscribers can correlate or
// de-duplicate; the publisher creates no stream of its own.
func (p *Publisher) Observe(_ context.Context, ev escrow.Event) error {
	env := Envelope{
		ID:           p.newID(),
		Type:         ev.Type,
		ProgramID:    ev.ProgramID.String(),
		WasCompleted: ev.WasCompleted,
		OccurredAt:   ev.OccurredAt,
	}
	if ev.Type != escrow.EventProgramInitialized {
		env.Slot = ev.Slot.String()
		rec := ev.Record
		env.Record = &rec
	}

	data, err := json.Marshal(env)
	if err != nil {
		return ferrors.InternalError("failed to marshal event envelope").WithCause(err).Build()
	}

	msg := nats.NewMsg(p.Subject(ev.Type))
	msg.Header.Set(nats.MsgIdHdr, env.ID)
	msg.Data = data

	if err := p.conn.PublishMsg(msg); err != nil {
		return ferrors.TransportError("failed to publish event").
			WithCause(err).
			WithContext("subject", msg.Subject).
			Build()
	}

	slog.Debug("Published registry event",
		logfields.Subject(msg.Subject),
		logfields.EventID(env.ID),
		logfields.Slot(env.Slot))
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *Publisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

var _ escrow.Observer = (*Publisher)(nil)
