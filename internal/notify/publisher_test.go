package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestPublisherObserveTaskCreated(t *testing.T) {
	conn := &capturePublisher{}
	p := NewPublisher(conn, "taskescrow.events")
	p.newID = func() string { return "fixed-id" }

	slot := identity.DeriveSlot(escrow.ProgramID(), []byte("slot"))
	rec := escrow.TaskEscrow{
		Depositor: identity.DeriveSlot(escrow.ProgramID(), []byte("d")),
		Recipient: identity.DeriveSlot(escrow.ProgramID(), []byte("r")),
		Amount:    18446744073709551615,
	}
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	err := p.Observe(context.Background(), escrow.Event{
		Type:       escrow.EventTaskCreated,
		ProgramID:  escrow.ProgramID(),
		Slot:       slot,
		Record:     rec,
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "taskescrow.events.task.created", msg.Subject)
	assert.Equal(t, "fixed-id", msg.Header.Get(nats.MsgIdHdr))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "fixed-id", body["id"])
	assert.Equal(t, slot.String(), body["slot"])
	record := body["record"].(map[string]any)
	assert.Equal(t, "18446744073709551615", record["amount"], "amounts are strings to survive JSON numbers")
	assert.Equal(t, rec.Depositor.String(), record["depositor"])

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, rec, *env.Record)
	assert.Equal(t, at, env.OccurredAt)
}

func TestPublisherObserveProgramInitializedOmitsRecord(t *testing.T) {
	conn := &capturePublisher{}
	p := NewPublisher(conn, "esc")

	require.NoError(t, p.Observe(context.Background(), escrow.Event{Type: escrow.EventProgramInitialized, ProgramID: escrow.ProgramID()}))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "esc.program.initialized", conn.msgs[0].Subject)
	assert.NotEmpty(t, conn.msgs[0].Header.Get(nats.MsgIdHdr))

	var body map[string]any
	require.NoError(t, json.Unmarshal(conn.msgs[0].Data, &body))
	assert.NotContains(t, body, "record")
	assert.NotContains(t, body, "slot")
}

func TestPublisherObservePublishFailure(t *testing.T) {
	p := NewPublisher(&capturePublisher{err: errors.New("connection closed")}, "esc")
	err := p.Observe(context.Background(), escrow.Event{Type: escrow.EventTaskCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event")
}

func TestPublisherAgainstServer(t *testing.T) {
	url := os.Getenv("TASKESCROW_NATS_URL")
	if url == "" {
		t.Skip("TASKESCROW_NATS_URL not set")
	}

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	ch := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("taskescrow-test.>", ch)
	require.NoError(t, err)
	defer func() { _ = s.Unsubscribe() }()
	require.NoError(t, sub.Flush())

	p, err := Connect(url, "taskescrow-test")
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Observe(context.Background(), escrow.Event{Type: escrow.EventProgramInitialized, ProgramID: escrow.ProgramID()}))

	select {
	case msg := <-ch:
		assert.Equal(t, "taskescrow-test.program.initialized", msg.Subject)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}
