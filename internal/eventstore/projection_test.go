package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
	"git.home.luguber.info/inful/taskescrow/internal/storage"
)

func TestLedgerProjectionApply(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	projection := NewLedgerProjection(store, 10)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	created, err := NewTaskCreated(testSlot, "dep", "rec", 500, at)
	require.NoError(t, err)
	projection.Apply(created)

	summary, ok := projection.GetTask(testSlot)
	require.True(t, ok)
	assert.Equal(t, taskStatusOpen, summary.Status)
	assert.Equal(t, uint64(500), summary.Amount)
	assert.Equal(t, "dep", summary.Depositor)
	assert.Equal(t, LedgerCounts{Open: 1}, projection.Counts())

	for i := range 2 {
		done, err := NewTaskCompleted(testSlot, i > 0, at.Add(time.Minute))
		require.NoError(t, err)
		projection.Apply(done)
	}

	summary, _ = projection.GetTask(testSlot)
	assert.Equal(t, taskStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.CompletionCalls)
	require.NotNil(t, summary.CompletedAt)
	assert.Equal(t, at.Add(time.Minute), *summary.CompletedAt)
	assert.Equal(t, LedgerCounts{Completed: 1, CompletionCalls: 2}, projection.Counts())

	// A duplicate create for the same slot never resets the summary.
	dup, err := NewTaskCreated(testSlot, "other", "other", 1, at)
	require.NoError(t, err)
	projection.Apply(dup)
	summary, _ = projection.GetTask(testSlot)
	assert.Equal(t, "dep", summary.Depositor)
}

func TestLedgerProjectionRecentIsBounded(t *testing.T) {
	projection := NewLedgerProjection(nil, 2)
	at := time.Now()
	for i, slot := range []string{"a", "b", "c"} {
		e, err := NewTaskCreated(slot, "d", "r", uint64(i), at.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		projection.Apply(e)
	}

	recent := projection.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Slot)
	assert.Equal(t, "b", recent[1].Slot)
	assert.Len(t, projection.Recent(1), 1)
}

func TestAuditLogRebuildMatchesLiveProjection(t *testing.T) {
	ctx := context.Background()
	events, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = events.Close() }()

	live := NewLedgerProjection(events, 50)
	audit := NewAuditLog(events, live)
	registry := escrow.NewRegistry(storage.NewMemoryStore(), escrow.WithObserver("audit", audit))

	depositor, err := identity.GenerateKeypair()
	require.NoError(t, err)
	recipient, err := identity.GenerateKeypair()
	require.NoError(t, err)

	require.NoError(t, registry.Initialize(ctx, escrow.InitializeAccounts{}))

	var slots []identity.Identity
	for i := range 3 {
		slot := identity.DeriveSlot(registry.Program(), []byte{byte(i)})
		slots = append(slots, slot)
		msg := escrow.CreateTaskMessage(registry.Program(), slot, recipient.Identity(), uint64(i+1))
		_, err := registry.CreateTask(ctx, escrow.CreateTaskAccounts{
			Task:      slot,
			Depositor: depositor.Prove(msg),
			Recipient: recipient.Identity(),
		}, uint64(i+1))
		require.NoError(t, err)
	}
	require.NoError(t, registry.CompleteTask(ctx, escrow.CompleteTaskAccounts{Task: slots[1]}))
	require.NoError(t, registry.CompleteTask(ctx, escrow.CompleteTaskAccounts{Task: slots[1]}))

	assert.Equal(t, LedgerCounts{Open: 2, Completed: 1, Handshakes: 1, CompletionCalls: 2}, live.Counts())

	rebuilt := NewLedgerProjection(events, 50)
	require.NoError(t, rebuilt.Rebuild(ctx))
	assert.Equal(t, live.Counts(), rebuilt.Counts())
	assert.False(t, rebuilt.LastSyncTime().IsZero())

	summary, ok := rebuilt.GetTask(slots[1].String())
	require.True(t, ok)
	assert.Equal(t, taskStatusCompleted, summary.Status)
	assert.Equal(t, depositor.Identity().String(), summary.Depositor)
	assert.Equal(t, uint64(2), summary.Amount)

	history, err := audit.History(ctx, slots[1].String())
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, TypeTaskCreated, history[0].Type())
	assert.Equal(t, TypeTaskCompleted, history[2].Type())
}

func TestFromRegistryEventRejectsUnknownType(t *testing.T) {
	_, err := FromRegistryEvent(escrow.Event{Type: "task.refunded"})
	assert.ErrorIs(t, err, ErrUnknownEventType)
}
