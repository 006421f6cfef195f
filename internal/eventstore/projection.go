// Package eventstore provides the append-only audit log of registry events
// and read models rebuilt from it.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	taskStatusOpen      = "open"
	taskStatusCompleted = "completed"
)

// TaskSummary is a read model of one escrow reconstructed from its events.
type TaskSummary struct {
	Slot            string     `json:"slot"`
	Depositor       string     `json:"depositor"`
	Recipient       string     `json:"recipient"`
	Amount          uint64     `json:"amount,string"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CompletionCalls int        `json:"completion_calls"`
}

// LedgerCounts aggregates the projection.
type LedgerCounts struct {
	Open            int `json:"open"`
	Completed       int `json:"completed"`
	Handshakes      int `json:"handshakes"`
	CompletionCalls int `json:"completion_calls"`
}

// LedgerProjection maintains an in-memory view of the escrow ledger,
// reconstructed from events stored in the event store.
type LedgerProjection struct {
	mu       sync.RWMutex
	store    Store
	tasks    map[string]*TaskSummary
	recent   []*TaskSummary // newest first, bounded by maxSize
	maxSize  int
	counts   LedgerCounts
	lastSync time.Time
}

// NewLedgerProjection creates a new projection backed by the given store.
func NewLedgerProjection(store Store, maxRecent int) *LedgerProjection {
	if maxRecent <= 0 {
		maxRecent = 100
	}
	return &LedgerProjection{
		store:   store,
		tasks:   make(map[string]*TaskSummary),
		recent:  make([]*TaskSummary, 0, maxRecent),
		maxSize: maxRecent,
	}
}

// Rebuild reconstructs the projection from all events in the store.
// This is typically called at startup.
func (p *LedgerProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Unix(0, 0), time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasks = make(map[string]*TaskSummary)
	p.recent = make([]*TaskSummary, 0, p.maxSize)
	p.counts = LedgerCounts{}

	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.recent, func(i, j int) bool {
		return p.recent[i].CreatedAt.After(p.recent[j].CreatedAt)
	})
	if len(p.recent) > p.maxSize {
		p.recent = p.recent[:p.maxSize]
	}

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *LedgerProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *LedgerProjection) applyEventLocked(event Event) {
	switch event.Type() {
	case TypeProgramInitialized:
		p.counts.Handshakes++

	case TypeTaskCreated:
		if _, exists := p.tasks[event.Slot()]; exists {
			return
		}
		var payload struct {
			Depositor string `json:"depositor"`
			Recipient string `json:"recipient"`
			Amount    string `json:"amount"`
		}
		_ = json.Unmarshal(event.Payload(), &payload)
		amount, _ := strconv.ParseUint(payload.Amount, 10, 64)

		summary := &TaskSummary{
			Slot:      event.Slot(),
			Depositor: payload.Depositor,
			Recipient: payload.Recipient,
			Amount:    amount,
			Status:    taskStatusOpen,
			CreatedAt: event.Timestamp(),
		}
		p.tasks[summary.Slot] = summary
		p.counts.Open++

		p.recent = append([]*TaskSummary{summary}, p.recent...)
		if len(p.recent) > p.maxSize {
			p.recent = p.recent[:p.maxSize]
		}

	case TypeTaskCompleted:
		p.counts.CompletionCalls++
		summary, exists := p.tasks[event.Slot()]
		if !exists {
			return
		}
		summary.CompletionCalls++
		if summary.Status != taskStatusCompleted {
			at := event.Timestamp()
			summary.CompletedAt = &at
			summary.Status = taskStatusCompleted
			p.counts.Open--
			p.counts.Completed++
		}
	}
}

// GetTask returns the summary for a slot.
func (p *LedgerProjection) GetTask(slot string) (*TaskSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.tasks[slot]
	if !exists {
		return nil, false
	}
	cp := *summary
	return &cp, true
}

// Recent returns up to n of the most recently created tasks, newest first.
func (p *LedgerProjection) Recent(n int) []*TaskSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if n <= 0 || n > len(p.recent) {
		n = len(p.recent)
	}
	result := make([]*TaskSummary, n)
	for i := range n {
		cp := *p.recent[i]
		result[i] = &cp
	}
	return result
}

// Counts returns the aggregate ledger counts.
func (p *LedgerProjection) Counts() LedgerCounts {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counts
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *LedgerProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
