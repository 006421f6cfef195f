package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store. It is safe for concurrent use and is
// the default driver for tests and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	calls   MemoryCalls
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Allocate int
	Load     int
	Update   int
	Scan     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
	}
}

// Allocate stores a copy of data if key is empty.
func (m *MemoryStore) Allocate(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Allocate++

	if _, ok := m.records[key]; ok {
		return occupied(key)
	}
	m.records[key] = slices.Clone(data)
	return nil
}

// Load returns a copy of the record stored under key.
func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Load++

	data, ok := m.records[key]
	if !ok {
		return nil, notFound(key)
	}
	return slices.Clone(data), nil
}

// Update replaces the record under key while holding the write lock.
func (m *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Update++

	current, ok := m.records[key]
	if !ok {
		return nil, notFound(key)
	}
	next, err := fn(slices.Clone(current))
	if err != nil {
		return nil, err
	}
	m.records[key] = slices.Clone(next)
	return slices.Clone(next), nil
}

// Scan visits a snapshot of every record.
func (m *MemoryStore) Scan(ctx context.Context, fn ScanFunc) error {
	m.mu.Lock()
	m.calls.Scan++
	snapshot := make(map[string][]byte, len(m.records))
	for k, v := range m.records {
		snapshot[k] = slices.Clone(v)
	}
	m.mu.Unlock()

	for k, v := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Calls returns a snapshot of invocation counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
