package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/taskescrow/internal/config"
	"git.home.luguber.info/inful/taskescrow/internal/retry"
)

type storeFactory func(t *testing.T) Store

func storeFactories() map[string]storeFactory {
	factories := map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
		"kv-fake": func(t *testing.T) Store {
			return newKVStore(newFakeBucket(), retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 10))
		},
	}
	if url := os.Getenv("TASKESCROW_NATS_URL"); url != "" {
		factories["kv-nats"] = func(t *testing.T) Store {
			cfg := config.Default().Store
			cfg.Driver = config.StoreDriverNATS
			cfg.NATS.URL = url
			cfg.NATS.Bucket = "test_" + uuid.NewString()[:8]
			s, err := NewKVStore(context.Background(), cfg)
			require.NoError(t, err)
			return s
		}
	}
	return factories
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestStoreAllocateAndLoad(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.Allocate(ctx, "slotA", []byte("first")))

		data, err := s.Load(ctx, "slotA")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), data)

		err = s.Allocate(ctx, "slotA", []byte("second"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSlotOccupied)

		data, err = s.Load(ctx, "slotA")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), data, "losing allocation must not overwrite")
	})
}

func TestStoreLoadMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.Load(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestStoreUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Allocate(ctx, "slotB", []byte{0}))

		next, err := s.Update(ctx, "slotB", func(current []byte) ([]byte, error) {
			return append(current, 1), nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 1}, next)

		data, err := s.Load(ctx, "slotB")
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 1}, data)

		_, err = s.Update(ctx, "missing", func(current []byte) ([]byte, error) { return current, nil })
		assert.ErrorIs(t, err, ErrSlotNotFound)

		abort := errors.New("abort")
		_, err = s.Update(ctx, "slotB", func([]byte) ([]byte, error) { return nil, abort })
		assert.ErrorIs(t, err, abort)

		data, err = s.Load(ctx, "slotB")
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 1}, data, "aborted update must leave record unchanged")
	})
}

func TestStoreConcurrentAllocateHasOneWinner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const contenders = 16

		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := range contenders {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Allocate(ctx, "contested", []byte(fmt.Sprintf("writer-%d", i)))
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrSlotOccupied):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(contenders-1), conflicts.Load())
	})
}

func TestStoreConcurrentUpdatesAllApply(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Allocate(ctx, "counter", []byte{}))

		const writers = 5
		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, "counter", func(current []byte) ([]byte, error) {
					return append(current, 'x'), nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		data, err := s.Load(ctx, "counter")
		require.NoError(t, err)
		assert.Len(t, data, writers)
	})
}

func TestStoreScan(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, s.Allocate(ctx, k, []byte(k)))
		}

		seen := map[string]string{}
		require.NoError(t, s.Scan(ctx, func(key string, data []byte) error {
			seen[key] = string(data)
			return nil
		}))
		assert.Equal(t, map[string]string{"a": "a", "b": "b", "c": "c"}, seen)

		stop := errors.New("stop")
		calls := 0
		err := s.Scan(ctx, func(string, []byte) error { calls++; return stop })
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

func TestMemoryStoreCopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Allocate(ctx, "k", buf))
	buf[0] = 'z'

	data, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	data[1] = 'z'
	again, _ := s.Load(ctx, "k")
	assert.Equal(t, []byte("abc"), again)

	calls := s.Calls()
	assert.Equal(t, 1, calls.Allocate)
	assert.Equal(t, 2, calls.Load)
	assert.Equal(t, 1, s.Len())
}

func TestKVStoreUpdateGivesUpAfterRetryBudget(t *testing.T) {
	bucket := newFakeBucket()
	bucket.forceConflicts = 100
	s := newKVStore(bucket, retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2))
	ctx := context.Background()
	require.NoError(t, s.Allocate(ctx, "k", []byte{1}))

	_, err := s.Update(ctx, "k", func(c []byte) ([]byte, error) { return c, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record update conflict persisted")
	assert.Equal(t, 3, bucket.updateAttempts)
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: config.StoreDriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(context.Background(), config.StoreConfig{Driver: config.StoreDriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.StoreConfig{Driver: "postgres"})
	require.Error(t, err)
}

// fakeBucket mimics JetStream KV revision semantics in memory.
type fakeBucket struct {
	mu             sync.Mutex
	entries        map[string]fakeEntry
	rev            uint64
	forceConflicts int
	updateAttempts int
}

type fakeEntry struct {
	value []byte
	rev   uint64
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{entries: make(map[string]fakeEntry)}
}

func (b *fakeBucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; ok {
		return 0, errKVKeyExists
	}
	b.rev++
	b.entries[key] = fakeEntry{value: append([]byte(nil), value...), rev: b.rev}
	return b.rev, nil
}

func (b *fakeBucket) Get(_ context.Context, key string) ([]byte, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, 0, errKVKeyNotFound
	}
	return append([]byte(nil), e.value...), e.rev, nil
}

func (b *fakeBucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateAttempts++
	if b.forceConflicts > 0 {
		b.forceConflicts--
		return 0, errKVWrongRev
	}
	e, ok := b.entries[key]
	if !ok || e.rev != revision {
		return 0, errKVWrongRev
	}
	b.rev++
	b.entries[key] = fakeEntry{value: append([]byte(nil), value...), rev: b.rev}
	return b.rev, nil
}

func (b *fakeBucket) Keys(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	return keys, nil
}
