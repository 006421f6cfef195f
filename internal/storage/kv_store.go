package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/taskescrow/internal/config"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
	"git.home.luguber.info/inful/taskescrow/internal/retry"
)

// kvBucket is the subset of a JetStream key-value bucket the store relies on.
type kvBucket interface {
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) ([]byte, uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
	Keys(ctx context.Context) ([]string, error)
}

var (
	errKVKeyExists   = errors.New("kv: key exists")
	errKVKeyNotFound = errors.New("kv: key not found")
	errKVWrongRev    = errors.New("kv: wrong last revision")
)

// KVStore implements Store on a NATS JetStream key-value bucket. Create is
// the allocation arbiter; updates are revision-checked and retried on conflict.
type KVStore struct {
	bucket kvBucket
	policy retry.Policy
	conn   *nats.Conn
}

// NewKVStore connects to NATS and opens (or creates) the configured bucket.
func NewKVStore(ctx context.Context, cfg config.StoreConfig) (*KVStore, error) {
	conn, err := nats.Connect(cfg.NATS.URL, nats.Name("taskescrow-store"), nats.Timeout(cfg.NATS.Timeout))
	if err != nil {
		return nil, ferrors.TransportError("failed to connect to NATS").WithCause(err).WithContext("url", cfg.NATS.URL).Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.TransportError("failed to create JetStream context").WithCause(err).Build()
	}

	kv, err := openBucket(ctx, js, cfg.NATS.Bucket)
	if err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS record store initialized",
		slog.String("url", cfg.NATS.URL),
		slog.String("bucket", cfg.NATS.Bucket))

	store := newKVStore(jetstreamBucket{kv: kv}, retry.FromConfig(cfg.Retry))
	store.conn = conn
	return store, nil
}

func newKVStore(bucket kvBucket, policy retry.Policy) *KVStore {
	return &KVStore{bucket: bucket, policy: policy}
}

func openBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, ferrors.TransportError("failed to open KV bucket").WithCause(err).WithContext("bucket", name).Build()
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Task escrow records",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, ferrors.TransportError("failed to create KV bucket").WithCause(err).WithContext("bucket", name).Build()
	}
	slog.Info("Created KV bucket for task escrow records", slog.String("bucket", name))
	return kv, nil
}

// Allocate creates key; an existing key means the slot is taken.
func (s *KVStore) Allocate(ctx context.Context, key string, data []byte) error {
	if _, err := s.bucket.Create(ctx, key, data); err != nil {
		if errors.Is(err, errKVKeyExists) {
			return occupied(key)
		}
		return ferrors.StoreError("create record").WithCause(err).WithContext("slot", key).Build()
	}
	return nil
}

// Load reads the latest revision of key.
func (s *KVStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, errKVKeyNotFound) {
			return nil, notFound(key)
		}
		return nil, ferrors.StoreError("get record").WithCause(err).WithContext("slot", key).Build()
	}
	return data, nil
}

// Update performs a read-modify-write guarded by the entry revision.
func (s *KVStore) Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error) {
	var result []byte
	err := s.policy.Do(ctx, isRevisionConflict, func(attempt int) error {
		if attempt > 0 {
			slog.Debug("Retrying record update after revision conflict", logfields.Slot(key), logfields.Attempt(attempt))
		}
		current, rev, err := s.bucket.Get(ctx, key)
		if err != nil {
			if errors.Is(err, errKVKeyNotFound) {
				return notFound(key)
			}
			return ferrors.StoreError("get record").WithCause(err).WithContext("slot", key).Build()
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := s.bucket.Update(ctx, key, next, rev); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		if isRevisionConflict(err) {
			return nil, ferrors.StoreError("record update conflict persisted").
				WithCause(err).
				WithContext("slot", key).
				WithContext("max_retries", s.policy.MaxRetries).
				Build()
		}
		var classified *ferrors.ClassifiedError
		if errors.As(err, &classified) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ferrors.StoreError("update record").WithCause(err).WithContext("slot", key).Build()
	}
	return result, nil
}

func isRevisionConflict(err error) bool {
	return errors.Is(err, errKVWrongRev)
}

// Scan lists every key and loads its latest value.
func (s *KVStore) Scan(ctx context.Context, fn ScanFunc) error {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		return ferrors.StoreError("list records").WithCause(err).Build()
	}
	for _, key := range keys {
		data, _, err := s.bucket.Get(ctx, key)
		if errors.Is(err, errKVKeyNotFound) {
			continue
		}
		if err != nil {
			return ferrors.StoreError("get record").WithCause(err).WithContext("slot", key).Build()
		}
		if err := fn(key, data); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the NATS connection when the store owns one.
func (s *KVStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

// jetstreamBucket adapts jetstream.KeyValue to kvBucket, translating the
// library's sentinel errors.
type jetstreamBucket struct {
	kv jetstream.KeyValue
}

func (b jetstreamBucket) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := b.kv.Create(ctx, key, value)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return 0, errors.Join(errKVKeyExists, err)
	}
	return rev, err
}

func (b jetstreamBucket) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := b.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, 0, errors.Join(errKVKeyNotFound, err)
	}
	if err != nil {
		return nil, 0, err
	}
	return entry.Value(), entry.Revision(), nil
}

func (b jetstreamBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	rev, err := b.kv.Update(ctx, key, value, revision)
	var apiErr *jetstream.APIError
	if errors.Is(err, jetstream.ErrKeyExists) ||
		(errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence) {
		return 0, errors.Join(errKVWrongRev, err)
	}
	return rev, err
}

func (b jetstreamBucket) Keys(ctx context.Context) ([]string, error) {
	lister, err := b.kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}
