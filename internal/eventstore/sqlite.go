package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based event store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ErrDatabaseOpenFailed.WithCause(err).WithContext("path", dbPath)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ErrInitializeSchemaFailed.WithCause(err).WithContext("path", dbPath)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_uuid TEXT NOT NULL UNIQUE,
		slot TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_slot ON events(slot);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store and fills in its ID.
func (s *SQLiteStore) Append(ctx context.Context, event *BaseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.EventUUID == "" {
		event.EventUUID = uuid.NewString()
	}
	if event.EventTimestamp.IsZero() {
		event.EventTimestamp = time.Now()
	}

	var metadataJSON []byte
	if event.EventMetadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.EventMetadata)
		if err != nil {
			return ErrMarshalPayloadFailed.WithCause(err).WithContext("event_id", event.EventUUID)
		}
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO events (event_uuid, slot, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?, ?)",
		event.EventUUID, event.EventSlot, event.EventType, event.EventTimestamp.UnixNano(), event.EventPayload, metadataJSON,
	)
	if err != nil {
		return ErrEventAppendFailed.WithCause(err).WithContext("event_id", event.EventUUID)
	}
	if id, err := res.LastInsertId(); err == nil {
		event.EventID = id
	}

	return nil
}

// GetBySlot retrieves all events for a specific task slot.
func (s *SQLiteStore) GetBySlot(ctx context.Context, slot string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_uuid, slot, event_type, timestamp, payload, metadata FROM events WHERE slot = ? ORDER BY id",
		slot,
	)
	if err != nil {
		return nil, ErrEventQueryFailed.WithCause(err).WithContext("slot", slot)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// GetRange retrieves events within a time range.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_uuid, slot, event_type, timestamp, payload, metadata FROM events WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixNano(), end.UnixNano(),
	)
	if err != nil {
		return nil, ErrEventQueryFailed.WithCause(err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLiteStore) scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e BaseEvent
		var timestampNano int64
		var metadataJSON []byte

		err := rows.Scan(&e.EventID, &e.EventUUID, &e.EventSlot, &e.EventType, &timestampNano, &e.EventPayload, &metadataJSON)
		if err != nil {
			return nil, ErrEventScanFailed.WithCause(err)
		}

		e.EventTimestamp = time.Unix(0, timestampNano)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.EventMetadata); err != nil {
				return nil, ErrEventScanFailed.WithCause(err).WithContext("event_id", e.EventUUID)
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, ErrEventScanFailed.WithCause(err)
	}

	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
