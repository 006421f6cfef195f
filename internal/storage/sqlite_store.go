package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// SQLiteStore implements Store on a single SQLite table. The primary key on
// slot makes INSERT the allocation arbiter.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.StoreError("open sqlite database").WithCause(err).WithContext("path", dbPath).Build()
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.StoreError("initialize schema").WithCause(err).WithContext("path", dbPath).Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS task_escrows (
		slot TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (unixepoch()),
		updated_at INTEGER NOT NULL DEFAULT (unixepoch())
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Allocate inserts data under key unless the slot already exists.
func (s *SQLiteStore) Allocate(ctx context.Context, key string, data []byte) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO task_escrows (slot, data) VALUES (?, ?) ON CONFLICT(slot) DO NOTHING",
		key, data,
	)
	if err != nil {
		return ferrors.StoreError("insert record").WithCause(err).WithContext("slot", key).Build()
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ferrors.StoreError("insert record").WithCause(err).WithContext("slot", key).Build()
	}
	if n == 0 {
		return occupied(key)
	}
	return nil
}

// Load reads the record under key.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM task_escrows WHERE slot = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, ferrors.StoreError("query record").WithCause(err).WithContext("slot", key).Build()
	}
	return data, nil
}

// Update applies fn inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ferrors.StoreError("begin transaction").WithCause(err).Build()
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRowContext(ctx, "SELECT data FROM task_escrows WHERE slot = ?", key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, ferrors.StoreError("query record").WithCause(err).WithContext("slot", key).Build()
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE task_escrows SET data = ?, updated_at = unixepoch() WHERE slot = ?",
		next, key,
	); err != nil {
		return nil, ferrors.StoreError("update record").WithCause(err).WithContext("slot", key).Build()
	}
	if err := tx.Commit(); err != nil {
		return nil, ferrors.StoreError("commit transaction").WithCause(err).WithContext("slot", key).Build()
	}
	return next, nil
}

// Scan streams every row ordered by slot.
func (s *SQLiteStore) Scan(ctx context.Context, fn ScanFunc) error {
	rows, err := s.db.QueryContext(ctx, "SELECT slot, data FROM task_escrows ORDER BY slot")
	if err != nil {
		return ferrors.StoreError("query records").WithCause(err).Build()
	}

	type row struct {
		key  string
		data []byte
	}
	// Rows are buffered so fn may call back into the store over the single connection.
	var buffered []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.data); err != nil {
			_ = rows.Close()
			return ferrors.StoreError("scan record").WithCause(err).Build()
		}
		buffered = append(buffered, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return ferrors.StoreError("iterate records").WithCause(err).Build()
	}
	_ = rows.Close()

	for _, r := range buffered {
		if err := fn(r.key, r.data); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
