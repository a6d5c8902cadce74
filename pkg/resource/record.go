package resource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// RecordStore serves the record-store scheme: tabular/document records
// such as leads and campaigns, grouped into collections. Paths take the
// form {collection}/{key} for reads and writes and {collection} for
// searches.
type RecordStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// RecordStoreConfig holds record store configuration
type RecordStoreConfig struct {
	DBPath string
	Logger zerolog.Logger
}

// NewRecordStore creates a SQLite-backed record store
func NewRecordStore(cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			key TEXT NOT NULL,
			doc TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, key)
		);
		CREATE INDEX IF NOT EXISTS idx_records_created ON records(collection, created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RecordStore{db: db, logger: cfg.Logger}, nil
}

// Scheme implements Adapter
func (s *RecordStore) Scheme() Scheme { return SchemeRecordStore }

// Supports implements Adapter
func (s *RecordStore) Supports(op Operation) bool {
	switch op {
	case OpRead, OpWrite, OpSearch:
		return true
	}
	return false
}

// Read implements Adapter; path is {collection}/{key}
func (s *RecordStore) Read(ctx context.Context, path string) (Document, error) {
	collection, key, err := splitRecordPath(path)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, collection, key)
}

// Write implements Adapter; path is {collection}/{key}
func (s *RecordStore) Write(ctx context.Context, path string, doc Document) error {
	collection, key, err := splitRecordPath(path)
	if err != nil {
		return err
	}
	return s.Put(ctx, collection, key, doc)
}

// Search implements Adapter; path is {collection}
func (s *RecordStore) Search(ctx context.Context, path string, query Query) ([]Document, error) {
	return s.List(ctx, path, query.Filter, query.Limit)
}

// Get retrieves one record
func (s *RecordStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var raw string
	err := withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT doc FROM records WHERE collection = ? AND key = ?",
			collection, key,
		).Scan(&raw)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

// Put stores a record, replacing any existing document under the key
func (s *RecordStore) Put(ctx context.Context, collection, key string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	now := time.Now().Unix()
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO records (collection, key, doc, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
		`, collection, key, string(raw), now, now)
		return err
	})
}

// InsertIfAbsent stores a record only when the key is vacant; returns true
// when the record was inserted. Used for append-only collections and
// idempotency markers.
func (s *RecordStore) InsertIfAbsent(ctx context.Context, collection, key string, doc Document) (bool, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to encode record: %w", err)
	}

	now := time.Now().Unix()
	var inserted bool
	err = withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO records (collection, key, doc, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, collection, key, string(raw), now, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		inserted = n > 0
		return err
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// List returns records of a collection matching a field-equality filter,
// most recently created first. rowid breaks created_at ties in insertion
// order; upserts keep their original rowid.
func (s *RecordStore) List(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]Document, error) {
	var rows *sql.Rows
	err := withRetry(ctx, func() error {
		var err error
		rows, err = s.db.QueryContext(ctx,
			"SELECT doc FROM records WHERE collection = ? ORDER BY created_at DESC, rowid DESC",
			collection,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			s.logger.Warn().Err(err).Str("collection", collection).Msg("Skipping undecodable record")
			continue
		}
		if !matchesFilter(doc, filter) {
			continue
		}
		docs = append(docs, doc)
		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	return docs, rows.Err()
}

// Delete removes a record
func (s *RecordStore) Delete(ctx context.Context, collection, key string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"DELETE FROM records WHERE collection = ? AND key = ?",
			collection, key,
		)
		return err
	})
}

// Close closes the underlying database
func (s *RecordStore) Close() error {
	return s.db.Close()
}

func splitRecordPath(path string) (collection, key string, err error) {
	idx := strings.Index(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", fmt.Errorf("record path must be {collection}/{key}, got %q", path)
	}
	return path[:idx], path[idx+1:], nil
}
