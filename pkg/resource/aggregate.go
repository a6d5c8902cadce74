package resource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// AggregateStore serves the aggregate-store scheme: precomputed analytics
// aggregates such as campaign performance rollups. Read-only through the
// protocol; aggregates are ingested by an external pipeline.
type AggregateStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// AggregateStoreConfig holds aggregate store configuration
type AggregateStoreConfig struct {
	DBPath string
	Logger zerolog.Logger
}

// NewAggregateStore creates a SQLite-backed aggregate store
func NewAggregateStore(cfg AggregateStoreConfig) (*AggregateStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS aggregates (
			name TEXT NOT NULL,
			key TEXT NOT NULL,
			doc TEXT NOT NULL,
			computed_at INTEGER NOT NULL,
			PRIMARY KEY (name, key)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &AggregateStore{db: db, logger: cfg.Logger}, nil
}

// Scheme implements Adapter
func (s *AggregateStore) Scheme() Scheme { return SchemeAggregateStore }

// Supports implements Adapter; aggregates accept no protocol writes
func (s *AggregateStore) Supports(op Operation) bool {
	return op == OpRead || op == OpSearch
}

// Read implements Adapter; path is {name}/{key}
func (s *AggregateStore) Read(ctx context.Context, path string) (Document, error) {
	name, key, err := splitRecordPath(path)
	if err != nil {
		return nil, err
	}

	var raw string
	err = withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT doc FROM aggregates WHERE name = ? AND key = ?",
			name, key,
		).Scan(&raw)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregate: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode aggregate %s/%s: %w", name, key, err)
	}
	return doc, nil
}

// Write implements Adapter; always rejected
func (s *AggregateStore) Write(ctx context.Context, path string, doc Document) error {
	return fmt.Errorf("%w: write on %s", ErrUnsupportedOperation, SchemeAggregateStore)
}

// Search implements Adapter; path is the aggregate name
func (s *AggregateStore) Search(ctx context.Context, path string, query Query) ([]Document, error) {
	var rows *sql.Rows
	err := withRetry(ctx, func() error {
		var err error
		rows, err = s.db.QueryContext(ctx,
			"SELECT doc FROM aggregates WHERE name = ? ORDER BY computed_at DESC",
			path,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search aggregates: %w", err)
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
			s.logger.Warn().Err(err).Str("name", path).Msg("Skipping undecodable aggregate")
			continue
		}
		if !matchesFilter(doc, query.Filter) {
			continue
		}
		docs = append(docs, doc)
		if query.Limit > 0 && len(docs) >= query.Limit {
			break
		}
	}
	return docs, rows.Err()
}

// Ingest stores a computed aggregate. Not reachable through the protocol
// surface; used by the ingestion pipeline and tests.
func (s *AggregateStore) Ingest(ctx context.Context, name, key string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate: %w", err)
	}
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO aggregates (name, key, doc, computed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name, key) DO UPDATE SET doc = excluded.doc, computed_at = excluded.computed_at
		`, name, key, string(raw), time.Now().Unix())
		return err
	})
}

// Close closes the underlying database
func (s *AggregateStore) Close() error {
	return s.db.Close()
}
