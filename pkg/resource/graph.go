package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Triple is one weighted knowledge graph edge. (Subject, Predicate,
// Object) carries set semantics: reinforcing an existing triple updates
// its weight instead of duplicating it.
type Triple struct {
	Subject   string  `json:"subject"`
	Predicate string  `json:"predicate"`
	Object    string  `json:"object"`
	Weight    float64 `json:"weight"`
}

// TriplePattern matches triples; empty fields are wildcards
type TriplePattern struct {
	Subject   string
	Predicate string
	Object    string
	Limit     int
}

// GraphStore serves the graph-store scheme: the knowledge triple store
// shared with the semantic memory tier.
type GraphStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// GraphStoreConfig holds graph store configuration
type GraphStoreConfig struct {
	DBPath string
	Logger zerolog.Logger
}

// NewGraphStore creates a SQLite-backed triple store
func NewGraphStore(cfg GraphStoreConfig) (*GraphStore, error) {
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
		CREATE TABLE IF NOT EXISTS triples (
			subject TEXT NOT NULL,
			predicate TEXT NOT NULL,
			object TEXT NOT NULL,
			weight REAL NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (subject, predicate, object)
		);
		CREATE INDEX IF NOT EXISTS idx_triples_weight ON triples(weight DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &GraphStore{db: db, logger: cfg.Logger}, nil
}

// Scheme implements Adapter
func (s *GraphStore) Scheme() Scheme { return SchemeGraphStore }

// Supports implements Adapter
func (s *GraphStore) Supports(op Operation) bool {
	switch op {
	case OpRead, OpWrite, OpSearch:
		return true
	}
	return false
}

// Read implements Adapter; path is the subject, returning its triples as
// a single document
func (s *GraphStore) Read(ctx context.Context, path string) (Document, error) {
	triples, err := s.SearchPattern(ctx, TriplePattern{Subject: path})
	if err != nil {
		return nil, err
	}
	if len(triples) == 0 {
		return nil, fmt.Errorf("%w: subject %s", ErrNotFound, path)
	}

	edges := make([]interface{}, 0, len(triples))
	for _, t := range triples {
		edges = append(edges, map[string]interface{}{
			"predicate": t.Predicate,
			"object":    t.Object,
			"weight":    t.Weight,
		})
	}
	return Document{"subject": path, "edges": edges}, nil
}

// Write implements Adapter; the document carries predicate, object and an
// optional weight delta (default 1)
func (s *GraphStore) Write(ctx context.Context, path string, doc Document) error {
	predicate, _ := doc["predicate"].(string)
	object, _ := doc["object"].(string)
	if predicate == "" || object == "" {
		return fmt.Errorf("graph write requires predicate and object fields")
	}
	delta := 1.0
	if v, ok := doc["weight"].(float64); ok {
		delta = v
	}
	return s.Reinforce(ctx, path, predicate, object, delta)
}

// Search implements Adapter; filter fields subject/predicate/object form
// the pattern
func (s *GraphStore) Search(ctx context.Context, path string, query Query) ([]Document, error) {
	pattern := TriplePattern{Limit: query.Limit}
	if v, ok := query.Filter["subject"].(string); ok {
		pattern.Subject = v
	}
	if v, ok := query.Filter["predicate"].(string); ok {
		pattern.Predicate = v
	}
	if v, ok := query.Filter["object"].(string); ok {
		pattern.Object = v
	}

	triples, err := s.SearchPattern(ctx, pattern)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(triples))
	for _, t := range triples {
		docs = append(docs, Document{
			"subject":   t.Subject,
			"predicate": t.Predicate,
			"object":    t.Object,
			"weight":    t.Weight,
		})
	}
	return docs, nil
}

// Reinforce increases the weight of a triple, creating it at delta when
// absent
func (s *GraphStore) Reinforce(ctx context.Context, subject, predicate, object string, delta float64) error {
	now := time.Now().Unix()
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO triples (subject, predicate, object, weight, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(subject, predicate, object)
			DO UPDATE SET weight = weight + excluded.weight, updated_at = excluded.updated_at
		`, subject, predicate, object, delta, now)
		return err
	})
}

// Decay multiplies every weight by factor
func (s *GraphStore) Decay(ctx context.Context, factor float64) error {
	if factor <= 0 || factor > 1 {
		return fmt.Errorf("decay factor must be in (0, 1], got %v", factor)
	}
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "UPDATE triples SET weight = weight * ?", factor)
		return err
	})
}

// SearchPattern returns triples matching the pattern, heaviest first
func (s *GraphStore) SearchPattern(ctx context.Context, pattern TriplePattern) ([]Triple, error) {
	sqlQuery := "SELECT subject, predicate, object, weight FROM triples WHERE 1=1"
	args := []interface{}{}
	if pattern.Subject != "" {
		sqlQuery += " AND subject = ?"
		args = append(args, pattern.Subject)
	}
	if pattern.Predicate != "" {
		sqlQuery += " AND predicate = ?"
		args = append(args, pattern.Predicate)
	}
	if pattern.Object != "" {
		sqlQuery += " AND object = ?"
		args = append(args, pattern.Object)
	}
	sqlQuery += " ORDER BY weight DESC"
	if pattern.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, pattern.Limit)
	}

	var rows *sql.Rows
	err := withRetry(ctx, func() error {
		var err error
		rows, err = s.db.QueryContext(ctx, sqlQuery, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search triples: %w", err)
	}
	defer rows.Close()

	var triples []Triple
	for rows.Next() {
		var t Triple
		if err := rows.Scan(&t.Subject, &t.Predicate, &t.Object, &t.Weight); err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
	return triples, rows.Err()
}

// Close closes the underlying database
func (s *GraphStore) Close() error {
	return s.db.Close()
}
