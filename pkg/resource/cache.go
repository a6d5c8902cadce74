package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/purplemerit/merit/internal/observability"
	"github.com/rs/zerolog"
)

// CacheEntry is one live cache record with its expiry
type CacheEntry struct {
	Key       string
	Doc       Document
	StoredAt  time.Time
	ExpiresAt time.Time
}

// CacheStore serves the cache-store scheme: ephemeral in-process
// key/value entries with per-entry TTL. Expiry is checked lazily on read
// and enforced by a background sweep.
type CacheStore struct {
	mu         sync.RWMutex
	entries    map[string]CacheEntry
	defaultTTL time.Duration
	logger     zerolog.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

// CacheStoreConfig holds cache store configuration
type CacheStoreConfig struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	Logger        zerolog.Logger
}

// NewCacheStore creates a cache store and starts its sweeper
func NewCacheStore(cfg CacheStoreConfig) (*CacheStore, error) {
	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("default TTL must be positive")
	}

	s := &CacheStore{
		entries:    make(map[string]CacheEntry),
		defaultTTL: cfg.DefaultTTL,
		logger:     cfg.Logger,
		stop:       make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go s.sweepLoop(cfg.SweepInterval)
	}

	return s, nil
}

// Scheme implements Adapter
func (s *CacheStore) Scheme() Scheme { return SchemeCacheStore }

// Supports implements Adapter
func (s *CacheStore) Supports(op Operation) bool {
	return op == OpRead || op == OpWrite
}

// Read implements Adapter
func (s *CacheStore) Read(ctx context.Context, path string) (Document, error) {
	doc, ok := s.Get(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return doc, nil
}

// Write implements Adapter, applying the default TTL
func (s *CacheStore) Write(ctx context.Context, path string, doc Document) error {
	s.Set(path, doc, 0)
	return nil
}

// Search implements Adapter; always rejected
func (s *CacheStore) Search(ctx context.Context, path string, query Query) ([]Document, error) {
	return nil, fmt.Errorf("%w: search on %s", ErrUnsupportedOperation, SchemeCacheStore)
}

// Set stores a document, overwriting any previous entry and resetting the
// TTL. A non-positive ttl applies the default.
func (s *CacheStore) Set(key string, doc Document, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()

	s.mu.Lock()
	s.entries[key] = CacheEntry{
		Key:       key,
		Doc:       doc,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	n := len(s.entries)
	s.mu.Unlock()

	observability.SetShortTermEntries(n)
}

// Get retrieves a live document. Expired entries behave as absent and are
// dropped on the spot.
func (s *CacheStore) Get(key string) (Document, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		s.mu.Lock()
		if current, exists := s.entries[key]; exists && time.Now().After(current.ExpiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	return entry.Doc, true
}

// Delete removes an entry
func (s *CacheStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	n := len(s.entries)
	s.mu.Unlock()

	observability.SetShortTermEntries(n)
}

// Entries returns a point-in-time snapshot of live entries
func (s *CacheStore) Entries() []CacheEntry {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]CacheEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			continue
		}
		snapshot = append(snapshot, entry)
	}
	return snapshot
}

// Sweep removes expired entries and returns how many were dropped
func (s *CacheStore) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	n := len(s.entries)
	s.mu.Unlock()

	observability.SetShortTermEntries(n)
	return removed
}

func (s *CacheStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug().Int("removed", removed).Msg("Cache sweep completed")
			}
		}
	}
}

// Close stops the sweeper
func (s *CacheStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
