package resource

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *RecordStore, *GraphStore, *AggregateStore, *CacheStore) {
	t.Helper()
	dir := t.TempDir()

	records, err := NewRecordStore(RecordStoreConfig{
		DBPath: filepath.Join(dir, "records.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	graph, err := NewGraphStore(GraphStoreConfig{
		DBPath: filepath.Join(dir, "graph.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	aggregates, err := NewAggregateStore(AggregateStoreConfig{
		DBPath: filepath.Join(dir, "aggregates.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { aggregates.Close() })

	cache, err := NewCacheStore(CacheStoreConfig{
		DefaultTTL: time.Minute,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return NewRouter(records, graph, aggregates, cache), records, graph, aggregates, cache
}

func TestParseURI(t *testing.T) {
	t.Run("valid URI", func(t *testing.T) {
		scheme, path, err := ParseURI("record-store://leads/lead-42")
		require.NoError(t, err)
		assert.Equal(t, SchemeRecordStore, scheme)
		assert.Equal(t, "leads/lead-42", path)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, _, err := ParseURI("record-store/leads")
		assert.Error(t, err)
	})

	t.Run("empty scheme", func(t *testing.T) {
		_, _, err := ParseURI("://leads")
		assert.Error(t, err)
	})
}

func TestRouterResolve(t *testing.T) {
	router, _, _, _, _ := newTestRouter(t)

	t.Run("resolves registered scheme", func(t *testing.T) {
		adapter, path, err := router.Resolve("graph-store://lead-42")
		require.NoError(t, err)
		assert.Equal(t, SchemeGraphStore, adapter.Scheme())
		assert.Equal(t, "lead-42", path)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, _, err := router.Resolve("blob-store://whatever")
		assert.ErrorIs(t, err, ErrUnsupportedScheme)
	})

	t.Run("all four schemes registered", func(t *testing.T) {
		assert.Len(t, router.Schemes(), 4)
	})
}

func TestRouterAccess(t *testing.T) {
	router, _, _, aggregates, _ := newTestRouter(t)
	ctx := context.Background()

	t.Run("record write then read", func(t *testing.T) {
		_, err := router.Access(ctx, Descriptor{
			Scheme:    SchemeRecordStore,
			Path:      "leads/lead-1",
			Operation: OpWrite,
		}, Document{"leadId": "lead-1", "region": "EMEA"})
		require.NoError(t, err)

		doc, err := router.Access(ctx, Descriptor{
			Scheme:    SchemeRecordStore,
			Path:      "leads/lead-1",
			Operation: OpRead,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "EMEA", doc["region"])
	})

	t.Run("write on aggregate store is rejected", func(t *testing.T) {
		_, err := router.Access(ctx, Descriptor{
			Scheme:    SchemeAggregateStore,
			Path:      "campaign_performance/c-1",
			Operation: OpWrite,
		}, Document{"ctr": 0.03})
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
	})

	t.Run("rejected write leaves aggregate untouched", func(t *testing.T) {
		_, err := aggregates.Read(ctx, "campaign_performance/c-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("search on cache store is rejected", func(t *testing.T) {
		_, err := router.AccessSearch(ctx, Descriptor{
			Scheme:    SchemeCacheStore,
			Path:      "conv-1",
			Operation: OpSearch,
		}, Query{})
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
	})

	t.Run("unknown scheme through Access", func(t *testing.T) {
		_, err := router.Access(ctx, Descriptor{
			Scheme:    Scheme("vector-store"),
			Path:      "x",
			Operation: OpRead,
		}, nil)
		assert.ErrorIs(t, err, ErrUnsupportedScheme)
	})
}
