package memory

import (
	"context"
	"testing"
	"time"

	"github.com/purplemerit/merit/pkg/resource"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsolidator(t *testing.T, mgr *Manager, threshold float64) *Consolidator {
	t.Helper()
	c, err := NewConsolidator(ConsolidatorConfig{
		Manager:             mgr,
		ImportanceThreshold: threshold,
		Window:              15 * time.Minute,
		Logger:              zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestConsolidatorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes important context", func(t *testing.T) {
		mgr := newTestManager(t, time.Minute)
		c := newTestConsolidator(t, mgr, 0.5)

		require.NoError(t, mgr.StoreShortTerm("conv-win", Context{
			"leadId":   "lead-1",
			"scenario": "engagement",
			"outcome":  "converted",
			"turns":    float64(6),
			"topics":   []interface{}{"webinars"},
		}, time.Minute))

		promoted, err := c.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, promoted)

		episodes, err := mgr.QueryEpisodes(ctx, EpisodeFilter{Scenario: "engagement"})
		require.NoError(t, err)
		require.Len(t, episodes, 1)
		assert.Equal(t, "conv-win", episodes[0].ConversationID)
		assert.Equal(t, "converted", episodes[0].Outcome)

		triples, err := mgr.SearchTriples(ctx, resource.TriplePattern{Subject: "lead-1"})
		require.NoError(t, err)
		assert.Len(t, triples, 2)
	})

	t.Run("skips unimportant context", func(t *testing.T) {
		mgr := newTestManager(t, time.Minute)
		c := newTestConsolidator(t, mgr, 0.7)

		require.NoError(t, mgr.StoreShortTerm("conv-dull", Context{
			"leadId": "lead-2",
			"turns":  float64(1),
		}, time.Minute))

		promoted, err := c.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, promoted)
	})

	t.Run("rerun within a window is idempotent", func(t *testing.T) {
		mgr := newTestManager(t, time.Minute)
		c := newTestConsolidator(t, mgr, 0.4)

		require.NoError(t, mgr.StoreShortTerm("conv-rerun", Context{
			"leadId":   "lead-3",
			"scenario": "lead_triage",
			"outcome":  "qualified",
			"turns":    float64(5),
		}, time.Minute))

		promoted, err := c.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, promoted)

		promoted, err = c.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, promoted)

		episodes, err := mgr.QueryEpisodes(ctx, EpisodeFilter{Scenario: "lead_triage"})
		require.NoError(t, err)
		assert.Len(t, episodes, 1)

		triples, err := mgr.SearchTriples(ctx, resource.TriplePattern{Subject: "lead-3", Predicate: "experienced"})
		require.NoError(t, err)
		require.Len(t, triples, 1)
		assert.InDelta(t, 1.0, triples[0].Weight, 1e-9)
	})

	t.Run("never evicts short-term entries", func(t *testing.T) {
		mgr := newTestManager(t, time.Minute)
		c := newTestConsolidator(t, mgr, 0.3)

		require.NoError(t, mgr.StoreShortTerm("conv-keep", Context{
			"leadId":   "lead-4",
			"scenario": "engagement",
			"outcome":  "converted",
			"turns":    float64(8),
		}, time.Minute))

		_, err := c.Run(ctx)
		require.NoError(t, err)

		kept, err := mgr.RetrieveShortTerm("conv-keep")
		require.NoError(t, err)
		assert.Equal(t, "lead-4", kept["leadId"])
	})
}

func TestOutcomeSignal(t *testing.T) {
	assert.Equal(t, 1.0, outcomeSignal("converted"))
	assert.Equal(t, 0.8, outcomeSignal("lost"))
	assert.Equal(t, 0.6, outcomeSignal("qualified"))
	assert.Equal(t, 0.2, outcomeSignal(""))
	assert.Equal(t, 0.4, outcomeSignal("something-else"))
}

func TestConsolidatorConfigValidation(t *testing.T) {
	mgr := newTestManager(t, time.Minute)

	t.Run("threshold bounds", func(t *testing.T) {
		_, err := NewConsolidator(ConsolidatorConfig{Manager: mgr, ImportanceThreshold: 0})
		assert.Error(t, err)
		_, err = NewConsolidator(ConsolidatorConfig{Manager: mgr, ImportanceThreshold: 1.5})
		assert.Error(t, err)
	})

	t.Run("bad schedule", func(t *testing.T) {
		_, err := NewConsolidator(ConsolidatorConfig{
			Manager:             mgr,
			ImportanceThreshold: 0.7,
			Schedule:            "not a cron spec",
		})
		assert.Error(t, err)
	})
}
