package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/purplemerit/merit/internal/observability"
	"github.com/purplemerit/merit/pkg/resource"
)

// ReinforceTriple strengthens a knowledge triple, creating it when
// absent. (subject, predicate, object) carries set semantics; reinforcing
// never duplicates an edge.
func (m *Manager) ReinforceTriple(ctx context.Context, subject, predicate, object string, delta float64) error {
	if subject == "" || predicate == "" || object == "" {
		return fmt.Errorf("triple requires subject, predicate and object")
	}
	start := time.Now()
	if err := m.graph.Reinforce(ctx, subject, predicate, object, delta); err != nil {
		return fmt.Errorf("failed to reinforce %s %s %s: %w", subject, predicate, object, err)
	}
	observability.RecordMemoryWrite(TierSemantic, time.Since(start))
	return nil
}

// Decay scales every triple weight by factor, weakening unrefreshed
// knowledge over time
func (m *Manager) Decay(ctx context.Context, factor float64) error {
	return m.graph.Decay(ctx, factor)
}

// SearchTriples returns triples matching the pattern, heaviest first
func (m *Manager) SearchTriples(ctx context.Context, pattern resource.TriplePattern) ([]resource.Triple, error) {
	start := time.Now()
	triples, err := m.graph.SearchPattern(ctx, pattern)
	observability.RecordMemoryRead(TierSemantic, time.Since(start))
	return triples, err
}
