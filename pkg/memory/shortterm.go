package memory

import (
	"fmt"
	"time"

	"github.com/purplemerit/merit/internal/observability"
	"github.com/purplemerit/merit/pkg/resource"
)

// StoreShortTerm stores a conversation context, overwriting any previous
// context for the id and resetting its TTL. A non-positive ttl applies
// the store default.
func (m *Manager) StoreShortTerm(conversationID string, ctx Context, ttl time.Duration) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	start := time.Now()
	m.cache.Set(conversationID, resource.Document(ctx), ttl)
	observability.RecordMemoryWrite(TierShortTerm, time.Since(start))
	return nil
}

// RetrieveShortTerm returns the live context for a conversation. Expired
// contexts behave exactly like absent ones.
func (m *Manager) RetrieveShortTerm(conversationID string) (Context, error) {
	start := time.Now()
	doc, ok := m.cache.Get(conversationID)
	observability.RecordMemoryRead(TierShortTerm, time.Since(start))
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	return Context(doc), nil
}

// ShortTermSnapshot returns every live short-term context keyed by
// conversation id. Used by consolidation; never mutates TTLs.
func (m *Manager) ShortTermSnapshot() map[string]Context {
	entries := m.cache.Entries()
	snapshot := make(map[string]Context, len(entries))
	for _, e := range entries {
		snapshot[e.Key] = Context(e.Doc)
	}
	return snapshot
}
