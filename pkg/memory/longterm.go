package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/purplemerit/merit/internal/observability"
	"github.com/purplemerit/merit/pkg/resource"
)

// UpsertLongTerm merges delta fields into a lead's profile. Merging is
// per-field last-write-wins under a per-lead lock, so concurrent upserts
// touching different fields both survive.
func (m *Manager) UpsertLongTerm(ctx context.Context, leadID string, delta map[string]interface{}) (map[string]interface{}, error) {
	if leadID == "" {
		return nil, fmt.Errorf("lead id is required")
	}
	start := time.Now()

	mu := m.lockLead(leadID)
	mu.Lock()
	defer mu.Unlock()

	profile, err := m.records.Get(ctx, collectionProfiles, leadID)
	if err != nil {
		if !errors.Is(err, resource.ErrNotFound) {
			return nil, err
		}
		profile = resource.Document{}
	}

	for k, v := range delta {
		profile[k] = v
	}
	profile["leadId"] = leadID
	profile["updatedAt"] = time.Now().UTC().Format(time.RFC3339)

	if err := m.records.Put(ctx, collectionProfiles, leadID, profile); err != nil {
		return nil, fmt.Errorf("failed to persist profile %s: %w", leadID, err)
	}
	observability.RecordMemoryWrite(TierLongTerm, time.Since(start))
	return profile, nil
}

// RetrieveLongTerm returns a lead's merged profile
func (m *Manager) RetrieveLongTerm(ctx context.Context, leadID string) (map[string]interface{}, error) {
	start := time.Now()
	profile, err := m.records.Get(ctx, collectionProfiles, leadID)
	observability.RecordMemoryRead(TierLongTerm, time.Since(start))
	if errors.Is(err, resource.ErrNotFound) {
		return nil, fmt.Errorf("%w: lead %s", ErrNotFound, leadID)
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}
