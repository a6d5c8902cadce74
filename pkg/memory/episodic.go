package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/purplemerit/merit/internal/observability"
	"github.com/purplemerit/merit/pkg/resource"
)

// AppendEpisode records an episode. The tier is append-only: a second
// append with the same episode id is a no-op and reports false. An empty
// id is assigned a fresh uuid.
func (m *Manager) AppendEpisode(ctx context.Context, ep Episode) (bool, error) {
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	if ep.OccurredAt.IsZero() {
		ep.OccurredAt = time.Now().UTC()
	}
	start := time.Now()

	doc := resource.Document{
		"id":             ep.ID,
		"conversationId": ep.ConversationID,
		"scenario":       ep.Scenario,
		"outcome":        ep.Outcome,
		"importance":     ep.Importance,
		"occurredAt":     ep.OccurredAt.Format(time.RFC3339Nano),
	}
	if ep.LeadID != "" {
		doc["leadId"] = ep.LeadID
	}
	if len(ep.Details) > 0 {
		doc["details"] = ep.Details
	}

	inserted, err := m.records.InsertIfAbsent(ctx, collectionEpisodes, ep.ID, doc)
	if err != nil {
		return false, fmt.Errorf("failed to append episode %s: %w", ep.ID, err)
	}
	observability.RecordMemoryWrite(TierEpisodic, time.Since(start))
	return inserted, nil
}

// QueryEpisodes returns episodes most recent first. The sequence is
// restartable: identical filters yield identical order, and Offset skips
// ahead without losing position.
func (m *Manager) QueryEpisodes(ctx context.Context, filter EpisodeFilter) ([]Episode, error) {
	start := time.Now()

	equality := map[string]interface{}{}
	if filter.Scenario != "" {
		equality["scenario"] = filter.Scenario
	}
	if filter.Outcome != "" {
		equality["outcome"] = filter.Outcome
	}
	if filter.LeadID != "" {
		equality["leadId"] = filter.LeadID
	}

	fetch := 0
	if filter.Limit > 0 {
		fetch = filter.Offset + filter.Limit
	}
	docs, err := m.records.List(ctx, collectionEpisodes, equality, fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	observability.RecordMemoryRead(TierEpisodic, time.Since(start))

	if filter.Offset > 0 {
		if filter.Offset >= len(docs) {
			return nil, nil
		}
		docs = docs[filter.Offset:]
	}

	episodes := make([]Episode, 0, len(docs))
	for _, doc := range docs {
		episodes = append(episodes, episodeFromDoc(doc))
	}
	return episodes, nil
}

func episodeFromDoc(doc resource.Document) Episode {
	ep := Episode{}
	if v, ok := doc["id"].(string); ok {
		ep.ID = v
	}
	if v, ok := doc["conversationId"].(string); ok {
		ep.ConversationID = v
	}
	if v, ok := doc["leadId"].(string); ok {
		ep.LeadID = v
	}
	if v, ok := doc["scenario"].(string); ok {
		ep.Scenario = v
	}
	if v, ok := doc["outcome"].(string); ok {
		ep.Outcome = v
	}
	if v, ok := doc["importance"].(float64); ok {
		ep.Importance = v
	}
	if v, ok := doc["details"].(map[string]interface{}); ok {
		ep.Details = v
	}
	if v, ok := doc["occurredAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			ep.OccurredAt = t
		}
	}
	return ep
}
