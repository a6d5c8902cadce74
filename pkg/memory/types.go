package memory

import (
	"errors"
	"time"
)

// Tier names used in metrics and logs
const (
	TierShortTerm = "short_term"
	TierLongTerm  = "long_term"
	TierEpisodic  = "episodic"
	TierSemantic  = "semantic"
)

// ErrNotFound is returned when a tier holds nothing for the key
var ErrNotFound = errors.New("memory entry not found")

// Context is one conversation's working state held in short-term memory
type Context map[string]interface{}

// Episode is one distilled interaction outcome. Episodes are append-only:
// once written they are never mutated or deleted.
type Episode struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversationId"`
	LeadID         string                 `json:"leadId,omitempty"`
	Scenario       string                 `json:"scenario"`
	Outcome        string                 `json:"outcome"`
	Importance     float64                `json:"importance"`
	Details        map[string]interface{} `json:"details,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
}

// EpisodeFilter narrows an episodic query. Empty fields match everything;
// Offset restarts the sequence mid-way.
type EpisodeFilter struct {
	Scenario string
	Outcome  string
	LeadID   string
	Limit    int
	Offset   int
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}
