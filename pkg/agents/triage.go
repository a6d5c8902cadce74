package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/orchestrator"
	"github.com/rs/zerolog"
)

// Triage thresholds and rule tables
const (
	highValueThreshold = 80.0
	qualifiedThreshold = 60.0
)

var (
	companySizeWeights = map[string]float64{
		"5000+":     1.0,
		"1001-5000": 0.8,
		"201-1000":  0.6,
		"51-200":    0.4,
		"11-50":     0.2,
		"1-10":      0.1,
	}
	autoEscalateIndustries = map[string]bool{"Legal": true, "Healthcare": true}
	highValueIndustries    = map[string]bool{"SaaS": true, "FinTech": true, "HealthTech": true}
	decisionMakerPersonas  = map[string]bool{"Founder": true, "CMO": true, "CTO": true}
	priorityRegions        = map[string]bool{"US": true, "EU": true}
	highIntentSources      = map[string]bool{"Website": true, "Referral": true}
)

// TriageAgent classifies and scores incoming leads, then decides routing
type TriageAgent struct {
	memories *memory.Manager
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewTriageAgent creates the triage agent
func NewTriageAgent(memories *memory.Manager, timeout time.Duration, logger zerolog.Logger) *TriageAgent {
	return &TriageAgent{memories: memories, timeout: timeout, logger: logger}
}

// Descriptor implements orchestrator.Agent
func (a *TriageAgent) Descriptor() orchestrator.AgentDescriptor {
	return orchestrator.AgentDescriptor{
		AgentType:    "LeadTriage",
		Timeout:      a.timeout,
		Capabilities: []string{"lead_triage"},
	}
}

// Process implements orchestrator.Agent. The payload carries leadData and
// optionally conversationId; the response carries the category, the
// 0-100 score and a routing decision.
func (a *TriageAgent) Process(ctx context.Context, requestType string, payload orchestrator.Payload) (orchestrator.Payload, error) {
	lead, ok := payload["leadData"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("triage request requires leadData")
	}

	category := ClassifyLead(lead)
	score := ScoreLead(lead)
	routing := routeLead(category, score)

	conversationID, _ := payload["conversationId"].(string)
	leadID, _ := lead["leadId"].(string)

	if conversationID != "" {
		memCtx := memory.Context{
			"scenario":       "lead_triage",
			"leadId":         leadID,
			"category":       category,
			"score":          score,
			"lastActivityAt": time.Now().UTC().Format(time.RFC3339Nano),
		}
		if err := a.memories.StoreShortTerm(conversationID, memCtx, 0); err != nil {
			a.logger.Warn().Err(err).Str("conversation", conversationID).Msg("Failed to store triage context")
		}
	}

	if leadID != "" {
		if _, err := a.memories.UpsertLongTerm(ctx, leadID, map[string]interface{}{
			"category": category,
			"score":    score,
		}); err != nil {
			return nil, fmt.Errorf("failed to persist triage result: %w", err)
		}
	}

	a.logger.Info().Str("lead", leadID).Str("category", category).Float64("score", score).Msg("Lead triaged")

	return orchestrator.Payload{
		"triageCategory": category,
		"leadScore":      score,
		"routingDecision": map[string]interface{}{
			"destAgentType": routing.dest,
			"priority":      routing.priority,
			"reason":        routing.reason,
		},
	}, nil
}

// HandleHandoff implements orchestrator.Agent; the lead is re-evaluated
// with the handoff metadata folded in
func (a *TriageAgent) HandleHandoff(ctx context.Context, handoff orchestrator.HandoffContext) (orchestrator.Payload, error) {
	return a.Process(ctx, "lead_triage", orchestrator.Payload{
		"leadData":       handoff.Payload,
		"conversationId": handoff.ConversationID,
	})
}

// ClassifyLead buckets a lead by source, industry, size and persona
func ClassifyLead(lead map[string]interface{}) string {
	source, _ := lead["source"].(string)
	industry, _ := lead["industry"].(string)
	companySize, _ := lead["companySize"].(string)
	persona, _ := lead["persona"].(string)

	switch {
	case (source == "Google Ads" || source == "Website") && (persona == "Founder" || persona == "CMO"):
		return "Campaign Qualified"
	case autoEscalateIndustries[industry]:
		return "General Inquiry"
	case companySize == "5000+" || companySize == "1001-5000":
		return "Campaign Qualified"
	default:
		return "Cold Lead"
	}
}

// ScoreLead computes the 0-100 lead score from company size, industry,
// persona, region and source signals
func ScoreLead(lead map[string]interface{}) float64 {
	score := 0.0

	companySize, _ := lead["companySize"].(string)
	weight, ok := companySizeWeights[companySize]
	if !ok {
		weight = 0.1
	}
	score += weight * 30

	if industry, _ := lead["industry"].(string); highValueIndustries[industry] {
		score += 25
	}
	if persona, _ := lead["persona"].(string); decisionMakerPersonas[persona] {
		score += 20
	}
	if region, _ := lead["region"].(string); priorityRegions[region] {
		score += 15
	}
	if source, _ := lead["source"].(string); highIntentSources[source] {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

type routingDecision struct {
	dest     string
	priority string
	reason   string
}

func routeLead(category string, score float64) routingDecision {
	switch {
	case score >= highValueThreshold:
		return routingDecision{dest: "Engagement", priority: "high", reason: "high_value_lead"}
	case category == "Campaign Qualified":
		return routingDecision{dest: "Engagement", priority: "medium", reason: "qualified_lead"}
	default:
		return routingDecision{dest: "Engagement", priority: "low", reason: "nurture_lead"}
	}
}
