package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/orchestrator"
	"github.com/rs/zerolog"
)

// communicationTemplates maps engagement type to per-channel base copy
var communicationTemplates = map[string]map[string]string{
	"welcome": {
		"email":  "Welcome to Purple Merit! We're excited to help you optimize your marketing funnel.",
		"sms":    "Welcome to Purple Merit! Let's boost your marketing ROI.",
		"social": "Thanks for connecting! Ready to transform your marketing?",
	},
	"follow_up": {
		"email":  "Following up on our previous conversation about your marketing goals.",
		"sms":    "Quick follow-up on your marketing optimization needs.",
		"social": "Checking in on your marketing transformation journey.",
	},
	"demo_invite": {
		"email":  "Ready to see Purple Merit in action? Let's schedule a personalized demo.",
		"sms":    "Book your Purple Merit demo: [link]",
		"social": "See Purple Merit in action - book your demo today!",
	},
}

// EngagementAgent assembles personalized outreach over the channel that
// fits the lead and records engagement history per lead
type EngagementAgent struct {
	memories *memory.Manager
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewEngagementAgent creates the engagement agent
func NewEngagementAgent(memories *memory.Manager, timeout time.Duration, logger zerolog.Logger) *EngagementAgent {
	return &EngagementAgent{memories: memories, timeout: timeout, logger: logger}
}

// Descriptor implements orchestrator.Agent
func (a *EngagementAgent) Descriptor() orchestrator.AgentDescriptor {
	return orchestrator.AgentDescriptor{
		AgentType:    "Engagement",
		Timeout:      a.timeout,
		Capabilities: []string{"engagement"},
	}
}

// Process implements orchestrator.Agent. The payload carries leadData and
// an optional engagementType (default welcome).
func (a *EngagementAgent) Process(ctx context.Context, requestType string, payload orchestrator.Payload) (orchestrator.Payload, error) {
	lead, ok := payload["leadData"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("engagement request requires leadData")
	}
	engagementType, _ := payload["engagementType"].(string)
	if engagementType == "" {
		engagementType = "welcome"
	}

	channel := SelectChannel(lead)
	content := PersonalizeContent(lead, engagementType, channel)

	leadID, _ := lead["leadId"].(string)
	sentAt := time.Now().UTC()

	if leadID != "" {
		history := map[string]interface{}{
			"channel": channel,
			"type":    engagementType,
			"status":  "sent",
			"sentAt":  sentAt.Format(time.RFC3339),
		}
		if _, err := a.memories.UpsertLongTerm(ctx, leadID, map[string]interface{}{
			"lastEngagement": history,
		}); err != nil {
			return nil, fmt.Errorf("failed to record engagement: %w", err)
		}
	}

	a.logger.Info().Str("lead", leadID).Str("channel", channel).Str("type", engagementType).Msg("Outreach prepared")

	return orchestrator.Payload{
		"channel":   channel,
		"content":   content,
		"messageId": fmt.Sprintf("MSG_%s", sentAt.Format("20060102_150405")),
		"status":    "sent",
	}, nil
}

// HandleHandoff implements orchestrator.Agent; handed-off leads get a
// follow-up touch
func (a *EngagementAgent) HandleHandoff(ctx context.Context, handoff orchestrator.HandoffContext) (orchestrator.Payload, error) {
	return a.Process(ctx, "engagement", orchestrator.Payload{
		"leadData":       handoff.Payload,
		"conversationId": handoff.ConversationID,
		"engagementType": "follow_up",
	})
}

// TrackEngagement learns from an interaction: positive outcomes become
// episodes and the lead's channel preference is refreshed
func (a *EngagementAgent) TrackEngagement(ctx context.Context, interaction map[string]interface{}) error {
	leadID, _ := interaction["leadId"].(string)
	if leadID == "" {
		return fmt.Errorf("interaction requires leadId")
	}
	channel, _ := interaction["channel"].(string)
	eventType, _ := interaction["eventType"].(string)
	outcome, _ := interaction["outcome"].(string)

	if outcome == "positive" || outcome == "callback_requested" {
		if _, err := a.memories.AppendEpisode(ctx, memory.Episode{
			LeadID:   leadID,
			Scenario: fmt.Sprintf("%s_%s", channel, eventType),
			Outcome:  outcome,
			Details:  interaction,
		}); err != nil {
			return err
		}
	}

	delta := map[string]interface{}{}
	if channel != "" {
		delta["preferredChannel"] = channel
	}
	delta["lastInteractionAt"] = time.Now().UTC().Format(time.RFC3339)
	_, err := a.memories.UpsertLongTerm(ctx, leadID, delta)
	return err
}

// SelectChannel picks the outreach channel from persona and region,
// falling back to the lead's stated preference
func SelectChannel(lead map[string]interface{}) string {
	persona, _ := lead["persona"].(string)
	region, _ := lead["region"].(string)

	switch {
	case (persona == "Founder" || persona == "CMO") && (region == "US" || region == "EU"):
		return "email"
	case persona == "Marketing Manager":
		return "social"
	default:
		preferred, _ := lead["preferredChannel"].(string)
		if preferred == "" {
			preferred = "Email"
		}
		return strings.ToLower(preferred)
	}
}

// PersonalizeContent assembles outreach copy from the template table plus
// industry and company-size personalization
func PersonalizeContent(lead map[string]interface{}, engagementType, channel string) string {
	content := communicationTemplates[engagementType][channel]

	if industry, _ := lead["industry"].(string); industry != "" {
		content += fmt.Sprintf(" We've helped many %s companies achieve their goals.", industry)
	}
	if size, _ := lead["companySize"].(string); size == "5000+" || size == "1001-5000" {
		content += " Our enterprise solutions are perfect for organizations of your size."
	}
	return content
}
