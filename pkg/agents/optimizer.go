package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/orchestrator"
	"github.com/rs/zerolog"
)

// Performance thresholds a healthy campaign clears
const (
	ctrThreshold            = 0.02
	cplThreshold            = 50.0
	roasThreshold           = 1.5
	conversionRateThreshold = 0.05

	autoPauseBudgetShare = 0.1
	scaleUpROAS          = 2.0
	scaleDownROAS        = 0.5
)

// OptimizerAgent analyzes campaign performance against CTR/CPL/ROAS
// thresholds and recommends optimizations
type OptimizerAgent struct {
	memories *memory.Manager
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewOptimizerAgent creates the campaign optimizer agent
func NewOptimizerAgent(memories *memory.Manager, timeout time.Duration, logger zerolog.Logger) *OptimizerAgent {
	return &OptimizerAgent{memories: memories, timeout: timeout, logger: logger}
}

// Descriptor implements orchestrator.Agent
func (a *OptimizerAgent) Descriptor() orchestrator.AgentDescriptor {
	return orchestrator.AgentDescriptor{
		AgentType:    "CampaignOptimizer",
		Timeout:      a.timeout,
		Capabilities: []string{"campaign_optimization"},
	}
}

// Process implements orchestrator.Agent. The payload carries campaignData
// with ctr, cplUsd, roas, conversions, cost and dailyBudgetUsd fields.
func (a *OptimizerAgent) Process(ctx context.Context, requestType string, payload orchestrator.Payload) (orchestrator.Payload, error) {
	campaign, ok := payload["campaignData"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("optimization request requires campaignData")
	}
	campaignID, _ := campaign["campaignId"].(string)

	analysis := AnalyzePerformance(campaign)

	conversationID, _ := payload["conversationId"].(string)
	if conversationID != "" {
		memCtx := memory.Context{
			"scenario":       "campaign_optimization",
			"campaignId":     campaignID,
			"score":          analysis["performanceScore"],
			"lastActivityAt": time.Now().UTC().Format(time.RFC3339Nano),
		}
		if err := a.memories.StoreShortTerm(conversationID, memCtx, 0); err != nil {
			a.logger.Warn().Err(err).Str("conversation", conversationID).Msg("Failed to store optimization context")
		}
	}

	a.logger.Info().Str("campaign", campaignID).Msg("Campaign analyzed")
	return orchestrator.Payload(analysis), nil
}

// HandleHandoff implements orchestrator.Agent
func (a *OptimizerAgent) HandleHandoff(ctx context.Context, handoff orchestrator.HandoffContext) (orchestrator.Payload, error) {
	return a.Process(ctx, "campaign_optimization", orchestrator.Payload{
		"campaignData":   handoff.Payload,
		"conversationId": handoff.ConversationID,
	})
}

// AnalyzePerformance checks a campaign's metrics against the thresholds
// and returns the score, per-metric status and recommendations
func AnalyzePerformance(campaign map[string]interface{}) map[string]interface{} {
	ctr := floatField(campaign, "ctr")
	cpl := floatField(campaign, "cplUsd")
	roas := floatField(campaign, "roas")
	conversions := floatField(campaign, "conversions")
	cost := floatField(campaign, "cost")
	dailyBudget := floatField(campaign, "dailyBudgetUsd")
	campaignID, _ := campaign["campaignId"].(string)

	var recommendations []map[string]interface{}
	if ctr < ctrThreshold {
		recommendations = append(recommendations, map[string]interface{}{
			"type":     "creative_optimization",
			"priority": "high",
			"message":  fmt.Sprintf("CTR (%.3f) below threshold. Consider testing new ad creatives.", ctr),
		})
	}
	if cpl > cplThreshold {
		recommendations = append(recommendations, map[string]interface{}{
			"type":     "targeting_refinement",
			"priority": "medium",
			"message":  fmt.Sprintf("CPL ($%.2f) above threshold. Review targeting parameters.", cpl),
		})
	}
	if roas < roasThreshold {
		recommendations = append(recommendations, map[string]interface{}{
			"type":     "budget_reallocation",
			"priority": "high",
			"message":  fmt.Sprintf("ROAS (%.2f) below threshold. Consider budget reallocation.", roas),
		})
	}
	if conversions == 0 && cost > dailyBudget*autoPauseBudgetShare {
		recommendations = append(recommendations, map[string]interface{}{
			"type":     "auto_pause",
			"priority": "critical",
			"message":  "No conversions with significant spend. Consider pausing campaign.",
		})
	}

	return map[string]interface{}{
		"campaignId":       campaignID,
		"performanceScore": PerformanceScore(campaign),
		"recommendations":  recommendations,
		"metricsAnalysis": map[string]interface{}{
			"ctr":  metricStatus(ctr, ctr >= ctrThreshold),
			"cpl":  metricStatus(cpl, cpl <= cplThreshold),
			"roas": metricStatus(roas, roas >= roasThreshold),
		},
	}
}

// PerformanceScore is the 0-100 weighted campaign health score: CTR 30,
// ROAS 50, conversions 20 normalized to ten
func PerformanceScore(campaign map[string]interface{}) float64 {
	ctr := floatField(campaign, "ctr")
	roas := floatField(campaign, "roas")
	conversions := floatField(campaign, "conversions")

	ctrScore := clamp(ctr/ctrThreshold) * 30
	roasScore := clamp(roas/roasThreshold) * 50
	conversionScore := clamp(conversions/10) * 20
	return ctrScore + roasScore + conversionScore
}

// AllocateBudget recommends per-channel budget moves by ROAS efficiency
func AllocateBudget(channelPerformance map[string]interface{}) map[string]string {
	recommendations := make(map[string]string, len(channelPerformance))
	for channel, raw := range channelPerformance {
		metrics, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		roas := floatField(metrics, "roas")
		switch {
		case roas > scaleUpROAS:
			recommendations[channel] = "increase_budget"
		case roas < scaleDownROAS:
			recommendations[channel] = "decrease_budget"
		default:
			recommendations[channel] = "maintain_budget"
		}
	}
	return recommendations
}

func metricStatus(value float64, good bool) map[string]interface{} {
	status := "poor"
	if good {
		status = "good"
	}
	return map[string]interface{}{"value": value, "status": status}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
