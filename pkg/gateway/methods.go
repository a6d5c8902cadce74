package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/orchestrator"
	"github.com/purplemerit/merit/pkg/resource"
)

// registerBuiltinMethods registers the protocol method catalog
func (s *Server) registerBuiltinMethods() {
	readRoles := []string{RoleRead, RoleAgent}
	writeRoles := []string{RoleWrite, RoleAgent}

	_ = s.router.RegisterMethod("getLeadData", readRoles, map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"leadId"},
		"properties": map[string]interface{}{
			"leadId": map[string]interface{}{"type": "string", "minLength": 1},
		},
	}, s.handleGetLeadData)

	_ = s.router.RegisterMethod("searchGraph", readRoles, map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"subject":   map[string]interface{}{"type": "string"},
			"predicate": map[string]interface{}{"type": "string"},
			"object":    map[string]interface{}{"type": "string"},
			"limit":     map[string]interface{}{"type": "integer", "minimum": 0},
		},
	}, s.handleSearchGraph)

	_ = s.router.RegisterMethod("storeMemory", writeRoles, map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"tier"},
		"properties": map[string]interface{}{
			"tier": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"short_term", "long_term", "episodic", "semantic"},
			},
		},
	}, s.handleStoreMemory)

	_ = s.router.RegisterMethod("retrieveMemory", readRoles, map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"tier"},
		"properties": map[string]interface{}{
			"tier": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"short_term", "long_term", "episodic", "semantic"},
			},
		},
	}, s.handleRetrieveMemory)

	_ = s.router.RegisterMethod("recommendAction", readRoles, map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"scenario"},
		"properties": map[string]interface{}{
			"scenario": map[string]interface{}{"type": "string", "minLength": 1},
			"leadId":   map[string]interface{}{"type": "string"},
		},
	}, s.handleRecommendAction)

	_ = s.router.RegisterMethod("updateCampaign", writeRoles, map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"campaignId", "fields"},
		"properties": map[string]interface{}{
			"campaignId": map[string]interface{}{"type": "string", "minLength": 1},
			"fields":     map[string]interface{}{"type": "object"},
		},
	}, s.handleUpdateCampaign)

	_ = s.router.RegisterMethod("analyzePerformance", readRoles, map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"campaignId"},
		"properties": map[string]interface{}{
			"campaignId": map[string]interface{}{"type": "string", "minLength": 1},
		},
	}, s.handleAnalyzePerformance)
}

// handleGetLeadData reads a lead record
func (s *Server) handleGetLeadData(ctx context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
	leadID := params["leadId"].(string)

	doc, err := s.resources.Access(ctx, resource.Descriptor{
		Scheme:    resource.SchemeRecordStore,
		Path:      "leads/" + leadID,
		Operation: resource.OpRead,
	}, nil)
	if errors.Is(err, resource.ErrNotFound) {
		return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("lead %s not found", leadID)}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// handleSearchGraph queries the knowledge graph by pattern
func (s *Server) handleSearchGraph(ctx context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
	filter := map[string]interface{}{}
	for _, field := range []string{"subject", "predicate", "object"} {
		if v, ok := params[field].(string); ok && v != "" {
			filter[field] = v
		}
	}
	limit := 0
	if v, ok := params["limit"].(float64); ok {
		limit = int(v)
	}

	docs, err := s.resources.AccessSearch(ctx, resource.Descriptor{
		Scheme:    resource.SchemeGraphStore,
		Operation: resource.OpSearch,
	}, resource.Query{Filter: filter, Limit: limit})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"triples": docs, "count": len(docs)}, nil
}

// handleStoreMemory writes to the requested memory tier
func (s *Server) handleStoreMemory(ctx context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
	tier := params["tier"].(string)

	switch tier {
	case memory.TierShortTerm:
		conversationID, _ := params["conversationId"].(string)
		content, _ := params["context"].(map[string]interface{})
		if conversationID == "" || content == nil {
			return nil, &RPCError{Code: InvalidParams, Message: "short_term store requires conversationId and context"}
		}
		ttl := time.Duration(0)
		if v, ok := params["ttlSeconds"].(float64); ok {
			ttl = time.Duration(v) * time.Second
		}
		if err := s.memories.StoreShortTerm(conversationID, memory.Context(content), ttl); err != nil {
			return nil, err
		}
		return map[string]interface{}{"stored": true}, nil

	case memory.TierLongTerm:
		leadID, _ := params["leadId"].(string)
		delta, _ := params["delta"].(map[string]interface{})
		if leadID == "" || delta == nil {
			return nil, &RPCError{Code: InvalidParams, Message: "long_term store requires leadId and delta"}
		}
		profile, err := s.memories.UpsertLongTerm(ctx, leadID, delta)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"profile": profile}, nil

	case memory.TierEpisodic:
		raw, _ := params["episode"].(map[string]interface{})
		if raw == nil {
			return nil, &RPCError{Code: InvalidParams, Message: "episodic store requires episode"}
		}
		ep := memory.Episode{}
		ep.ID, _ = raw["id"].(string)
		ep.ConversationID, _ = raw["conversationId"].(string)
		ep.LeadID, _ = raw["leadId"].(string)
		ep.Scenario, _ = raw["scenario"].(string)
		ep.Outcome, _ = raw["outcome"].(string)
		if v, ok := raw["importance"].(float64); ok {
			ep.Importance = v
		}
		if v, ok := raw["details"].(map[string]interface{}); ok {
			ep.Details = v
		}
		inserted, err := s.memories.AppendEpisode(ctx, ep)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"inserted": inserted}, nil

	case memory.TierSemantic:
		subject, _ := params["subject"].(string)
		predicate, _ := params["predicate"].(string)
		object, _ := params["object"].(string)
		delta := 1.0
		if v, ok := params["weight"].(float64); ok {
			delta = v
		}
		if err := s.memories.ReinforceTriple(ctx, subject, predicate, object, delta); err != nil {
			return nil, err
		}
		return map[string]interface{}{"reinforced": true}, nil
	}

	return nil, &RPCError{Code: InvalidParams, Message: "unknown memory tier"}
}

// handleRetrieveMemory reads from the requested memory tier
func (s *Server) handleRetrieveMemory(ctx context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
	tier := params["tier"].(string)

	switch tier {
	case memory.TierShortTerm:
		conversationID, _ := params["conversationId"].(string)
		if conversationID == "" {
			return nil, &RPCError{Code: InvalidParams, Message: "short_term retrieve requires conversationId"}
		}
		content, err := s.memories.RetrieveShortTerm(conversationID)
		if errors.Is(err, memory.ErrNotFound) {
			return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("no context for conversation %s", conversationID)}
		}
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"context": map[string]interface{}(content)}, nil

	case memory.TierLongTerm:
		leadID, _ := params["leadId"].(string)
		if leadID == "" {
			return nil, &RPCError{Code: InvalidParams, Message: "long_term retrieve requires leadId"}
		}
		profile, err := s.memories.RetrieveLongTerm(ctx, leadID)
		if errors.Is(err, memory.ErrNotFound) {
			return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("no profile for lead %s", leadID)}
		}
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"profile": profile}, nil

	case memory.TierEpisodic:
		filter := memory.EpisodeFilter{}
		filter.Scenario, _ = params["scenario"].(string)
		filter.Outcome, _ = params["outcome"].(string)
		filter.LeadID, _ = params["leadId"].(string)
		if v, ok := params["limit"].(float64); ok {
			filter.Limit = int(v)
		}
		if v, ok := params["offset"].(float64); ok {
			filter.Offset = int(v)
		}
		episodes, err := s.memories.QueryEpisodes(ctx, filter)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"episodes": episodes, "count": len(episodes)}, nil

	case memory.TierSemantic:
		pattern := resource.TriplePattern{}
		pattern.Subject, _ = params["subject"].(string)
		pattern.Predicate, _ = params["predicate"].(string)
		pattern.Object, _ = params["object"].(string)
		if v, ok := params["limit"].(float64); ok {
			pattern.Limit = int(v)
		}
		triples, err := s.memories.SearchTriples(ctx, pattern)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"triples": triples, "count": len(triples)}, nil
	}

	return nil, &RPCError{Code: InvalidParams, Message: "unknown memory tier"}
}

// handleRecommendAction suggests the next action for a scenario from the
// best past outcomes, falling back to the heaviest semantic edges
func (s *Server) handleRecommendAction(ctx context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
	scenario := params["scenario"].(string)
	leadID, _ := params["leadId"].(string)

	for _, outcome := range []string{"converted", "positive", "callback_requested", "qualified"} {
		episodes, err := s.memories.QueryEpisodes(ctx, memory.EpisodeFilter{
			Scenario: scenario,
			Outcome:  outcome,
			Limit:    3,
		})
		if err != nil {
			return nil, err
		}
		if len(episodes) > 0 {
			return map[string]interface{}{
				"recommendation": "repeat_successful_pattern",
				"basedOn":        episodes,
				"confidence":     episodes[0].Importance,
			}, nil
		}
	}

	if leadID != "" {
		triples, err := s.memories.SearchTriples(ctx, resource.TriplePattern{Subject: leadID, Limit: 5})
		if err != nil {
			return nil, err
		}
		if len(triples) > 0 {
			return map[string]interface{}{
				"recommendation": "engage_known_interest",
				"basedOn":        triples,
				"confidence":     triples[0].Weight,
			}, nil
		}
	}

	return map[string]interface{}{
		"recommendation": "default_nurture",
		"confidence":     0.0,
	}, nil
}

// handleUpdateCampaign merges fields into a campaign record, optionally
// guarding status transitions
func (s *Server) handleUpdateCampaign(ctx context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
	campaignID := params["campaignId"].(string)
	fields := params["fields"].(map[string]interface{})

	path := "campaigns/" + campaignID
	current, err := s.resources.Access(ctx, resource.Descriptor{
		Scheme:    resource.SchemeRecordStore,
		Path:      path,
		Operation: resource.OpRead,
	}, nil)
	if err != nil && !errors.Is(err, resource.ErrNotFound) {
		return nil, err
	}
	if current == nil {
		current = resource.Document{}
	}

	if nextStatus, ok := fields["status"].(string); ok {
		prevStatus, _ := current["status"].(string)
		if guard := s.orchestrator.Guard(); guard.Enforcing() {
			if err := guard.CheckCampaign(prevStatus, nextStatus); err != nil {
				return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
			}
		}
	}

	for k, v := range fields {
		current[k] = v
	}
	current["campaignId"] = campaignID

	if _, err := s.resources.Access(ctx, resource.Descriptor{
		Scheme:    resource.SchemeRecordStore,
		Path:      path,
		Operation: resource.OpWrite,
	}, current); err != nil {
		return nil, err
	}
	return map[string]interface{}{"campaign": map[string]interface{}(current)}, nil
}

// handleAnalyzePerformance routes a campaign through the optimizer agent,
// seeding it with the latest precomputed aggregate when one exists
func (s *Server) handleAnalyzePerformance(ctx context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
	campaignID := params["campaignId"].(string)

	campaignData := map[string]interface{}{"campaignId": campaignID}
	doc, err := s.resources.Access(ctx, resource.Descriptor{
		Scheme:    resource.SchemeAggregateStore,
		Path:      "campaign_performance/" + campaignID,
		Operation: resource.OpRead,
	}, nil)
	if err == nil {
		for k, v := range doc {
			campaignData[k] = v
		}
	} else if !errors.Is(err, resource.ErrNotFound) {
		return nil, err
	}

	result, err := s.orchestrator.Route(ctx, "campaign_optimization", orchestrator.Payload{
		"campaignData": campaignData,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoAgentRegistered) {
			return nil, &RPCError{Code: MethodNotFound, Message: err.Error()}
		}
		return nil, err
	}
	return map[string]interface{}(result), nil
}
