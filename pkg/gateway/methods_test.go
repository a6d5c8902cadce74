package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purplemerit/merit/pkg/agents"
	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/orchestrator"
	"github.com/purplemerit/merit/pkg/resource"
)

func newTestServer(t *testing.T) (*Server, *resource.Router, *resource.AggregateStore) {
	t.Helper()
	dir := t.TempDir()

	records, err := resource.NewRecordStore(resource.RecordStoreConfig{
		DBPath: filepath.Join(dir, "records.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	graph, err := resource.NewGraphStore(resource.GraphStoreConfig{
		DBPath: filepath.Join(dir, "graph.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	aggregates, err := resource.NewAggregateStore(resource.AggregateStoreConfig{
		DBPath: filepath.Join(dir, "aggregates.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { aggregates.Close() })

	cache, err := resource.NewCacheStore(resource.CacheStoreConfig{
		DefaultTTL: time.Minute,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	resources := resource.NewRouter(records, graph, aggregates, cache)

	memories, err := memory.NewManager(memory.ManagerConfig{
		Cache:   cache,
		Records: records,
		Graph:   graph,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	registry := orchestrator.NewRegistry()
	require.NoError(t, registry.Register(agents.NewOptimizerAgent(memories, time.Second, zerolog.Nop())))
	registry.Seal()

	orch, err := orchestrator.New(orchestrator.Config{
		Registry: registry,
		Memory:   memories,
		Records:  records,
		Guard:    orchestrator.NewTransitionGuard(true),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	server, err := NewServer(Config{
		Host:              "127.0.0.1",
		Port:              8321,
		SharedSecret:      "test-secret",
		RequestsPerMinute: 1000,
		MaxConcurrent:     100,
		Resources:         resources,
		Memory:            memories,
		Orchestrator:      orch,
		Logger:            zerolog.Nop(),
	})
	require.NoError(t, err)

	return server, resources, aggregates
}

func callMethod(t *testing.T, s *Server, principal Principal, method string, params map[string]interface{}) *RPCResponse {
	t.Helper()
	return s.router.RouteRequest(context.Background(), &RPCRequest{
		ID:        "req-" + method,
		Method:    method,
		Params:    params,
		Principal: principal,
		JSONRPC:   "2.0",
	})
}

func TestServer_MethodCatalog(t *testing.T) {
	server, _, _ := newTestServer(t)

	for _, method := range []string{
		"getLeadData", "searchGraph", "storeMemory", "retrieveMemory",
		"recommendAction", "updateCampaign", "analyzePerformance",
	} {
		assert.True(t, server.router.HasMethod(method), method)
	}
}

func TestServer_GetLeadData(t *testing.T) {
	server, resources, _ := newTestServer(t)
	reader := Principal{ID: "op-1", Roles: []string{RoleRead}}

	_, err := resources.Access(context.Background(), resource.Descriptor{
		Scheme:    resource.SchemeRecordStore,
		Path:      "leads/lead-1",
		Operation: resource.OpWrite,
	}, resource.Document{"leadId": "lead-1", "company": "Acme"})
	require.NoError(t, err)

	t.Run("returns stored lead", func(t *testing.T) {
		resp := callMethod(t, server, reader, "getLeadData", map[string]interface{}{"leadId": "lead-1"})
		require.Nil(t, resp.Error)

		doc, ok := resp.Result.(resource.Document)
		require.True(t, ok)
		assert.Equal(t, "Acme", doc["company"])
	})

	t.Run("missing lead maps to invalid params", func(t *testing.T) {
		resp := callMethod(t, server, reader, "getLeadData", map[string]interface{}{"leadId": "lead-404"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("write-only principal is denied", func(t *testing.T) {
		resp := callMethod(t, server, Principal{ID: "op-2", Roles: []string{RoleWrite}}, "getLeadData",
			map[string]interface{}{"leadId": "lead-1"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, Unauthorized, resp.Error.Code)
	})
}

func TestServer_MemoryMethods(t *testing.T) {
	server, _, _ := newTestServer(t)
	agent := Principal{ID: "agent-1", Roles: []string{RoleAgent}}

	t.Run("short term round trip", func(t *testing.T) {
		resp := callMethod(t, server, agent, "storeMemory", map[string]interface{}{
			"tier":           "short_term",
			"conversationId": "conv-1",
			"context":        map[string]interface{}{"scenario": "lead_triage", "leadId": "lead-1"},
		})
		require.Nil(t, resp.Error)

		resp = callMethod(t, server, agent, "retrieveMemory", map[string]interface{}{
			"tier":           "short_term",
			"conversationId": "conv-1",
		})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		content := result["context"].(map[string]interface{})
		assert.Equal(t, "lead_triage", content["scenario"])
	})

	t.Run("long term upsert merges fields", func(t *testing.T) {
		resp := callMethod(t, server, agent, "storeMemory", map[string]interface{}{
			"tier":   "long_term",
			"leadId": "lead-7",
			"delta":  map[string]interface{}{"category": "Campaign Qualified"},
		})
		require.Nil(t, resp.Error)

		resp = callMethod(t, server, agent, "retrieveMemory", map[string]interface{}{
			"tier":   "long_term",
			"leadId": "lead-7",
		})
		require.Nil(t, resp.Error)
	})

	t.Run("semantic store then search", func(t *testing.T) {
		resp := callMethod(t, server, agent, "storeMemory", map[string]interface{}{
			"tier":      "semantic",
			"subject":   "lead-7",
			"predicate": "interested_in",
			"object":    "analytics",
		})
		require.Nil(t, resp.Error)

		resp = callMethod(t, server, agent, "searchGraph", map[string]interface{}{"subject": "lead-7"})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		assert.Equal(t, 1, result["count"])
	})

	t.Run("invalid tier rejected by schema", func(t *testing.T) {
		resp := callMethod(t, server, agent, "storeMemory", map[string]interface{}{"tier": "forever"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("short term store requires conversation and context", func(t *testing.T) {
		resp := callMethod(t, server, agent, "storeMemory", map[string]interface{}{"tier": "short_term"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})
}

func TestServer_RecommendAction(t *testing.T) {
	server, _, _ := newTestServer(t)
	agent := Principal{ID: "agent-1", Roles: []string{RoleAgent}}

	t.Run("defaults to nurture with no history", func(t *testing.T) {
		resp := callMethod(t, server, agent, "recommendAction", map[string]interface{}{"scenario": "engagement"})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		assert.Equal(t, "default_nurture", result["recommendation"])
	})

	t.Run("repeats successful pattern when one exists", func(t *testing.T) {
		resp := callMethod(t, server, agent, "storeMemory", map[string]interface{}{
			"tier": "episodic",
			"episode": map[string]interface{}{
				"conversationId": "conv-9",
				"leadId":         "lead-9",
				"scenario":       "engagement",
				"outcome":        "converted",
				"importance":     0.9,
			},
		})
		require.Nil(t, resp.Error)

		resp = callMethod(t, server, agent, "recommendAction", map[string]interface{}{"scenario": "engagement"})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		assert.Equal(t, "repeat_successful_pattern", result["recommendation"])
	})

	t.Run("falls back to semantic edges for the lead", func(t *testing.T) {
		resp := callMethod(t, server, agent, "storeMemory", map[string]interface{}{
			"tier":      "semantic",
			"subject":   "lead-55",
			"predicate": "interested_in",
			"object":    "automation",
		})
		require.Nil(t, resp.Error)

		resp = callMethod(t, server, agent, "recommendAction", map[string]interface{}{
			"scenario": "cold_outreach",
			"leadId":   "lead-55",
		})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		assert.Equal(t, "engage_known_interest", result["recommendation"])
	})
}

func TestServer_UpdateCampaign(t *testing.T) {
	server, _, _ := newTestServer(t)
	writer := Principal{ID: "op-1", Roles: []string{RoleWrite}}

	t.Run("creates campaign and allows legal transition", func(t *testing.T) {
		resp := callMethod(t, server, writer, "updateCampaign", map[string]interface{}{
			"campaignId": "camp-1",
			"fields":     map[string]interface{}{"status": "draft", "dailyBudgetUsd": 100.0},
		})
		require.Nil(t, resp.Error)

		resp = callMethod(t, server, writer, "updateCampaign", map[string]interface{}{
			"campaignId": "camp-1",
			"fields":     map[string]interface{}{"status": "active"},
		})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		campaign := result["campaign"].(map[string]interface{})
		assert.Equal(t, "active", campaign["status"])
		assert.Equal(t, 100.0, campaign["dailyBudgetUsd"])
	})

	t.Run("rejects illegal transition when guard enforces", func(t *testing.T) {
		resp := callMethod(t, server, writer, "updateCampaign", map[string]interface{}{
			"campaignId": "camp-1",
			"fields":     map[string]interface{}{"status": "draft"},
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("read-only principal is denied", func(t *testing.T) {
		resp := callMethod(t, server, Principal{ID: "op-3", Roles: []string{RoleRead}}, "updateCampaign",
			map[string]interface{}{
				"campaignId": "camp-1",
				"fields":     map[string]interface{}{"status": "paused"},
			})
		require.NotNil(t, resp.Error)
		assert.Equal(t, Unauthorized, resp.Error.Code)
	})
}

func TestServer_AnalyzePerformance(t *testing.T) {
	server, _, aggregates := newTestServer(t)
	reader := Principal{ID: "op-1", Roles: []string{RoleRead}}

	require.NoError(t, aggregates.Ingest(context.Background(), "campaign_performance", "camp-1", resource.Document{
		"campaignId":     "camp-1",
		"ctr":            0.05,
		"cplUsd":         20.0,
		"roas":           2.5,
		"conversionRate": 0.08,
		"conversions":    12.0,
	}))

	t.Run("scores a healthy campaign from its aggregate", func(t *testing.T) {
		resp := callMethod(t, server, reader, "analyzePerformance", map[string]interface{}{"campaignId": "camp-1"})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		assert.Equal(t, 100.0, result["performanceScore"])
	})

	t.Run("unknown campaign still analyzed with zero metrics", func(t *testing.T) {
		resp := callMethod(t, server, reader, "analyzePerformance", map[string]interface{}{"campaignId": "camp-404"})
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		assert.NotNil(t, result["recommendations"])
	})
}
