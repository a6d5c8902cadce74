package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purplemerit/merit/internal/observability"
)

func TestRPCRouter_ParseRequest(t *testing.T) {
	router := NewRPCRouter()

	t.Run("should parse valid request", func(t *testing.T) {
		req, err := router.ParseRequest([]byte(`{
			"id": "req-1",
			"method": "getLeadData",
			"params": {"leadId": "lead-1"},
			"principal": {"id": "op-1", "roles": ["operator.read"]}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "req-1", req.ID)
		assert.Equal(t, "getLeadData", req.Method)
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.True(t, req.Principal.HasRole(RoleRead))
	})

	t.Run("should reject malformed JSON", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{not json`))
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, ParseError, rpcErr.Code)
	})

	t.Run("should reject missing id", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{"method": "getLeadData"}`))
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, InvalidRequest, rpcErr.Code)
	})

	t.Run("should reject missing method", func(t *testing.T) {
		_, err := router.ParseRequest([]byte(`{"id": "req-1"}`))
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, InvalidRequest, rpcErr.Code)
	})
}

func TestRPCRouter_RouteRequest(t *testing.T) {
	newRouter := func(t *testing.T) *RPCRouter {
		t.Helper()
		router := NewRPCRouter()
		err := router.RegisterMethod("echo", []string{RoleRead}, map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"value"},
			"properties": map[string]interface{}{
				"value": map[string]interface{}{"type": "string"},
			},
		}, func(_ context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
			return params["value"], nil
		})
		require.NoError(t, err)
		return router
	}

	reader := Principal{ID: "op-1", Roles: []string{RoleRead}}

	t.Run("should route to registered handler", func(t *testing.T) {
		router := newRouter(t)
		resp := router.RouteRequest(context.Background(), &RPCRequest{
			ID:        "req-1",
			Method:    "echo",
			Params:    map[string]interface{}{"value": "hello"},
			Principal: reader,
		})
		require.Nil(t, resp.Error)
		assert.Equal(t, "req-1", resp.ID)
		assert.Equal(t, "hello", resp.Result)
	})

	t.Run("should return method not found", func(t *testing.T) {
		router := newRouter(t)
		resp := router.RouteRequest(context.Background(), &RPCRequest{
			ID:        "req-2",
			Method:    "unknown",
			Principal: reader,
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, MethodNotFound, resp.Error.Code)
	})

	t.Run("should deny principal without required role", func(t *testing.T) {
		router := newRouter(t)
		resp := router.RouteRequest(context.Background(), &RPCRequest{
			ID:        "req-3",
			Method:    "echo",
			Params:    map[string]interface{}{"value": "hello"},
			Principal: Principal{ID: "stranger"},
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, Unauthorized, resp.Error.Code)
	})

	t.Run("should validate params against schema", func(t *testing.T) {
		router := newRouter(t)
		resp := router.RouteRequest(context.Background(), &RPCRequest{
			ID:        "req-4",
			Method:    "echo",
			Params:    map[string]interface{}{"value": 42},
			Principal: reader,
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("should reject missing required param", func(t *testing.T) {
		router := newRouter(t)
		resp := router.RouteRequest(context.Background(), &RPCRequest{
			ID:        "req-5",
			Method:    "echo",
			Principal: reader,
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
	})

	t.Run("should map handler errors to internal error", func(t *testing.T) {
		router := NewRPCRouter()
		require.NoError(t, router.RegisterMethod("boom", nil, nil,
			func(_ context.Context, _ Principal, _ map[string]interface{}) (interface{}, error) {
				return nil, errors.New("storage offline")
			}))

		resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "req-6", Method: "boom"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InternalError, resp.Error.Code)
		assert.Equal(t, "storage offline", resp.Error.Message)
	})

	t.Run("should pass through RPCError from handler", func(t *testing.T) {
		router := NewRPCRouter()
		require.NoError(t, router.RegisterMethod("denied", nil, nil,
			func(_ context.Context, _ Principal, _ map[string]interface{}) (interface{}, error) {
				return nil, &RPCError{Code: InvalidParams, Message: "lead missing"}
			}))

		resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "req-7", Method: "denied"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, InvalidParams, resp.Error.Code)
		assert.Equal(t, "lead missing", resp.Error.Message)
	})

	t.Run("should allow any principal when no roles required", func(t *testing.T) {
		router := NewRPCRouter()
		require.NoError(t, router.RegisterMethod("open", nil, nil,
			func(_ context.Context, _ Principal, _ map[string]interface{}) (interface{}, error) {
				return "ok", nil
			}))

		resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "req-8", Method: "open"})
		require.Nil(t, resp.Error)
		assert.Equal(t, "ok", resp.Result)
	})
}

func TestRPCRouter_AuditTrail(t *testing.T) {
	auditFile := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, observability.InitAuditLogger(auditFile))

	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("guarded", []string{RoleWrite}, map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"value"},
		"properties": map[string]interface{}{
			"value": map[string]interface{}{"type": "string"},
		},
	}, func(_ context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
		return params["value"], nil
	}))

	writer := Principal{ID: "op-1", Roles: []string{RoleWrite}}

	// One request per outcome; each must leave an audit entry.
	router.RouteRequest(context.Background(), &RPCRequest{
		ID: "req-ok", Method: "guarded", Principal: writer,
		Params: map[string]interface{}{"value": "hello"},
	})
	router.RouteRequest(context.Background(), &RPCRequest{
		ID: "req-denied", Method: "guarded", Principal: Principal{ID: "stranger"},
		Params: map[string]interface{}{"value": "hello"},
	})
	router.RouteRequest(context.Background(), &RPCRequest{
		ID: "req-badparams", Method: "guarded", Principal: writer,
		Params: map[string]interface{}{"value": 9},
	})
	router.RouteRequest(context.Background(), &RPCRequest{
		ID: "req-nomethod", Method: "missing", Principal: writer,
	})

	data, err := os.ReadFile(auditFile)
	require.NoError(t, err)
	trail := string(data)

	for id, outcome := range map[string]string{
		"req-ok":        "success",
		"req-denied":    "unauthorized",
		"req-badparams": "invalid_params",
		"req-nomethod":  "method_not_found",
	} {
		assert.Contains(t, trail, fmt.Sprintf(`"request_id":%q`, id))
		assert.Contains(t, trail, fmt.Sprintf(`"outcome":%q`, outcome))
	}
}

func TestRPCRouter_RegisterMethod(t *testing.T) {
	router := NewRPCRouter()

	t.Run("should reject nil handler", func(t *testing.T) {
		err := router.RegisterMethod("bad", nil, nil, nil)
		assert.Error(t, err)
	})

	t.Run("should track registered methods", func(t *testing.T) {
		require.NoError(t, router.RegisterMethod("listed", nil, nil,
			func(_ context.Context, _ Principal, _ map[string]interface{}) (interface{}, error) {
				return nil, nil
			}))
		assert.True(t, router.HasMethod("listed"))
		assert.Contains(t, router.GetMethods(), "listed")
		assert.False(t, router.HasMethod("missing"))
	})
}
