package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/purplemerit/merit/internal/observability"
	"github.com/xeipuuv/gojsonschema"
)

// RPCRouter handles RPC method registration and request routing. Each
// method carries its required roles and an optional JSON schema for its
// params. Duplicate correlation ids are not deduplicated: a replayed id
// re-executes and the latest response stands.
type RPCRouter struct {
	mu      sync.RWMutex
	methods map[string]*methodEntry
}

type methodEntry struct {
	handler MethodHandler
	roles   []string
	schema  *gojsonschema.Schema
}

// NewRPCRouter creates a new RPC router
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods: make(map[string]*methodEntry),
	}
}

// RegisterMethod registers an RPC method handler. roles lists the roles
// allowed to call it (any match suffices; empty allows all). paramSchema
// is an optional JSON schema document validated against params.
func (r *RPCRouter) RegisterMethod(name string, roles []string, paramSchema map[string]interface{}, handler MethodHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	entry := &methodEntry{handler: handler, roles: roles}
	if paramSchema != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(paramSchema))
		if err != nil {
			return fmt.Errorf("invalid schema for method %s: %w", name, err)
		}
		entry.schema = schema
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = entry
	return nil
}

// ParseRequest parses and validates a JSON-RPC request
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{
			Code:    ParseError,
			Message: "Parse error",
			Data:    err.Error(),
		}
	}

	if req.ID == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing id field",
		}
	}
	if req.Method == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing method field",
		}
	}

	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}

	return &req, nil
}

// RouteRequest routes a request through authorization, param validation
// and the method handler
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse("", InvalidRequest, "invalid request", nil)
	}
	start := time.Now()

	r.mu.RLock()
	entry, exists := r.methods[req.Method]
	r.mu.RUnlock()

	if !exists {
		observability.RecordRPC(req.Method, "method_not_found", time.Since(start))
		observability.RecordRPCAudit(req.ID, req.Method, req.Principal.ID, "", "method_not_found", time.Since(start))
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if !allowed(req.Principal, entry.roles) {
		observability.RecordRPC(req.Method, "unauthorized", time.Since(start))
		observability.RecordRPCAudit(req.ID, req.Method, req.Principal.ID, "", "unauthorized", time.Since(start))
		observability.RecordSecurityAudit("rpc_denied", req.Principal.ID, "denied", map[string]interface{}{
			"method": req.Method,
		})
		return errorResponse(req.ID, Unauthorized, "principal lacks required role", nil)
	}

	if entry.schema != nil {
		params := req.Params
		if params == nil {
			params = map[string]interface{}{}
		}
		result, err := entry.schema.Validate(gojsonschema.NewGoLoader(params))
		if err != nil {
			observability.RecordRPC(req.Method, "invalid_params", time.Since(start))
			observability.RecordRPCAudit(req.ID, req.Method, req.Principal.ID, "", "invalid_params", time.Since(start))
			return errorResponse(req.ID, InvalidParams, "param validation failed", err.Error())
		}
		if !result.Valid() {
			details := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				details = append(details, desc.String())
			}
			observability.RecordRPC(req.Method, "invalid_params", time.Since(start))
			observability.RecordRPCAudit(req.ID, req.Method, req.Principal.ID, "", "invalid_params", time.Since(start))
			return errorResponse(req.ID, InvalidParams, "invalid params", details)
		}
	}

	result, err := entry.handler(ctx, req.Principal, req.Params)

	var response *RPCResponse
	outcome := "success"
	if err != nil {
		outcome = "error"
		if rpcErr, ok := err.(*RPCError); ok {
			response = errorResponse(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		} else {
			response = errorResponse(req.ID, InternalError, err.Error(), nil)
		}
	} else {
		response = &RPCResponse{ID: req.ID, JSONRPC: "2.0", Result: result}
	}

	observability.RecordRPC(req.Method, outcome, time.Since(start))
	observability.RecordRPCAudit(req.ID, req.Method, req.Principal.ID, "", outcome, time.Since(start))
	return response
}

// HasMethod checks if a method is registered
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.methods[name]
	return exists
}

// GetMethods returns all registered method names
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	return methods
}

func allowed(principal Principal, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if principal.HasRole(role) {
			return true
		}
	}
	return false
}

func errorResponse(id string, code int, message string, data interface{}) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
