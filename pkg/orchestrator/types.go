package orchestrator

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors surfaced across the routing boundary
var (
	ErrNoAgentRegistered   = errors.New("no agent registered for request type")
	ErrDuplicateAgent      = errors.New("agent type already registered")
	ErrDuplicateCapability = errors.New("capability already claimed by another agent")
	ErrTimeout             = errors.New("agent invocation timed out")
	ErrHandoffFailed       = errors.New("handoff failed")
	ErrInvalidTransition   = errors.New("invalid state transition")
)

// AgentDescriptor declares an agent's routing identity. Registered once
// at startup and read-only thereafter.
type AgentDescriptor struct {
	AgentType    string
	Timeout      time.Duration
	Capabilities []string
}

// Payload is the request/response shape exchanged with agents
type Payload map[string]interface{}

// Agent processes routed requests and accepted handoffs
type Agent interface {
	Descriptor() AgentDescriptor
	Process(ctx context.Context, requestType string, payload Payload) (Payload, error)
	HandleHandoff(ctx context.Context, handoff HandoffContext) (Payload, error)
}

// HandoffContext is the unit of work transferred between agents
type HandoffContext struct {
	ConversationID string                 `json:"conversationId"`
	Sequence       int                    `json:"sequence"`
	FromAgent      string                 `json:"fromAgent"`
	ToCapability   string                 `json:"toCapability"`
	Reason         string                 `json:"reason,omitempty"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	InitiatedAt    time.Time              `json:"initiatedAt"`
}

// HandoffResult reports a completed handoff
type HandoffResult struct {
	ConversationID string  `json:"conversationId"`
	Sequence       int     `json:"sequence"`
	ToAgent        string  `json:"toAgent"`
	Duplicate      bool    `json:"duplicate"`
	Response       Payload `json:"response,omitempty"`
}

// Notifier receives handoff lifecycle events for server push
type Notifier interface {
	NotifyHandoff(event string, handoff HandoffContext, err error)
}
