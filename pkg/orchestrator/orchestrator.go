package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/purplemerit/merit/internal/observability"
	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/resource"
	"github.com/rs/zerolog"
)

// Orchestrator routes requests to registered agents and drives the
// handoff protocol between them
type Orchestrator struct {
	registry        *Registry
	memories        *memory.Manager
	markers         *resource.RecordStore
	notifier        Notifier
	handoffDeadline time.Duration
	guard           *TransitionGuard
	logger          zerolog.Logger
}

// Config holds orchestrator dependencies and tuning
type Config struct {
	Registry        *Registry
	Memory          *memory.Manager
	Records         *resource.RecordStore
	Notifier        Notifier
	HandoffDeadline time.Duration
	Guard           *TransitionGuard
	Logger          zerolog.Logger
}

// New creates an orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires an agent registry")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("orchestrator requires a memory manager")
	}
	if cfg.Records == nil {
		return nil, fmt.Errorf("orchestrator requires a record store for handoff markers")
	}
	deadline := cfg.HandoffDeadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &Orchestrator{
		registry:        cfg.Registry,
		memories:        cfg.Memory,
		markers:         cfg.Records,
		notifier:        cfg.Notifier,
		handoffDeadline: deadline,
		guard:           cfg.Guard,
		logger:          cfg.Logger,
	}, nil
}

// Registry exposes the agent registry
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Guard exposes the transition guard, nil when disabled
func (o *Orchestrator) Guard() *TransitionGuard { return o.guard }

// SetNotifier installs the handoff event notifier. Call before serving
// traffic; the notifier is read without synchronization afterwards.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// Route dispatches one request to the unique agent serving its type,
// bounded by the agent's timeout. Timed-out requests are not retried;
// the caller decides.
func (o *Orchestrator) Route(ctx context.Context, requestType string, payload Payload) (Payload, error) {
	start := time.Now()

	agent, err := o.registry.Lookup(requestType)
	if err != nil {
		observability.RecordRoute(requestType, "unrouted", time.Since(start))
		return nil, err
	}
	desc := agent.Descriptor()

	invokeCtx := ctx
	if desc.Timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, desc.Timeout)
		defer cancel()
	}

	type outcome struct {
		result Payload
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := agent.Process(invokeCtx, requestType, payload)
		done <- outcome{result, err}
	}()

	select {
	case <-invokeCtx.Done():
		observability.RecordRoute(requestType, "timeout", time.Since(start))
		o.logger.Warn().Str("request_type", requestType).Str("agent", desc.AgentType).Msg("Agent invocation timed out")
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, desc.AgentType, desc.Timeout)
	case out := <-done:
		if errors.Is(out.err, context.DeadlineExceeded) {
			observability.RecordRoute(requestType, "timeout", time.Since(start))
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, desc.AgentType, desc.Timeout)
		}
		result := "success"
		if out.err != nil {
			result = "error"
		}
		observability.RecordRoute(requestType, result, time.Since(start))
		return out.result, out.err
	}
}
