package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/purplemerit/merit/internal/observability"
	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/resource"
)

const collectionHandoffs = "handoffs"

// ExecuteHandoff transfers a conversation to the agent owning the target
// capability. Delivery is at-least-once with exactly-once effect: the
// context is persisted before resolution, success records an idempotency
// marker keyed by conversation id and sequence, and a retry of a
// completed handoff is a no-op.
func (o *Orchestrator) ExecuteHandoff(ctx context.Context, handoff HandoffContext) (*HandoffResult, error) {
	start := time.Now()
	if handoff.ConversationID == "" {
		return nil, fmt.Errorf("handoff requires a conversation id")
	}
	if handoff.InitiatedAt.IsZero() {
		handoff.InitiatedAt = time.Now().UTC()
	}
	markerKey := fmt.Sprintf("%s#%d", handoff.ConversationID, handoff.Sequence)

	// Durability point: the context survives any later failure and a
	// crashed handoff can be recovered from short-term memory.
	if err := o.memories.StoreShortTerm(handoff.ConversationID, handoffContext(handoff), 0); err != nil {
		observability.RecordHandoff("persist_error", time.Since(start))
		return nil, fmt.Errorf("%w: persisting context: %v", ErrHandoffFailed, err)
	}

	if doc, err := o.markers.Get(ctx, collectionHandoffs, markerKey); err == nil {
		toAgent, _ := doc["toAgent"].(string)
		observability.RecordHandoff("duplicate", time.Since(start))
		o.logger.Debug().Str("marker", markerKey).Msg("Handoff already completed, skipping delivery")
		return &HandoffResult{
			ConversationID: handoff.ConversationID,
			Sequence:       handoff.Sequence,
			ToAgent:        toAgent,
			Duplicate:      true,
		}, nil
	} else if !errors.Is(err, resource.ErrNotFound) {
		return nil, fmt.Errorf("%w: reading marker: %v", ErrHandoffFailed, err)
	}

	agent, err := o.registry.Lookup(handoff.ToCapability)
	if err != nil {
		// Context stays persisted; the handoff is pending until an agent
		// appears or the short-term TTL expires.
		observability.RecordHandoff("unrouted", time.Since(start))
		o.notify("failed", handoff, err)
		return nil, err
	}
	desc := agent.Descriptor()

	deliverCtx, cancel := context.WithTimeout(ctx, o.handoffDeadline)
	defer cancel()

	type outcome struct {
		response Payload
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		response, err := agent.HandleHandoff(deliverCtx, handoff)
		done <- outcome{response, err}
	}()

	var response Payload
	select {
	case <-deliverCtx.Done():
		observability.RecordHandoff("deadline", time.Since(start))
		o.notify("failed", handoff, ErrTimeout)
		return nil, fmt.Errorf("%w: delivery to %s exceeded %s", ErrHandoffFailed, desc.AgentType, o.handoffDeadline)
	case out := <-done:
		if out.err != nil {
			observability.RecordHandoff("error", time.Since(start))
			o.notify("failed", handoff, out.err)
			return nil, fmt.Errorf("%w: %s: %v", ErrHandoffFailed, desc.AgentType, out.err)
		}
		response = out.response
	}

	inserted, err := o.markers.InsertIfAbsent(ctx, collectionHandoffs, markerKey, resource.Document{
		"conversationId": handoff.ConversationID,
		"sequence":       handoff.Sequence,
		"toAgent":        desc.AgentType,
		"completedAt":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		observability.RecordHandoff("marker_error", time.Since(start))
		return nil, fmt.Errorf("%w: recording marker: %v", ErrHandoffFailed, err)
	}

	observability.RecordHandoff("completed", time.Since(start))
	o.notify("completed", handoff, nil)
	o.logger.Info().
		Str("conversation", handoff.ConversationID).
		Int("sequence", handoff.Sequence).
		Str("to", desc.AgentType).
		Msg("Handoff completed")

	return &HandoffResult{
		ConversationID: handoff.ConversationID,
		Sequence:       handoff.Sequence,
		ToAgent:        desc.AgentType,
		Duplicate:      !inserted,
		Response:       response,
	}, nil
}

func (o *Orchestrator) notify(event string, handoff HandoffContext, err error) {
	if o.notifier == nil {
		return
	}
	o.notifier.NotifyHandoff(event, handoff, err)
}

func handoffContext(h HandoffContext) memory.Context {
	ctx := memory.Context{
		"conversationId": h.ConversationID,
		"sequence":       h.Sequence,
		"fromAgent":      h.FromAgent,
		"toCapability":   h.ToCapability,
		"initiatedAt":    h.InitiatedAt.Format(time.RFC3339Nano),
	}
	if h.Reason != "" {
		ctx["reason"] = h.Reason
	}
	for k, v := range h.Payload {
		ctx[k] = v
	}
	return ctx
}
