package orchestrator

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps request types (capabilities) to agents. Registration
// happens during startup; lookups afterwards are lock-free reads in
// practice but still guarded for safety.
type Registry struct {
	mu           sync.RWMutex
	byType       map[string]Agent
	byCapability map[string]Agent
	sealed       bool
}

// NewRegistry creates an empty agent registry
func NewRegistry() *Registry {
	return &Registry{
		byType:       make(map[string]Agent),
		byCapability: make(map[string]Agent),
	}
}

// Register adds an agent. Each agent type registers at most once and
// every capability belongs to exactly one agent.
func (r *Registry) Register(agent Agent) error {
	desc := agent.Descriptor()
	if desc.AgentType == "" {
		return fmt.Errorf("agent type is required")
	}
	if len(desc.Capabilities) == 0 {
		return fmt.Errorf("agent %s declares no capabilities", desc.AgentType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry is sealed; agents register at startup only")
	}
	if _, exists := r.byType[desc.AgentType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, desc.AgentType)
	}
	for _, cap := range desc.Capabilities {
		if owner, exists := r.byCapability[cap]; exists {
			return fmt.Errorf("%w: %s claimed by %s", ErrDuplicateCapability, cap, owner.Descriptor().AgentType)
		}
	}

	r.byType[desc.AgentType] = agent
	for _, cap := range desc.Capabilities {
		r.byCapability[cap] = agent
	}
	return nil
}

// Seal freezes the registry; later Register calls fail
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup resolves the unique agent serving a request type
func (r *Registry) Lookup(requestType string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if agent, ok := r.byCapability[requestType]; ok {
		return agent, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAgentRegistered, requestType)
}

// Agents returns descriptors of all registered agents, ordered by type
func (r *Registry) Agents() []AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]AgentDescriptor, 0, len(r.byType))
	for _, agent := range r.byType {
		descs = append(descs, agent.Descriptor())
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].AgentType < descs[j].AgentType })
	return descs
}
