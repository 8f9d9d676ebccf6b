// Package agents defines the agent contract the workflow engine executes
// against, a name-keyed registry, and the specialist agents that operate on
// the knowledge store.
package agents

import (
	"context"
	"sync"

	"github.com/reporover/backend/pkg/logger"
)

// Result status values carried in the "status" field of agent results.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPending = "pending"
)

// Agent is the only contract the workflow engine depends on. Input and
// result are open dictionaries; the result conventionally carries a "status"
// field plus a payload. The engine treats both as opaque.
type Agent interface {
	Name() string
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Registry maps step agent names to agents. Reads vastly outnumber writes:
// agents register once at startup, the engine resolves per step.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

// Register adds an agent under its own name. Re-registering a name replaces
// the previous agent.
func (r *Registry) Register(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.Name()]; exists {
		logger.Warn("[Agents][Register] Replacing registered agent", "name", agent.Name())
	}
	r.agents[agent.Name()] = agent
}

// Get returns the agent registered under name, or false if none is.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[name]
	return agent, ok
}

// Names lists the registered agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}

// errorResult is the conventional error payload agents return for handled
// failures, keeping infrastructure errors separate.
func errorResult(message string) map[string]any {
	return map[string]any{
		"status":  StatusError,
		"message": message,
	}
}
