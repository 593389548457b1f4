package ports

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

// AgentHandle is the runtime object returned by an AgentFactory.
// The engine only keeps a reference to the current handle and closes the previous one
// after a successful transition.
type AgentHandle interface {
	// NodeID returns the ID of the agent node this handle was built from.
	NodeID() string

	// Close releases runtime resources. It is called at most once.
	Close(ctx context.Context) error
}

// AgentFactory builds agent runtimes.
// Materialize is called exactly once per committed transition and is never retried by the engine.
type AgentFactory interface {
	Materialize(ctx context.Context, node domain.AgentNode) (AgentHandle, error)
}

// AgentFactoryFunc adapts a function to the AgentFactory interface.
type AgentFactoryFunc func(ctx context.Context, node domain.AgentNode) (AgentHandle, error)

// Materialize calls f.
func (f AgentFactoryFunc) Materialize(ctx context.Context, node domain.AgentNode) (AgentHandle, error) {
	return f(ctx, node)
}
