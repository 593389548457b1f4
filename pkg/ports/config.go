package ports

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

// ConfigStore provides the agent graph definition of a session scope.
// It is called once when a session is created and again on reload.
type ConfigStore interface {
	// LoadAgents returns the agents of the scope in definition order.
	LoadAgents(ctx context.Context, scopeID string) ([]domain.AgentNode, error)

	// LoadTransitions returns the transitions of the scope in definition order.
	// Equal-priority edges are evaluated in this order.
	LoadTransitions(ctx context.Context, scopeID string) ([]domain.TransitionEdge, error)
}

// ScopeLister is implemented by config stores that can enumerate their scopes.
type ScopeLister interface {
	ListScopes(ctx context.Context) ([]string, error)
}
