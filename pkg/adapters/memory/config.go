package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/handoff/pkg/domain"
)

type scope struct {
	agents      []domain.AgentNode
	transitions []domain.TransitionEdge
}

// ConfigStore implements ports.ConfigStore with definitions held in memory.
// Safe for concurrent use.
type ConfigStore struct {
	mu     sync.RWMutex
	scopes map[string]scope
}

// NewConfigStore creates an empty config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{scopes: make(map[string]scope)}
}

// Put replaces the definitions of a scope.
func (c *ConfigStore) Put(scopeID string, agents []domain.AgentNode, transitions []domain.TransitionEdge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[scopeID] = scope{
		agents:      append([]domain.AgentNode(nil), agents...),
		transitions: append([]domain.TransitionEdge(nil), transitions...),
	}
}

// LoadAgents returns the agents of the scope.
func (c *ConfigStore) LoadAgents(_ context.Context, scopeID string) ([]domain.AgentNode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scopes[scopeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScopeNotFound, scopeID)
	}
	return append([]domain.AgentNode(nil), s.agents...), nil
}

// LoadTransitions returns the transitions of the scope.
func (c *ConfigStore) LoadTransitions(_ context.Context, scopeID string) ([]domain.TransitionEdge, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scopes[scopeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScopeNotFound, scopeID)
	}
	return append([]domain.TransitionEdge(nil), s.transitions...), nil
}

// ListScopes returns the scope IDs in lexical order.
func (c *ConfigStore) ListScopes(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.scopes))
	for id := range c.scopes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
