package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/handoff/pkg/domain"
)

// ErrPredicateNotFound is returned when no predicate is registered under a name.
var ErrPredicateNotFound = errors.New("predicate not found")

// Predicate defines the signature for a custom transition condition.
// It receives the edge parameters and a read-only view of the session context.
type Predicate func(ctx context.Context, params map[string]any, view *domain.SessionContext) (bool, error)

// Registry manages the available custom predicates.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates: make(map[string]Predicate),
	}
}

// Register adds a predicate to the registry.
// If a predicate with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = fn
}

// Lookup returns the predicate registered under name.
func (r *Registry) Lookup(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.predicates[name]
	return fn, ok
}

// Names returns the registered predicate names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.predicates))
	for name := range r.predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute looks up a predicate by name and runs it.
// Returns ErrPredicateNotFound if the name is not registered.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, view *domain.SessionContext) (bool, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrPredicateNotFound, name)
	}
	return fn(ctx, params, view)
}
