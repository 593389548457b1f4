package dsl

import (
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/graph"
)

// Builder manages the graph construction.
type Builder struct {
	agents []*AgentBuilder
	index  map[string]*AgentBuilder
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		index: make(map[string]*AgentBuilder),
	}
}

// Agent declares an agent in the graph.
// If the agent already exists, it returns the existing builder.
func (b *Builder) Agent(id string) *AgentBuilder {
	if ab, ok := b.index[id]; ok {
		return ab
	}
	ab := &AgentBuilder{
		node: domain.AgentNode{
			ID:   id,
			Name: id,
			Type: domain.AgentTypeGeneral,
		},
		builder: b,
	}
	b.index[id] = ab
	b.agents = append(b.agents, ab)
	return ab
}

// Build compiles the declared agents and transitions into a validated graph.
// Agents keep their declaration order; edges keep the order in which they were added.
func (b *Builder) Build() (*graph.Graph, error) {
	nodes := make([]domain.AgentNode, 0, len(b.agents))
	var edges []domain.TransitionEdge
	for _, ab := range b.agents {
		nodes = append(nodes, ab.node)
		edges = append(edges, ab.edges...)
	}

	g, err := graph.New(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	return g, nil
}

// MustBuild is like Build but panics on error. Intended for tests and examples.
func (b *Builder) MustBuild() *graph.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
