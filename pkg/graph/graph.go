package graph

import (
	"fmt"
	"sort"

	"github.com/aretw0/handoff/pkg/domain"
)

// Graph is an immutable snapshot of agents and the transitions between them.
// It is safe for concurrent readers.
type Graph struct {
	nodes    map[string]domain.AgentNode
	order    []string
	edges    []domain.TransitionEdge
	outgoing map[string][]domain.TransitionEdge
}

// New validates the definitions and builds the graph.
// It fails with a *domain.GraphIntegrityError when a node ID is empty or duplicated,
// an edge has an unknown condition kind, or an edge references an absent node.
func New(nodes []domain.AgentNode, edges []domain.TransitionEdge) (*Graph, error) {
	g := &Graph{
		nodes:    make(map[string]domain.AgentNode, len(nodes)),
		order:    make([]string, 0, len(nodes)),
		edges:    make([]domain.TransitionEdge, 0, len(edges)),
		outgoing: make(map[string][]domain.TransitionEdge),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, &domain.GraphIntegrityError{Reason: "node missing ID"}
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, &domain.GraphIntegrityError{
				NodeID: n.ID,
				Reason: "defined more than once",
				Err:    domain.ErrDuplicateNode,
			}
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}

	for i, e := range edges {
		if e.ID == "" {
			e.ID = fmt.Sprintf("%s->%s#%d", e.From, e.To, i)
		}
		if !e.Kind.Valid() {
			return nil, &domain.GraphIntegrityError{
				EdgeID: e.ID,
				NodeID: e.From,
				Reason: fmt.Sprintf("unknown condition kind %q", e.Kind),
			}
		}
		for _, ref := range []string{e.From, e.To} {
			if _, ok := g.nodes[ref]; !ok {
				return nil, &domain.GraphIntegrityError{
					EdgeID: e.ID,
					NodeID: ref,
					Reason: "node is not part of the graph",
					Err:    domain.ErrNodeNotFound,
				}
			}
		}
		g.edges = append(g.edges, e)
		g.outgoing[e.From] = append(g.outgoing[e.From], e)
	}

	// Stable sort keeps insertion order among equal priorities.
	for from := range g.outgoing {
		list := g.outgoing[from]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority > list[j].Priority
		})
	}

	return g, nil
}

// Node returns the agent with the given ID.
func (g *Graph) Node(id string) (domain.AgentNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.AgentNode{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// Has reports whether the node exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all agents in definition order.
func (g *Graph) Nodes() []domain.AgentNode {
	out := make([]domain.AgentNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all transitions in definition order.
func (g *Graph) Edges() []domain.TransitionEdge {
	return append([]domain.TransitionEdge(nil), g.edges...)
}

// OutgoingEdges returns the transitions leaving nodeID, highest priority first.
// Equal priorities keep their definition order. The returned slice is a copy.
func (g *Graph) OutgoingEdges(nodeID string) []domain.TransitionEdge {
	return append([]domain.TransitionEdge(nil), g.outgoing[nodeID]...)
}

// Reachable returns the IDs reachable from start (including start), in BFS order.
func (g *Graph) Reachable(start string) []string {
	if !g.Has(start) {
		return nil
	}
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		out = append(out, current)

		for _, e := range g.outgoing[current] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return out
}

// Unreachable returns the nodes that cannot be reached from start, in definition order.
func (g *Graph) Unreachable(start string) []string {
	seen := make(map[string]bool)
	for _, id := range g.Reachable(start) {
		seen[id] = true
	}
	var out []string
	for _, id := range g.order {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}
