package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/handoff/internal/presentation/graph"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []domain.AgentNode
		edges    []domain.TransitionEdge
		overlay  *graph.GraphOverlay
		contains []string
	}{
		{
			name: "Agent Shapes",
			nodes: []domain.AgentNode{
				{ID: "triage", Name: "Triage"},
				{ID: "bot", Type: domain.AgentTypeCustom},
			},
			contains: []string{
				"triage[\"Triage\"]",
				"bot[[\"bot\"]]",
			},
		},
		{
			name: "ID Sanitization",
			nodes: []domain.AgentNode{
				{ID: "tier-1.support"},
			},
			contains: []string{
				"tier_1_support[\"tier-1.support\"]",
			},
		},
		{
			name: "Edge Labels",
			edges: []domain.TransitionEdge{
				{From: "a", To: "b", Kind: domain.ConditionUserInput, Condition: map[string]any{"pattern": "say \"hi\""}, Priority: 2},
				{From: "a", To: "c", Kind: domain.ConditionAgentDecision, Condition: map[string]any{"expected_value": "c"}},
				{From: "a", To: "d", Kind: domain.ConditionToolResult, ToolID: "lookup", Condition: map[string]any{"result_key": "status"}},
				{From: "a", To: "e", Kind: domain.ConditionRuleSet},
				{From: "a", To: "f", Kind: domain.ConditionCustom, Condition: map[string]any{"condition_code": "angry"}},
			},
			contains: []string{
				"a -- \"user_input: say 'hi' (p2)\" --> b",
				"a -- \"agent_decision: transition_to=c\" --> c",
				"a -- \"tool_result: lookup.status\" --> d",
				"a -. \"rules\" .-> e",
				"a -. \"custom: angry\" .-> f",
			},
		},
		{
			name:    "Overlay",
			nodes:   []domain.AgentNode{{ID: "a"}, {ID: "b"}},
			overlay: &graph.GraphOverlay{VisitedNodes: []string{"a", "a"}, CurrentNode: "b"},
			contains: []string{
				"class a visited;",
				"class b current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.nodes, tt.edges, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			if tt.overlay != nil {
				assert.Equal(t, 1, strings.Count(got, "class a visited;"))
			}
		})
	}
}

func TestOverlayFromContext(t *testing.T) {
	assert.Nil(t, graph.OverlayFromContext(nil))

	sc := domain.NewSessionContext("s1", "c", time.Now())
	sc.PreviousNodeID = "b"
	sc.AppendEvent(domain.Event{Type: domain.EventCustom, Source: domain.SourceEngine, Data: map[string]any{"from": "a", "to": "b"}})
	sc.AppendEvent(domain.Event{Type: domain.EventCustom, Source: domain.SourceHost, Data: map[string]any{"from": "x"}})

	overlay := graph.OverlayFromContext(sc)
	assert.Equal(t, "c", overlay.CurrentNode)
	assert.Equal(t, []string{"a", "b", "b"}, overlay.VisitedNodes)
}
