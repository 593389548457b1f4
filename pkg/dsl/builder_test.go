package dsl

import (
	"errors"
	"testing"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleGraph(t *testing.T) {
	g, err := New().
		Agent("triage").Named("Triage").Instructions("route").
		OnUserInput("billing", "billing", 10).
		OnDecision("escalate", true, "human", 20).
		Agent("billing").Tools("lookup_invoice").
		Agent("human").Named("Human").
		Build()
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"triage", "billing", "human"}, ids)

	out := g.OutgoingEdges("triage")
	require.Len(t, out, 2)
	assert.Equal(t, "human", out[0].To, "higher priority first")
	assert.Equal(t, domain.ConditionAgentDecision, out[0].Kind)
	assert.Equal(t, "escalate", out[0].Condition["decision_key"])
	assert.Equal(t, "billing", out[1].To)
	assert.Equal(t, "billing", out[1].Condition["pattern"])

	billing, err := g.Node("billing")
	require.NoError(t, err)
	assert.Equal(t, []string{"lookup_invoice"}, billing.Tools)
	assert.Equal(t, "billing", billing.Name, "name defaults to id")
}

func TestBuilder_AgentIsIdempotent(t *testing.T) {
	b := New()
	first := b.Agent("a").Named("A")
	second := b.Agent("a")
	assert.Same(t, first, second)
	assert.Equal(t, "A", second.Node().Name)
}

func TestBuilder_ConditionPayloads(t *testing.T) {
	g := New().
		Agent("a").
		OnToolResult("search", "status", "eq", "ok", "b", 3).
		OnEvent(domain.EventUserLeft, map[string]any{"user_id": "u1"}, "b", 2).
		OnRules(map[string]any{"conditions": map[string]any{}}, "b", 1).
		OnCustom("always", nil, "b", 0).
		Agent("b").
		MustBuild()

	out := g.OutgoingEdges("a")
	require.Len(t, out, 4)

	assert.Equal(t, domain.ConditionToolResult, out[0].Kind)
	assert.Equal(t, "search", out[0].ToolID)
	assert.Equal(t, "status", out[0].Condition["result_key"])

	assert.Equal(t, domain.ConditionEvent, out[1].Kind)
	assert.Equal(t, "user_left", out[1].Condition["event_type"])

	assert.Equal(t, domain.ConditionRuleSet, out[2].Kind)
	assert.Contains(t, out[2].Condition, "rule_set")

	assert.Equal(t, domain.ConditionCustom, out[3].Kind)
	assert.NotContains(t, out[3].Condition, "params")
}

func TestBuilder_DanglingTarget(t *testing.T) {
	_, err := New().Agent("a").OnUserInput("x", "ghost", 0).Build()
	require.Error(t, err)

	var gerr *domain.GraphIntegrityError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "ghost", gerr.NodeID)
}

func TestAgentBuilder_BuildsWholeGraph(t *testing.T) {
	b := New()
	b.Agent("a").OnUserInput("x", "b", 0)

	g, err := b.Agent("b").Build()
	require.NoError(t, err)
	assert.Len(t, g.Nodes(), 2)
	assert.Len(t, g.OutgoingEdges("a"), 1)

	assert.Panics(t, func() { New().Agent("a").OnUserInput("x", "ghost", 0).MustBuild() })
}
