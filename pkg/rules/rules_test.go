package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFacts() Facts {
	c := domain.NewSessionContext("s1", "triage", time.Unix(0, 0))
	c.UserInput = "I want a refund please"
	c.TurnCount = 3
	c.LastToolName = "lookup"
	c.ToolResults["lookup"] = map[string]any{"status": "ok"}
	c.AgentDecisions["escalate"] = true
	return Facts{
		Context: c,
		Current: domain.AgentNode{ID: "triage", Name: "Triage", Type: domain.AgentTypeGeneral},
	}
}

func TestParse_Shapes(t *testing.T) {
	single := map[string]any{
		"conditions": map[string]any{"all": []any{
			map[string]any{"name": "user_input", "operator": "contains", "value": "refund"},
		}},
		"actions": []any{map[string]any{"name": "log_transition"}},
	}
	doc, err := Parse(single)
	require.NoError(t, err)
	assert.Len(t, doc.Rules, 1)

	list, err := Parse([]any{single, single})
	require.NoError(t, err)
	assert.Len(t, list.Rules, 2)

	wrapped, err := Parse(map[string]any{"rules": []any{single}, "stop_on_first_trigger": true})
	require.NoError(t, err)
	assert.True(t, wrapped.StopOnFirstTrigger)

	fromJSON, err := Parse(`{"conditions":{"name":"is_first_turn","operator":"is_true"},"actions":[]}`)
	require.NoError(t, err)
	assert.Equal(t, "is_first_turn", fromJSON.Rules[0].Conditions.Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want error
	}{
		{"nil", nil, ErrInvalidDocument},
		{"bad json", "{", ErrInvalidDocument},
		{"no conditions", map[string]any{"actions": []any{}}, ErrInvalidDocument},
		{"unknown field", map[string]any{"conditions": map[string]any{}, "bogus": 1}, ErrInvalidDocument},
		{"unknown operator", map[string]any{
			"conditions": map[string]any{"name": "user_input", "operator": "resembles"},
		}, ErrUnknownOperator},
		{"unknown action", map[string]any{
			"conditions": map[string]any{},
			"actions":    []any{map[string]any{"name": "launch_rocket"}},
		}, ErrUnknownAction},
		{"mixed group", map[string]any{
			"conditions": map[string]any{
				"all": []any{map[string]any{"name": "user_input", "operator": "non_empty"}},
				"any": []any{map[string]any{"name": "user_input", "operator": "non_empty"}},
			},
		}, ErrInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEvaluate_TransitionAction(t *testing.T) {
	doc, err := Parse(map[string]any{
		"conditions": map[string]any{"all": []any{
			map[string]any{"name": "user_input", "operator": "contains", "value": "refund"},
			map[string]any{"name": "conversation_turn_count", "operator": "greater_than", "value": 2},
			map[string]any{"name": "current_agent_name", "operator": "equal_to", "value": "Triage"},
		}},
		"actions": []any{
			map[string]any{"name": "transition_to_agent", "params": map[string]any{"agent_id": "billing"}},
		},
	})
	require.NoError(t, err)

	facts := newFacts()
	res, err := Evaluate(doc, facts)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "billing", res.Effects.NextNodeID)
	assert.Empty(t, facts.Context.RequestedNodeID, "evaluation must not mutate the context")

	res.Effects.Apply(facts.Context)
	assert.Equal(t, "billing", facts.Context.RequestedNodeID)
}

func TestEvaluate_NoMatch(t *testing.T) {
	doc, err := Parse(map[string]any{
		"conditions": map[string]any{"any": []any{
			map[string]any{"name": "user_input", "operator": "starts_with", "value": "hello"},
			map[string]any{"name": "is_first_turn", "operator": "is_true"},
		}},
		"actions": []any{map[string]any{"name": "log_transition"}},
	})
	require.NoError(t, err)

	res, err := Evaluate(doc, newFacts())
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.True(t, res.Effects.Empty())
}

func TestEvaluate_StagedValuesVisibleToLaterRules(t *testing.T) {
	doc, err := Parse(map[string]any{"rules": []any{
		map[string]any{
			"conditions": map[string]any{"name": "decision.escalate", "operator": "is_true"},
			"actions": []any{map[string]any{"name": "set_context_value",
				"params": map[string]any{"key": "x", "value": 1}}},
		},
		map[string]any{
			"conditions": map[string]any{"name": "context.x", "operator": "equal_to", "value": 1},
			"actions": []any{map[string]any{"name": "transition_to_agent",
				"params": map[string]any{"agent_id": "human"}}},
		},
	}})
	require.NoError(t, err)

	facts := newFacts()
	res, err := Evaluate(doc, facts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.Fired)
	assert.Equal(t, "human", res.Effects.NextNodeID)
	assert.NotContains(t, facts.Context.Values, "x")

	res.Effects.Apply(facts.Context)
	assert.Equal(t, 1, facts.Context.Values["x"])
}

func TestEvaluate_StopOnFirstTrigger(t *testing.T) {
	rule := func(agent string) map[string]any {
		return map[string]any{
			"conditions": map[string]any{"name": "user_input", "operator": "non_empty"},
			"actions": []any{map[string]any{"name": "transition_to_agent",
				"params": map[string]any{"agent_id": agent}}},
		}
	}
	doc, err := Parse(map[string]any{"rules": []any{rule("a"), rule("b")}, "stop_on_first_trigger": true})
	require.NoError(t, err)

	res, err := Evaluate(doc, newFacts())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Fired)
	assert.Equal(t, "a", res.Effects.NextNodeID)
}

func TestEvaluate_UnknownVariableIsError(t *testing.T) {
	doc, err := Parse(map[string]any{
		"conditions": map[string]any{"name": "weather", "operator": "non_empty"},
	})
	require.NoError(t, err)

	_, err = Evaluate(doc, newFacts())
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestOperators(t *testing.T) {
	tests := []struct {
		op          string
		left, right any
		want        bool
	}{
		{"equal_to", 3, 3.0, true},
		{"not_equal_to", "a", "b", true},
		{"equal_to_case_insensitive", "ABC", "abc", true},
		{"starts_with", "refund now", "refund", true},
		{"ends_with", "refund now", "now", true},
		{"starts_with", 12, "1", false},
		{"contains", []any{"x", "y"}, "y", true},
		{"does_not_contain", "abc", "z", true},
		{"matches_regex", "order-1234", `^order-\d+$`, true},
		{"greater_than", 5, 4, true},
		{"greater_than", "five", 4, false},
		{"less_than", 1, 4, true},
		{"greater_than_or_equal_to", 4, 4, true},
		{"less_than_or_equal_to", 5, 4, false},
		{"is_true", true, nil, true},
		{"is_false", "false", nil, false},
		{"non_empty", "", nil, false},
		{"non_empty", []any{1}, nil, true},
		{"shares_at_least_one_element_with", []any{"a", "b"}, []any{"b", "c"}, true},
		{"shares_at_least_one_element_with", "ab", []any{"a"}, false},
		{"shares_no_elements_with", []any{"a"}, []any{"c"}, true},
	}
	for _, tt := range tests {
		got, err := operators[tt.op](tt.left, tt.right)
		require.NoError(t, err, tt.op)
		assert.Equal(t, tt.want, got, "%s(%v, %v)", tt.op, tt.left, tt.right)
	}

	_, err := operators["matches_regex"]("x", "(")
	assert.Error(t, err)
}

func TestVariables_LastToolResult(t *testing.T) {
	facts := newFacts()
	v, err := facts.resolve("last_tool_result", &Effects{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, v.(string))

	v, err = facts.resolve("user_input_type", &Effects{})
	require.NoError(t, err)
	assert.Equal(t, "unknown", v)
}
