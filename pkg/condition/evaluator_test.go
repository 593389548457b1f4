package condition

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv() Env {
	c := domain.NewSessionContext("s1", "a", time.Unix(0, 0))
	return Env{Context: c, Current: domain.AgentNode{ID: "a", Name: "A"}}
}

func edge(kind domain.ConditionKind, cond map[string]any) domain.TransitionEdge {
	return domain.TransitionEdge{ID: "e1", From: "a", To: "b", Kind: kind, Condition: cond}
}

func TestNewEvaluator_CoversEveryKind(t *testing.T) {
	e := NewEvaluator()
	for _, kind := range domain.ConditionKinds() {
		assert.NotNil(t, e.table[kind], kind)
	}
}

func TestUserInput(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.UserInput = "Combat Market help"

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionUserInput, map[string]any{"pattern": "combat"}), env)
	assert.Nil(t, fault)
	assert.True(t, met)

	met, _ = e.Evaluate(context.Background(), edge(domain.ConditionUserInput, map[string]any{"pattern": "quest"}), env)
	assert.False(t, met)

	met, _ = e.Evaluate(context.Background(), edge(domain.ConditionUserInput, map[string]any{}), env)
	assert.False(t, met, "empty pattern never matches")
}

func TestToolResult(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.ToolResults["search"] = map[string]any{
		"status": "ok",
		"count":  3,
		"data":   map[string]any{"items": []any{map[string]any{"name": "sword"}}},
		"tags":   []any{"rare", "weapon"},
	}

	tests := []struct {
		name string
		cond map[string]any
		want bool
	}{
		{"eq", map[string]any{"tool_id": "search", "result_key": "status", "expected_value": "ok"}, true},
		{"default operator", map[string]any{"tool_id": "search", "result_key": "status", "expected_value": "fail"}, false},
		{"neq", map[string]any{"tool_id": "search", "result_key": "status", "operator": "neq", "expected_value": "fail"}, true},
		{"gt numeric", map[string]any{"tool_id": "search", "result_key": "count", "operator": "gt", "expected_value": 2.5}, true},
		{"lt numeric", map[string]any{"tool_id": "search", "result_key": "count", "operator": "lt", "expected_value": 3}, false},
		{"gt incompatible", map[string]any{"tool_id": "search", "result_key": "status", "operator": "gt", "expected_value": 1}, false},
		{"contains", map[string]any{"tool_id": "search", "result_key": "tags", "operator": "contains", "expected_value": "rare"}, true},
		{"not_contains", map[string]any{"tool_id": "search", "result_key": "tags", "operator": "not_contains", "expected_value": "common"}, true},
		{"dot path", map[string]any{"tool_id": "search", "result_key": "data.items.0.name", "expected_value": "sword"}, true},
		{"missing key", map[string]any{"tool_id": "search", "result_key": "nope", "expected_value": nil}, false},
		{"missing tool", map[string]any{"tool_id": "other", "result_key": "status", "expected_value": "ok"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met, fault := e.Evaluate(context.Background(), edge(domain.ConditionToolResult, tt.cond), env)
			assert.Nil(t, fault)
			assert.Equal(t, tt.want, met)
		})
	}
}

func TestToolResult_UnknownOperatorFaults(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.ToolResults["search"] = map[string]any{"status": "ok"}

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionToolResult, map[string]any{
		"tool_id": "search", "result_key": "status", "operator": "approx", "expected_value": "ok",
	}), env)
	assert.False(t, met)
	require.NotNil(t, fault)
	assert.Equal(t, "e1", fault.EdgeID)
	assert.Equal(t, domain.ConditionToolResult, fault.Kind)
}

func TestAgentDecision(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.AgentDecisions["transition_to"] = "billing"
	env.Context.AgentDecisions["escalate"] = true

	met, _ := e.Evaluate(context.Background(), edge(domain.ConditionAgentDecision, map[string]any{"expected_value": "billing"}), env)
	assert.True(t, met, "default key")

	met, _ = e.Evaluate(context.Background(), edge(domain.ConditionAgentDecision, map[string]any{"decision_key": "escalate", "expected_value": true}), env)
	assert.True(t, met)

	met, _ = e.Evaluate(context.Background(), edge(domain.ConditionAgentDecision, map[string]any{"decision_key": "absent", "expected_value": true}), env)
	assert.False(t, met)
}

func TestEvent_SupersetMatch(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.AppendEvent(domain.NewEvent(domain.EventUserLeft, domain.SourceHost, map[string]any{"participant_id": "u1"}))

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionEvent, map[string]any{
		"event_name": "USER_LEFT",
		"event_data": map[string]any{"participant_id": "u1"},
	}), env)
	assert.Nil(t, fault)
	assert.True(t, met)

	met, _ = e.Evaluate(context.Background(), edge(domain.ConditionEvent, map[string]any{
		"event_name": "USER_LEFT",
		"event_data": map[string]any{"participant_id": "u2"},
	}), env)
	assert.False(t, met)

	met, _ = e.Evaluate(context.Background(), edge(domain.ConditionEvent, map[string]any{"event_type": "user_left"}), env)
	assert.True(t, met, "no event_data matches any event of the type")
}

func TestEvent_ScopedToLastTransition(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.AppendEvent(domain.NewEvent(domain.EventUserLeft, domain.SourceHost, nil))
	marker := env.Context.AppendEvent(domain.NewEvent(domain.EventCustom, domain.SourceEngine, nil))
	env.Context.LastTransitionSeq = marker.Seq

	met, _ := e.Evaluate(context.Background(), edge(domain.ConditionEvent, map[string]any{"event_type": "user_left"}), env)
	assert.False(t, met, "events before the last transition are stale")
}

func TestEvent_MissingTypeFaults(t *testing.T) {
	e := NewEvaluator()
	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionEvent, map[string]any{}), newEnv())
	assert.False(t, met)
	assert.NotNil(t, fault)
}

func TestRuleSet_AppliesEffectsOnMatch(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.UserInput = "refund"

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionRuleSet, map[string]any{
		"rule_set": map[string]any{
			"conditions": map[string]any{"all": []any{
				map[string]any{"name": "user_input", "operator": "equal_to", "value": "refund"},
			}},
			"actions": []any{
				map[string]any{"name": "set_context_value", "params": map[string]any{"key": "topic", "value": "billing"}},
				map[string]any{"name": "transition_to_agent", "params": map[string]any{"agent_id": "c"}},
				map[string]any{"name": "log_transition"},
			},
		},
	}), env)
	assert.Nil(t, fault)
	assert.True(t, met)
	assert.Equal(t, "billing", env.Context.Values["topic"])
	assert.Equal(t, "c", env.Context.RequestedNodeID)
}

func TestRuleSet_InlineDocumentAndNoMatch(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionRuleSet, map[string]any{
		"conditions": map[string]any{"name": "is_first_turn", "operator": "is_false"},
		"actions": []any{
			map[string]any{"name": "set_context_value", "params": map[string]any{"key": "k", "value": 1}},
		},
	}), env)
	assert.Nil(t, fault)
	assert.False(t, met)
	assert.NotContains(t, env.Context.Values, "k", "effects are not applied without a match")
}

func TestRuleSet_InvalidDocumentFaults(t *testing.T) {
	e := NewEvaluator()
	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionRuleSet, map[string]any{
		"rule_set": map[string]any{"conditions": map[string]any{"name": "user_input", "operator": "vibes"}},
	}), newEnv())
	assert.False(t, met)
	assert.NotNil(t, fault)
}

func TestCustom(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register("turns_at_least", func(_ context.Context, params map[string]any, view *domain.SessionContext) (bool, error) {
		n, _ := params["n"].(int)
		return view.TurnCount >= n, nil
	})
	e := NewEvaluator(WithRegistry(reg))
	env := newEnv()
	env.Context.TurnCount = 4

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionCustom, map[string]any{
		"condition_code": "turns_at_least",
		"params":         map[string]any{"n": 3},
	}), env)
	assert.Nil(t, fault)
	assert.True(t, met)

	met, fault = e.Evaluate(context.Background(), edge(domain.ConditionCustom, map[string]any{"condition_code": "unknown"}), env)
	assert.Nil(t, fault)
	assert.False(t, met, "unknown codes are not met")
}

func TestEvaluate_RecoversPanics(t *testing.T) {
	e := NewEvaluator(WithPredicate(domain.ConditionUserInput, func(context.Context, domain.TransitionEdge, Env) (bool, error) {
		panic("boom")
	}))

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionUserInput, nil), newEnv())
	assert.False(t, met)
	require.NotNil(t, fault)
	assert.Contains(t, fault.Error(), "boom")
}

func TestEvaluate_UnknownKindFaults(t *testing.T) {
	e := NewEvaluator()
	met, fault := e.Evaluate(context.Background(), edge("telepathy", nil), newEnv())
	assert.False(t, met)
	assert.NotNil(t, fault)
}

func TestEvaluate_UnknownPayloadKeyFaults(t *testing.T) {
	e := NewEvaluator()
	env := newEnv()
	env.Context.UserInput = "invoice please"

	met, fault := e.Evaluate(context.Background(), edge(domain.ConditionUserInput, map[string]any{"paternn": "invoice"}), env)
	assert.False(t, met)
	require.NotNil(t, fault)
	assert.Equal(t, "e1", fault.EdgeID)

	_, fault = e.Evaluate(context.Background(), edge(domain.ConditionRuleSet, map[string]any{
		"rule_set": map[string]any{"conditions": map[string]any{"name": "is_first_turn", "operator": "is_true"}},
		"extra":    true,
	}), env)
	assert.NotNil(t, fault, "keys beside rule_set are rejected")

	for _, key := range []string{"event_type", "event_name"} {
		_, fault = e.Evaluate(context.Background(), edge(domain.ConditionEvent, map[string]any{key: "user_left"}), env)
		assert.Nil(t, fault, key)
	}
}
