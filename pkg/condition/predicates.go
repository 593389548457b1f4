package condition

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/handoff/internal/compare"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/registry"
	"github.com/aretw0/handoff/pkg/rules"
)

// Env is what a predicate sees while an edge is evaluated.
type Env struct {
	Context *domain.SessionContext
	Current domain.AgentNode
}

// Predicate decides one edge. Returning an error marks the edge as faulted.
type Predicate func(ctx context.Context, edge domain.TransitionEdge, env Env) (bool, error)

// defaultDecisionKey is used when an agent_decision edge names no key.
const defaultDecisionKey = "transition_to"

func userInput(_ context.Context, edge domain.TransitionEdge, env Env) (bool, error) {
	var c UserInputCondition
	if err := decodePayload(edge.Condition, &c); err != nil {
		return false, err
	}
	if c.Pattern == "" || env.Context.UserInput == "" {
		return false, nil
	}
	return strings.Contains(strings.ToLower(env.Context.UserInput), strings.ToLower(c.Pattern)), nil
}

func toolResult(_ context.Context, edge domain.TransitionEdge, env Env) (bool, error) {
	var c ToolResultCondition
	if err := decodePayload(edge.Condition, &c); err != nil {
		return false, err
	}
	if c.ToolID == "" {
		c.ToolID = edge.ToolID
	}
	result, ok := env.Context.ToolResults[c.ToolID]
	if !ok {
		return false, nil
	}
	actual, ok := compare.Lookup(result, c.ResultKey)
	if !ok {
		return false, nil
	}
	return compareValues(c.Operator, actual, c.ExpectedValue)
}

// compareValues applies a tool_result operator; incompatible operands fail closed.
func compareValues(op string, actual, expected any) (bool, error) {
	switch op {
	case "", "eq":
		return compare.Equal(actual, expected), nil
	case "neq":
		return !compare.Equal(actual, expected), nil
	case "gt":
		res, _ := compare.Greater(actual, expected)
		return res, nil
	case "lt":
		res, _ := compare.Less(actual, expected)
		return res, nil
	case "contains":
		res, _ := compare.Contains(actual, expected)
		return res, nil
	case "not_contains":
		res, ok := compare.Contains(actual, expected)
		return ok && !res, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func agentDecision(_ context.Context, edge domain.TransitionEdge, env Env) (bool, error) {
	var c AgentDecisionCondition
	if err := decodePayload(edge.Condition, &c); err != nil {
		return false, err
	}
	if c.DecisionKey == "" {
		c.DecisionKey = defaultDecisionKey
	}
	got, ok := env.Context.AgentDecisions[c.DecisionKey]
	if !ok {
		return false, nil
	}
	return compare.Equal(got, c.ExpectedValue), nil
}

func event(_ context.Context, edge domain.TransitionEdge, env Env) (bool, error) {
	var c EventCondition
	if err := decodePayload(edge.Condition, &c); err != nil {
		return false, err
	}
	want := c.Type()
	if want == "" {
		return false, fmt.Errorf("event condition without event_type")
	}
	for _, e := range env.Context.EventsSinceTransition() {
		if !strings.EqualFold(string(e.Type), want) {
			continue
		}
		if dataMatches(e.Data, c.EventData) {
			return true, nil
		}
	}
	return false, nil
}

// dataMatches reports whether every key in want is present in got with an equal value.
func dataMatches(got, want map[string]any) bool {
	for k, v := range want {
		actual, ok := got[k]
		if !ok || !compare.Equal(actual, v) {
			return false
		}
	}
	return true
}

// ruleSet evaluates the embedded document and, when it fires, applies its effects
// to the context before reporting the match.
func ruleSet(onLog func(edge domain.TransitionEdge, msg string)) Predicate {
	return func(_ context.Context, edge domain.TransitionEdge, env Env) (bool, error) {
		var raw any = edge.Condition
		if _, ok := edge.Condition["rule_set"]; ok {
			var c RuleSetCondition
			if err := decodePayload(edge.Condition, &c); err != nil {
				return false, err
			}
			raw = c.RuleSet
		}
		doc, err := rules.Parse(raw)
		if err != nil {
			return false, err
		}
		res, err := rules.Evaluate(doc, rules.Facts{Context: env.Context, Current: env.Current})
		if err != nil {
			return false, err
		}
		if !res.Matched {
			return false, nil
		}
		res.Effects.Apply(env.Context)
		for _, msg := range res.Effects.Logs {
			onLog(edge, msg)
		}
		return true, nil
	}
}

func custom(reg *registry.Registry) Predicate {
	return func(ctx context.Context, edge domain.TransitionEdge, env Env) (bool, error) {
		var c CustomCondition
		if err := decodePayload(edge.Condition, &c); err != nil {
			return false, err
		}
		if c.ConditionCode == "" || reg == nil {
			return false, nil
		}
		fn, ok := reg.Lookup(c.ConditionCode)
		if !ok {
			return false, nil
		}
		return fn(ctx, c.Params, env.Context)
	}
}
