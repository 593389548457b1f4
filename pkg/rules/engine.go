package rules

import (
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
)

// Assignment is a staged write to the session context values.
type Assignment struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Effects are the changes a rule evaluation wants to make to the session.
type Effects struct {
	// NextNodeID is the agent requested by transition_to_agent; the last request wins.
	NextNodeID  string       `json:"next_node_id,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`
	// Logs holds messages produced by log_transition.
	Logs []string `json:"logs,omitempty"`
}

// Empty reports whether there is nothing to apply.
func (e *Effects) Empty() bool {
	return e.NextNodeID == "" && len(e.Assignments) == 0 && len(e.Logs) == 0
}

func (e *Effects) lookup(key string) (any, bool) {
	for i := len(e.Assignments) - 1; i >= 0; i-- {
		if e.Assignments[i].Key == key {
			return e.Assignments[i].Value, true
		}
	}
	return nil, false
}

// Apply writes the staged effects into the context.
func (e *Effects) Apply(c *domain.SessionContext) {
	if c.Values == nil {
		c.Values = make(map[string]any)
	}
	for _, a := range e.Assignments {
		c.Values[a.Key] = a.Value
	}
	if e.NextNodeID != "" {
		c.RequestedNodeID = e.NextNodeID
	}
}

// Result is the outcome of evaluating a document.
type Result struct {
	// Matched is true when at least one rule's conditions held.
	Matched bool
	// Fired lists the indices of the rules whose actions were staged.
	Fired   []int
	Effects Effects
}

type actionFunc func(params map[string]any, staged *Effects) error

var actions = map[string]actionFunc{
	"transition_to_agent": func(params map[string]any, staged *Effects) error {
		id, ok := params["agent_id"]
		if !ok || id == nil || fmt.Sprint(id) == "" {
			return fmt.Errorf("transition_to_agent: missing agent_id")
		}
		staged.NextNodeID = fmt.Sprint(id)
		return nil
	},
	"set_context_value": func(params map[string]any, staged *Effects) error {
		key, _ := params["key"].(string)
		if key == "" {
			return fmt.Errorf("set_context_value: missing key")
		}
		staged.Assignments = append(staged.Assignments, Assignment{Key: key, Value: params["value"]})
		return nil
	},
	"log_transition": func(params map[string]any, staged *Effects) error {
		msg, _ := params["message"].(string)
		if msg == "" {
			msg = "rule set triggered transition"
		}
		staged.Logs = append(staged.Logs, msg)
		return nil
	},
}

// Evaluate runs the document against the facts without mutating them.
// Rules are evaluated in order; values staged by set_context_value are visible
// to later rules through "context.<key>".
func Evaluate(doc *Document, facts Facts) (Result, error) {
	var res Result
	if facts.Context == nil {
		return res, fmt.Errorf("rules: nil session context")
	}
	for i, rule := range doc.Rules {
		ok, err := holds(*rule.Conditions, facts, &res.Effects)
		if err != nil {
			return Result{}, fmt.Errorf("rule %d: %w", i, err)
		}
		if !ok {
			continue
		}
		res.Matched = true
		res.Fired = append(res.Fired, i)
		for _, a := range rule.Actions {
			fn, known := actions[a.Name]
			if !known {
				return Result{}, fmt.Errorf("rule %d: %w: %q", i, ErrUnknownAction, a.Name)
			}
			if err := fn(a.Params, &res.Effects); err != nil {
				return Result{}, fmt.Errorf("rule %d: %w", i, err)
			}
		}
		if doc.StopOnFirstTrigger {
			break
		}
	}
	return res, nil
}

func holds(c Condition, facts Facts, staged *Effects) (bool, error) {
	if c.isLeaf() {
		left, err := facts.resolve(c.Name, staged)
		if err != nil {
			return false, err
		}
		op, ok := operators[c.Operator]
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
		}
		return op(left, c.Value)
	}

	if len(c.Any) > 0 {
		for _, sub := range c.Any {
			ok, err := holds(sub, facts, staged)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}

	for _, sub := range c.All {
		ok, err := holds(sub, facts, staged)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
