package domain

// ConditionKind selects the predicate used to decide whether an edge fires.
type ConditionKind string

const (
	ConditionToolResult    ConditionKind = "tool_result"
	ConditionUserInput     ConditionKind = "user_input"
	ConditionAgentDecision ConditionKind = "agent_decision"
	ConditionEvent         ConditionKind = "event"
	ConditionRuleSet       ConditionKind = "rule_set"
	ConditionCustom        ConditionKind = "custom"
)

// ConditionKinds returns every supported kind. Evaluators must handle all of them.
func ConditionKinds() []ConditionKind {
	return []ConditionKind{
		ConditionToolResult,
		ConditionUserInput,
		ConditionAgentDecision,
		ConditionEvent,
		ConditionRuleSet,
		ConditionCustom,
	}
}

// Valid reports whether k is one of the closed set of kinds.
func (k ConditionKind) Valid() bool {
	for _, known := range ConditionKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// TransitionEdge defines a rule to move from one agent to another.
type TransitionEdge struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	From string `json:"from" yaml:"from" mapstructure:"from"`
	To   string `json:"to" yaml:"to" mapstructure:"to"`

	Kind ConditionKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Condition holds the kind-specific payload, decoded by the evaluator.
	Condition map[string]any `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`

	// Priority orders outgoing edges; higher evaluates first.
	Priority int `json:"priority" yaml:"priority" mapstructure:"priority"`

	// ToolID optionally names the tool associated with this transition.
	ToolID      string `json:"tool_id,omitempty" yaml:"tool_id,omitempty" mapstructure:"tool_id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// IsSelfLoop reports whether the edge points back at its source.
func (e TransitionEdge) IsSelfLoop() bool {
	return e.From == e.To
}
