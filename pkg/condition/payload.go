package condition

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// UserInputCondition matches a case-insensitive substring of the last user input.
type UserInputCondition struct {
	Pattern string `mapstructure:"pattern"`
}

// ToolResultCondition compares a field of a tool's latest result.
type ToolResultCondition struct {
	ToolID        string `mapstructure:"tool_id"`
	ResultKey     string `mapstructure:"result_key"`
	ExpectedValue any    `mapstructure:"expected_value"`
	Operator      string `mapstructure:"operator"`
}

// AgentDecisionCondition matches a decision recorded by the current agent.
type AgentDecisionCondition struct {
	DecisionKey   string `mapstructure:"decision_key"`
	ExpectedValue any    `mapstructure:"expected_value"`
}

// EventCondition matches an event appended since the last transition.
type EventCondition struct {
	EventType string         `mapstructure:"event_type"`
	EventName string         `mapstructure:"event_name"`
	EventData map[string]any `mapstructure:"event_data"`
}

// Type returns the configured event type, accepting either spelling of the key.
func (c EventCondition) Type() string {
	if c.EventType != "" {
		return c.EventType
	}
	return c.EventName
}

// RuleSetCondition embeds a rule document under rule_set.
// A payload without rule_set is itself the document.
type RuleSetCondition struct {
	RuleSet any `mapstructure:"rule_set"`
}

// CustomCondition names a predicate registered by the host.
type CustomCondition struct {
	ConditionCode string         `mapstructure:"condition_code"`
	Params        map[string]any `mapstructure:"params"`
}

// decodePayload rejects unknown keys so a misspelled field faults instead of never matching.
func decodePayload(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode condition payload: %w", err)
	}
	return nil
}
