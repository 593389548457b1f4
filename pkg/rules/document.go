package rules

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

var (
	// ErrInvalidDocument is returned when a rule document cannot be decoded.
	ErrInvalidDocument = errors.New("invalid rule document")
	// ErrUnknownVariable is returned when a condition names a variable that does not exist.
	ErrUnknownVariable = errors.New("unknown rule variable")
	// ErrUnknownOperator is returned for operators outside the supported set.
	ErrUnknownOperator = errors.New("unknown rule operator")
	// ErrUnknownAction is returned for actions outside the supported set.
	ErrUnknownAction = errors.New("unknown rule action")
)

// Condition is either a leaf comparison (Name, Operator, Value) or a group (All / Any).
type Condition struct {
	Name     string      `mapstructure:"name" json:"name,omitempty"`
	Operator string      `mapstructure:"operator" json:"operator,omitempty"`
	Value    any         `mapstructure:"value" json:"value,omitempty"`
	All      []Condition `mapstructure:"all" json:"all,omitempty"`
	Any      []Condition `mapstructure:"any" json:"any,omitempty"`
}

func (c Condition) isLeaf() bool {
	return c.Name != ""
}

// Action is a named effect with parameters.
type Action struct {
	Name   string         `mapstructure:"name" json:"name"`
	Params map[string]any `mapstructure:"params" json:"params,omitempty"`
}

// Rule pairs a condition tree with the actions staged when it holds.
type Rule struct {
	Conditions *Condition `mapstructure:"conditions" json:"conditions"`
	Actions    []Action   `mapstructure:"actions" json:"actions"`
}

// Document is an ordered list of rules.
type Document struct {
	Rules []Rule `mapstructure:"rules" json:"rules"`

	// StopOnFirstTrigger stops evaluation after the first rule whose conditions hold.
	StopOnFirstTrigger bool `mapstructure:"stop_on_first_trigger" json:"stop_on_first_trigger,omitempty"`
}

// Parse decodes a rule document from its loose representation.
// It accepts a single rule object, an object with a "rules" list, a bare list of rules,
// or any of these encoded as a JSON string.
func Parse(raw any) (*Document, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty", ErrInvalidDocument)
	case *Document:
		return v, v.Validate()
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return Parse(decoded)
	case []byte:
		return Parse(string(v))
	case []any:
		return decode(map[string]any{"rules": v})
	case map[string]any:
		if _, ok := v["rules"]; ok {
			return decode(v)
		}
		var r Rule
		if err := decodeInto(v, &r); err != nil {
			return nil, err
		}
		doc := &Document{Rules: []Rule{r}}
		return doc, doc.Validate()
	default:
		return decode(raw)
	}
}

func decode(raw any) (*Document, error) {
	var doc Document
	if err := decodeInto(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, doc.Validate()
}

func decodeInto(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// Validate checks the document structure, operators and action names.
func (d *Document) Validate() error {
	if len(d.Rules) == 0 {
		return fmt.Errorf("%w: no rules", ErrInvalidDocument)
	}
	for i, r := range d.Rules {
		if r.Conditions == nil {
			return fmt.Errorf("%w: rule %d has no conditions", ErrInvalidDocument, i)
		}
		if err := r.Conditions.validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		for _, a := range r.Actions {
			if _, ok := actions[a.Name]; !ok {
				return fmt.Errorf("rule %d: %w: %q", i, ErrUnknownAction, a.Name)
			}
		}
	}
	return nil
}

func (c Condition) validate() error {
	if c.isLeaf() {
		if len(c.All) > 0 || len(c.Any) > 0 {
			return fmt.Errorf("%w: condition %q mixes a comparison with a group", ErrInvalidDocument, c.Name)
		}
		if _, ok := operators[c.Operator]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
		}
		return nil
	}
	if len(c.All) > 0 && len(c.Any) > 0 {
		return fmt.Errorf("%w: group mixes all and any", ErrInvalidDocument)
	}
	for _, sub := range append(append([]Condition(nil), c.All...), c.Any...) {
		if err := sub.validate(); err != nil {
			return err
		}
	}
	return nil
}
