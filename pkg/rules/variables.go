package rules

import (
	"fmt"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
)

// Facts is the read-only view a rule document is evaluated against.
type Facts struct {
	Context *domain.SessionContext
	Current domain.AgentNode
}

type variableFunc func(c *domain.SessionContext, current domain.AgentNode) any

var variables = map[string]variableFunc{
	"user_input": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.UserInput
	},
	"conversation_turn_count": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.TurnCount
	},
	"turn_count": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.TurnCount
	},
	"is_first_turn": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.TurnCount <= 1
	},
	"user_input_type": func(c *domain.SessionContext, _ domain.AgentNode) any {
		if t, ok := c.Values["user_input_type"].(string); ok && t != "" {
			return t
		}
		return "unknown"
	},
	"current_agent_id": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.CurrentNodeID
	},
	"current_agent_name": func(_ *domain.SessionContext, n domain.AgentNode) any {
		return n.Name
	},
	"current_agent_type": func(_ *domain.SessionContext, n domain.AgentNode) any {
		return n.Type
	},
	"previous_agent_id": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.PreviousNodeID
	},
	"last_tool_name": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.LastToolName
	},
	"last_tool_result": func(c *domain.SessionContext, _ domain.AgentNode) any {
		return c.LastToolResultJSON()
	},
}

// Variables lists the plain variable names a condition may reference.
// Prefixed lookups "context.<key>", "decision.<key>" and "tool.<name>" are also accepted.
func Variables() []string {
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	return names
}

// resolve reads a variable, letting values staged by earlier rules shadow the context.
func (f Facts) resolve(name string, staged *Effects) (any, error) {
	if key, ok := strings.CutPrefix(name, "context."); ok {
		if v, found := staged.lookup(key); found {
			return v, nil
		}
		return f.Context.Values[key], nil
	}
	if key, ok := strings.CutPrefix(name, "decision."); ok {
		return f.Context.AgentDecisions[key], nil
	}
	if key, ok := strings.CutPrefix(name, "tool."); ok {
		return f.Context.ToolResults[key], nil
	}
	fn, ok := variables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	return fn(f.Context, f.Current), nil
}
