package dsl

import (
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/graph"
)

// AgentBuilder provides a fluent API for configuring an agent and its outgoing transitions.
type AgentBuilder struct {
	node    domain.AgentNode
	edges   []domain.TransitionEdge
	builder *Builder
}

// Named sets the display name of the agent.
func (a *AgentBuilder) Named(name string) *AgentBuilder {
	a.node.Name = name
	return a
}

// Describe sets the agent description.
func (a *AgentBuilder) Describe(text string) *AgentBuilder {
	a.node.Description = text
	return a
}

// Typed sets the agent type label.
func (a *AgentBuilder) Typed(t string) *AgentBuilder {
	a.node.Type = t
	return a
}

// Instructions sets the system prompt handed to the agent runtime.
func (a *AgentBuilder) Instructions(text string) *AgentBuilder {
	a.node.Instructions = text
	return a
}

// Provider sets the model backends for the agent.
func (a *AgentBuilder) Provider(p domain.ProviderSettings) *AgentBuilder {
	a.node.Provider = p
	return a
}

// Tools appends tool names the agent may call.
func (a *AgentBuilder) Tools(names ...string) *AgentBuilder {
	a.node.Tools = append(a.node.Tools, names...)
	return a
}

// Config adds an opaque configuration value passed to the factory.
func (a *AgentBuilder) Config(key string, value any) *AgentBuilder {
	if a.node.Config == nil {
		a.node.Config = make(map[string]any)
	}
	a.node.Config[key] = value
	return a
}

// Go adds a transition of any kind with a raw condition payload.
func (a *AgentBuilder) Go(target string, kind domain.ConditionKind, condition map[string]any, priority int) *AgentBuilder {
	a.edges = append(a.edges, domain.TransitionEdge{
		From:      a.node.ID,
		To:        target,
		Kind:      kind,
		Condition: condition,
		Priority:  priority,
	})
	return a
}

// OnUserInput transitions when the last user input contains pattern (case-insensitive).
func (a *AgentBuilder) OnUserInput(pattern, target string, priority int) *AgentBuilder {
	return a.Go(target, domain.ConditionUserInput, map[string]any{"pattern": pattern}, priority)
}

// OnToolResult transitions when the tool's result compares to expected with op.
// An empty resultKey compares the whole result; op defaults to "eq".
func (a *AgentBuilder) OnToolResult(toolID, resultKey string, op string, expected any, target string, priority int) *AgentBuilder {
	cond := map[string]any{
		"tool_id":        toolID,
		"expected_value": expected,
	}
	if resultKey != "" {
		cond["result_key"] = resultKey
	}
	if op != "" {
		cond["operator"] = op
	}
	a.Go(target, domain.ConditionToolResult, cond, priority)
	a.edges[len(a.edges)-1].ToolID = toolID
	return a
}

// OnDecision transitions when the agent recorded decision key with the given value.
func (a *AgentBuilder) OnDecision(key string, value any, target string, priority int) *AgentBuilder {
	return a.Go(target, domain.ConditionAgentDecision, map[string]any{
		"decision_key":   key,
		"expected_value": value,
	}, priority)
}

// OnEvent transitions when an event of the given type, carrying every pair in data,
// arrived since the last transition.
func (a *AgentBuilder) OnEvent(eventType domain.EventType, data map[string]any, target string, priority int) *AgentBuilder {
	cond := map[string]any{"event_type": string(eventType)}
	if len(data) > 0 {
		cond["event_data"] = data
	}
	return a.Go(target, domain.ConditionEvent, cond, priority)
}

// OnRules transitions when the rule document fires.
func (a *AgentBuilder) OnRules(document map[string]any, target string, priority int) *AgentBuilder {
	return a.Go(target, domain.ConditionRuleSet, map[string]any{"rule_set": document}, priority)
}

// OnCustom transitions when the registered predicate named code returns true.
func (a *AgentBuilder) OnCustom(code string, params map[string]any, target string, priority int) *AgentBuilder {
	cond := map[string]any{"condition_code": code}
	if len(params) > 0 {
		cond["params"] = params
	}
	return a.Go(target, domain.ConditionCustom, cond, priority)
}

// Agent switches to declaring another agent.
func (a *AgentBuilder) Agent(id string) *AgentBuilder {
	return a.builder.Agent(id)
}

// Build compiles the whole graph, so a chain can end on its last agent.
func (a *AgentBuilder) Build() (*graph.Graph, error) {
	return a.builder.Build()
}

// MustBuild is like Build but panics on error.
func (a *AgentBuilder) MustBuild() *graph.Graph {
	return a.builder.MustBuild()
}

// Node returns the underlying domain.AgentNode.
func (a *AgentBuilder) Node() domain.AgentNode {
	return a.node
}
