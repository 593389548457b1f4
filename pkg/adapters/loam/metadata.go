package loam

import (
	"github.com/aretw0/handoff/pkg/domain"
)

// AgentMetadata is the frontmatter of an agent document.
// The document body becomes the agent instructions unless Instructions is set.
type AgentMetadata struct {
	ID          string                  `json:"id" mapstructure:"id"`
	Scope       string                  `json:"scope" mapstructure:"scope"`
	Name        string                  `json:"name" mapstructure:"name"`
	Description string                  `json:"description" mapstructure:"description"`
	Type        string                  `json:"type" mapstructure:"type"`
	Provider    domain.ProviderSettings `json:"provider" mapstructure:"provider"`
	Tools       []string                `json:"tools" mapstructure:"tools"`
	Config      map[string]any          `json:"config" mapstructure:"config"`

	Instructions string `json:"instructions" mapstructure:"instructions"`

	Transitions []TransitionMetadata `json:"transitions" mapstructure:"transitions"`
}

// TransitionMetadata is one outgoing edge declared in the frontmatter.
// From is implied by the enclosing document.
type TransitionMetadata struct {
	ID          string         `json:"id" mapstructure:"id"`
	To          string         `json:"to" mapstructure:"to"`
	Kind        string         `json:"kind" mapstructure:"kind"`
	Condition   map[string]any `json:"condition" mapstructure:"condition"`
	ToolID      string         `json:"tool_id" mapstructure:"tool_id"`
	Description string         `json:"description" mapstructure:"description"`

	// Priority stays untyped: strict mode yields json.Number.
	Priority any `json:"priority" mapstructure:"priority"`
}
