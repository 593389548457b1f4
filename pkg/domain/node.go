package domain

// Agent types mirror the categories used by the configuration store.
// The engine treats them as opaque labels.
const (
	AgentTypeGeneral = "general"
	AgentTypeCustom  = "custom"
)

// ProviderSettings describes which model backends the host should wire into the agent.
type ProviderSettings struct {
	LLM   string `json:"llm,omitempty" yaml:"llm,omitempty" mapstructure:"llm"`
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	STT   string `json:"stt,omitempty" yaml:"stt,omitempty" mapstructure:"stt"`
	TTS   string `json:"tts,omitempty" yaml:"tts,omitempty" mapstructure:"tts"`
}

// AgentNode represents a vertex of the transition graph.
// It is immutable once loaded into a graph; graphs are rebuilt, not patched.
type AgentNode struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`

	// Instructions is the system prompt handed to the agent runtime.
	Instructions string `json:"instructions" yaml:"instructions" mapstructure:"instructions"`

	Provider ProviderSettings `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Tools lists the tool names the agent is allowed to call.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty" mapstructure:"tools"`

	// Config is an opaque blob passed through to the Agent Factory.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// DisplayName returns the name, falling back to the ID.
func (n AgentNode) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}
