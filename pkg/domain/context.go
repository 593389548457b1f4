package domain

import (
	"encoding/json"
	"maps"
	"time"
)

// DefaultHistoryCapacity bounds the event history of a session.
const DefaultHistoryCapacity = 100

// Participant is a user attached to the session by the transport.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Active   bool      `json:"active"`
	JoinedAt time.Time `json:"joined_at"`
	LeftAt   time.Time `json:"left_at,omitzero"`
}

// SessionInfo carries session-level metadata.
type SessionInfo struct {
	ID           string        `json:"id"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	EndedAt      time.Time     `json:"ended_at,omitzero"`
	Participants []Participant `json:"participants,omitempty"`
}

// AgentActivity tracks what the transport reported about a materialized agent.
type AgentActivity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at,omitzero"`
	StoppedAt time.Time `json:"stopped_at,omitzero"`
	Errors    []string  `json:"errors,omitempty"`
}

// Message is one entry of the conversation log.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	AgentID   string    `json:"agent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext is the mutable fact base of one session.
// It is owned by exactly one orchestrator and only touched inside its critical section.
type SessionContext struct {
	CurrentNodeID  string `json:"current_node_id"`
	PreviousNodeID string `json:"previous_node_id,omitempty"`

	TurnCount int    `json:"turn_count"`
	UserInput string `json:"user_input,omitempty"`

	// History is bounded by HistoryCapacity; the oldest events are evicted first.
	History         []Event `json:"history"`
	HistoryCapacity int     `json:"history_capacity"`

	// Seq is the sequence number of the most recently appended event.
	Seq uint64 `json:"seq"`
	// LastTransitionSeq is the Seq of the marker appended by the last committed transition.
	LastTransitionSeq uint64 `json:"last_transition_seq"`

	ToolResults    map[string]any `json:"tool_results"`
	LastToolName   string         `json:"last_tool_name,omitempty"`
	AgentDecisions map[string]any `json:"agent_decisions"`

	// Values holds context updates written by rule-set actions and custom events.
	Values map[string]any `json:"values"`

	// RequestedNodeID is set by a rule-set action asking for a specific next agent.
	RequestedNodeID string `json:"requested_node_id,omitempty"`

	Conversation []Message               `json:"conversation,omitempty"`
	Agents       map[string]AgentActivity `json:"agents,omitempty"`
	Session      SessionInfo              `json:"session"`
}

// NewSessionContext creates a clean context positioned at the initial node.
func NewSessionContext(sessionID, initialNodeID string, now time.Time) *SessionContext {
	return &SessionContext{
		CurrentNodeID:   initialNodeID,
		History:         make([]Event, 0, DefaultHistoryCapacity),
		HistoryCapacity: DefaultHistoryCapacity,
		ToolResults:     make(map[string]any),
		AgentDecisions:  make(map[string]any),
		Values:          make(map[string]any),
		Agents:          make(map[string]AgentActivity),
		Session: SessionInfo{
			ID:        sessionID,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// AppendEvent stamps the event with the next sequence number and records it.
// It returns the stamped copy.
func (c *SessionContext) AppendEvent(e Event) Event {
	c.Seq++
	e.Seq = c.Seq
	c.History = append(c.History, e)

	limit := c.HistoryCapacity
	if limit <= 0 {
		limit = DefaultHistoryCapacity
	}
	if over := len(c.History) - limit; over > 0 {
		// Shift instead of re-slicing so the backing array does not creep forward.
		n := copy(c.History, c.History[over:])
		clear(c.History[n:])
		c.History = c.History[:n]
	}
	if !e.Timestamp.IsZero() {
		c.Session.UpdatedAt = e.Timestamp
	}
	return e
}

// EventsSinceTransition returns the events appended after the last committed transition,
// oldest first.
func (c *SessionContext) EventsSinceTransition() []Event {
	for i, e := range c.History {
		if e.Seq > c.LastTransitionSeq {
			return c.History[i:]
		}
	}
	return nil
}

// LastToolResult returns the result recorded for the most recently used tool.
func (c *SessionContext) LastToolResult() any {
	if c.LastToolName == "" {
		return nil
	}
	return c.ToolResults[c.LastToolName]
}

// LastToolResultJSON renders the last tool result as a JSON string.
func (c *SessionContext) LastToolResultJSON() string {
	res := c.LastToolResult()
	if res == nil {
		return ""
	}
	if s, ok := res.(string); ok {
		return s
	}
	b, err := json.Marshal(res)
	if err != nil {
		return ""
	}
	return string(b)
}

// Clone returns a copy that shares no mutable containers with c.
// Values stored inside the maps are treated as immutable and are not deep-copied.
func (c *SessionContext) Clone() *SessionContext {
	if c == nil {
		return nil
	}
	out := *c
	out.History = append([]Event(nil), c.History...)
	out.Conversation = append([]Message(nil), c.Conversation...)
	out.ToolResults = maps.Clone(c.ToolResults)
	out.AgentDecisions = maps.Clone(c.AgentDecisions)
	out.Values = maps.Clone(c.Values)
	out.Agents = make(map[string]AgentActivity, len(c.Agents))
	for k, v := range c.Agents {
		v.Errors = append([]string(nil), v.Errors...)
		out.Agents[k] = v
	}
	out.Session.Participants = append([]Participant(nil), c.Session.Participants...)
	return &out
}
