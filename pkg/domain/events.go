package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the event.
type EventType string

const (
	// Session events
	EventSessionCreated EventType = "session_created"
	EventSessionEnded   EventType = "session_ended"
	EventUserJoined     EventType = "user_joined"
	EventUserLeft       EventType = "user_left"

	// Agent events
	EventAgentStarted EventType = "agent_started"
	EventAgentStopped EventType = "agent_stopped"
	EventAgentError   EventType = "agent_error"

	// Conversation events
	EventUserMessage  EventType = "user_message"
	EventAgentMessage EventType = "agent_message"
	EventToolCalled   EventType = "tool_called"
	EventToolResult   EventType = "tool_result"

	// EventCustom covers host-defined events and the engine's own transition markers.
	EventCustom EventType = "custom"
)

var eventTypes = map[EventType]struct{}{
	EventSessionCreated: {},
	EventSessionEnded:   {},
	EventUserJoined:     {},
	EventUserLeft:       {},
	EventAgentStarted:   {},
	EventAgentStopped:   {},
	EventAgentError:     {},
	EventUserMessage:    {},
	EventAgentMessage:   {},
	EventToolCalled:     {},
	EventToolResult:     {},
	EventCustom:         {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Event sources used by the engine itself.
const (
	SourceEngine = "engine"
	SourceHost   = "host"
)

// Event is an immutable fact about the session.
// Seq is assigned when the event is appended to a SessionContext.
type Event struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Source    string         `json:"source,omitempty"`
}

// NewEvent builds an event stamped with a fresh ID and the current time.
func NewEvent(t EventType, source string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
		Source:    source,
	}
}

// String reads a string field from the payload.
func (e Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// TransitionEvent records a committed transition in the session history.
type TransitionEvent struct {
	SessionID string        `json:"session_id"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	EdgeID    string        `json:"edge_id,omitempty"`
	Kind      ConditionKind `json:"kind,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run outside the session critical section and must not block for long.
type LifecycleHooks struct {
	OnEvent          func(context.Context, string, Event)
	OnTransition     func(context.Context, *TransitionEvent)
	OnOutcome        func(context.Context, string, Outcome, time.Duration)
	OnConditionFault func(context.Context, string, *ConditionEvaluationFault)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnEvent: func(ctx context.Context, sid string, e Event) {
			if h.OnEvent != nil {
				h.OnEvent(ctx, sid, e)
			}
			if other.OnEvent != nil {
				other.OnEvent(ctx, sid, e)
			}
		},
		OnTransition: func(ctx context.Context, te *TransitionEvent) {
			if h.OnTransition != nil {
				h.OnTransition(ctx, te)
			}
			if other.OnTransition != nil {
				other.OnTransition(ctx, te)
			}
		},
		OnOutcome: func(ctx context.Context, sid string, o Outcome, d time.Duration) {
			if h.OnOutcome != nil {
				h.OnOutcome(ctx, sid, o, d)
			}
			if other.OnOutcome != nil {
				other.OnOutcome(ctx, sid, o, d)
			}
		},
		OnConditionFault: func(ctx context.Context, sid string, f *ConditionEvaluationFault) {
			if h.OnConditionFault != nil {
				h.OnConditionFault(ctx, sid, f)
			}
			if other.OnConditionFault != nil {
				other.OnConditionFault(ctx, sid, f)
			}
		},
	}
}
