package orchestrator

import (
	"fmt"
	"maps"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
)

// mutator applies the context changes implied by one event type.
type mutator func(c *domain.SessionContext, e domain.Event)

var mutators = map[domain.EventType]mutator{
	domain.EventSessionCreated: func(c *domain.SessionContext, e domain.Event) {
		c.Session.Active = true
	},
	domain.EventSessionEnded: func(c *domain.SessionContext, e domain.Event) {
		c.Session.Active = false
		c.Session.EndedAt = e.Timestamp
	},
	domain.EventUserJoined: func(c *domain.SessionContext, e domain.Event) {
		id := firstString(e, "participant_id", "user_id")
		name := firstString(e, "participant_name", "name")
		for i, p := range c.Session.Participants {
			if p.ID == id {
				c.Session.Participants[i].Active = true
				c.Session.Participants[i].LeftAt = time.Time{}
				if name != "" {
					c.Session.Participants[i].Name = name
				}
				return
			}
		}
		c.Session.Participants = append(c.Session.Participants, domain.Participant{
			ID:       id,
			Name:     name,
			Active:   true,
			JoinedAt: e.Timestamp,
		})
	},
	domain.EventUserLeft: func(c *domain.SessionContext, e domain.Event) {
		id := firstString(e, "participant_id", "user_id")
		for i, p := range c.Session.Participants {
			if p.ID == id {
				c.Session.Participants[i].Active = false
				c.Session.Participants[i].LeftAt = e.Timestamp
			}
		}
	},
	domain.EventAgentStarted: func(c *domain.SessionContext, e domain.Event) {
		id := agentID(c, e)
		a := c.Agents[id]
		a.ID = id
		if name := e.String("agent_name"); name != "" {
			a.Name = name
		}
		a.Active = true
		a.StartedAt = e.Timestamp
		c.Agents[id] = a
	},
	domain.EventAgentStopped: func(c *domain.SessionContext, e domain.Event) {
		id := agentID(c, e)
		a := c.Agents[id]
		a.ID = id
		a.Active = false
		a.StoppedAt = e.Timestamp
		c.Agents[id] = a
	},
	domain.EventAgentError: func(c *domain.SessionContext, e domain.Event) {
		id := agentID(c, e)
		a := c.Agents[id]
		a.ID = id
		msg := e.String("error")
		if msg == "" {
			msg = "unknown error"
		}
		a.Errors = append(a.Errors, msg)
		c.Agents[id] = a
	},
	domain.EventUserMessage: func(c *domain.SessionContext, e domain.Event) {
		text := firstString(e, "message", "text")
		c.UserInput = text
		c.TurnCount++
		c.Conversation = append(c.Conversation, domain.Message{
			Role:      "user",
			Content:   text,
			Timestamp: e.Timestamp,
		})
	},
	domain.EventAgentMessage: func(c *domain.SessionContext, e domain.Event) {
		c.Conversation = append(c.Conversation, domain.Message{
			Role:      "assistant",
			Content:   firstString(e, "message", "text"),
			AgentID:   agentID(c, e),
			Timestamp: e.Timestamp,
		})
		if decisions, ok := e.Data["decisions"].(map[string]any); ok {
			maps.Copy(c.AgentDecisions, decisions)
		}
	},
	domain.EventToolCalled: func(c *domain.SessionContext, e domain.Event) {
		if tool := toolName(e); tool != "" {
			c.LastToolName = tool
		}
	},
	domain.EventToolResult: func(c *domain.SessionContext, e domain.Event) {
		tool := toolName(e)
		if tool == "" {
			return
		}
		result, ok := e.Data["tool_result"]
		if !ok {
			result = e.Data["result"]
		}
		c.ToolResults[tool] = result
		c.LastToolName = tool
	},
	domain.EventCustom: func(c *domain.SessionContext, e domain.Event) {
		if values, ok := e.Data["context"].(map[string]any); ok {
			maps.Copy(c.Values, values)
		}
	},
}

// apply runs the mutator for e. Unknown types only land in history.
func apply(c *domain.SessionContext, e domain.Event) {
	if fn, ok := mutators[e.Type]; ok {
		fn(c, e)
	}
}

func firstString(e domain.Event, keys ...string) string {
	for _, k := range keys {
		if v, ok := e.Data[k]; ok && v != nil {
			if s, isStr := v.(string); isStr {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

func agentID(c *domain.SessionContext, e domain.Event) string {
	if id := firstString(e, "agent_id"); id != "" {
		return id
	}
	return c.CurrentNodeID
}

func toolName(e domain.Event) string {
	return firstString(e, "tool_name", "tool_id")
}
