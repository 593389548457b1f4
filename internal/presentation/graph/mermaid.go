package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
)

// GraphOverlay contains dynamic session data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromContext marks the agents a session has visited, read from its transition markers.
func OverlayFromContext(sc *domain.SessionContext) *GraphOverlay {
	if sc == nil {
		return nil
	}
	overlay := &GraphOverlay{CurrentNode: sc.CurrentNodeID}
	for _, e := range sc.History {
		if e.Type != domain.EventCustom || e.Source != domain.SourceEngine {
			continue
		}
		if from := e.String("from"); from != "" {
			overlay.VisitedNodes = append(overlay.VisitedNodes, from)
		}
		if to := e.String("to"); to != "" {
			overlay.VisitedNodes = append(overlay.VisitedNodes, to)
		}
	}
	if sc.PreviousNodeID != "" {
		overlay.VisitedNodes = append(overlay.VisitedNodes, sc.PreviousNodeID)
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of the agent graph.
// It applies semantic styling:
// - Custom agents: [[Subroutine]]
// - Default: [Rectangle]
// Rule-set and custom edges are dotted; every edge is labelled with its condition.
func GenerateMermaid(nodes []domain.AgentNode, edges []domain.TransitionEdge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		if node.Type == domain.AgentTypeCustom {
			opener, closer = "[[", "]]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(node.DisplayName()), closer))
	}

	for _, e := range edges {
		label := escapeLabel(edgeLabel(e))
		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if e.Kind == domain.ConditionRuleSet || e.Kind == domain.ConditionCustom {
			arrow = fmt.Sprintf("-. \"%s\" .->", label)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func edgeLabel(e domain.TransitionEdge) string {
	c := e.Condition
	var detail string
	switch e.Kind {
	case domain.ConditionUserInput:
		detail = fmt.Sprint(c["pattern"])
	case domain.ConditionToolResult:
		tool := e.ToolID
		if v, ok := c["tool_id"].(string); ok && v != "" {
			tool = v
		}
		detail = tool
		if key, ok := c["result_key"].(string); ok && key != "" {
			detail = fmt.Sprintf("%s.%s", tool, key)
		}
	case domain.ConditionAgentDecision:
		key, _ := c["decision_key"].(string)
		if key == "" {
			key = "transition_to"
		}
		detail = fmt.Sprintf("%s=%v", key, c["expected_value"])
	case domain.ConditionEvent:
		detail = fmt.Sprint(c["event_type"])
	case domain.ConditionCustom:
		detail = fmt.Sprint(c["condition_code"])
	case domain.ConditionRuleSet:
		return "rules"
	}
	if e.Priority != 0 {
		return fmt.Sprintf("%s: %s (p%d)", e.Kind, detail, e.Priority)
	}
	return fmt.Sprintf("%s: %s", e.Kind, detail)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
