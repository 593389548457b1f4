package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Without a usable terminal style it falls back to the raw markdown.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// AgentMarkdown describes an agent and its outgoing transitions as markdown.
func AgentMarkdown(node domain.AgentNode, edges []domain.TransitionEdge) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", node.DisplayName())
	if node.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", node.Description)
	}
	fmt.Fprintf(&sb, "- **id**: `%s`\n", node.ID)
	if node.Type != "" {
		fmt.Fprintf(&sb, "- **type**: %s\n", node.Type)
	}
	if node.Provider.LLM != "" || node.Provider.Model != "" {
		fmt.Fprintf(&sb, "- **provider**: %s %s\n", node.Provider.LLM, node.Provider.Model)
	}
	if len(node.Tools) > 0 {
		fmt.Fprintf(&sb, "- **tools**: %s\n", strings.Join(node.Tools, ", "))
	}
	if node.Instructions != "" {
		fmt.Fprintf(&sb, "\n> %s\n", strings.ReplaceAll(strings.TrimSpace(node.Instructions), "\n", "\n> "))
	}
	if len(edges) > 0 {
		sb.WriteString("\n| to | kind | priority |\n|---|---|---|\n")
		for _, e := range edges {
			fmt.Fprintf(&sb, "| %s | %s | %d |\n", e.To, e.Kind, e.Priority)
		}
	}
	return sb.String()
}
