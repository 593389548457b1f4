package main

import (
	"fmt"

	"github.com/aretw0/handoff/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <scope>",
	Short: "Export the agent graph of a scope as Mermaid",
	Long: `Builds the transition graph of a scope and prints a Mermaid flowchart.
With --session the path of a persisted session is highlighted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID, _ := cmd.Flags().GetString("session")

		a := mustApp(cmd)
		defer a.close()

		g, err := a.engine.Manager.BuildGraph(cmd.Context(), args[0])
		if err != nil {
			exitf("Error building graph: %v\n", err)
		}

		var overlay *graph.GraphOverlay
		if sessionID != "" {
			snap, err := a.engine.Manager.Store().Load(cmd.Context(), sessionID)
			if err != nil {
				exitf("Error loading session '%s': %v\n", sessionID, err)
			}
			overlay = graph.OverlayFromContext(snap)
		}

		fmt.Println(graph.GenerateMermaid(g.Nodes(), g.Edges(), overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the path of a persisted session")
}
