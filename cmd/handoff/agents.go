package main

import (
	"fmt"

	"github.com/aretw0/handoff/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents <scope>",
	Short: "Describe the agents of a scope",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp(cmd)
		defer a.close()

		g, err := a.engine.Manager.BuildGraph(cmd.Context(), args[0])
		if err != nil {
			exitf("Error building graph: %v\n", err)
		}

		render := tui.NewRenderer()
		for _, node := range g.Nodes() {
			out, err := render(tui.AgentMarkdown(node, g.OutgoingEdges(node.ID)))
			if err != nil {
				exitf("Error rendering %s: %v\n", node.ID, err)
			}
			fmt.Print(out)
		}
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
