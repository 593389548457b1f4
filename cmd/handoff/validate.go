package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/handoff/internal/presentation/tui"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [scope...]",
	Short: "Validate scope graphs",
	Long: `Checks that every transition of a scope points at a defined agent.
Agents unreachable from the first agent are reported as warnings.
Without arguments every scope of the source is validated.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp(cmd)
		defer a.close()

		scopes := args
		if len(scopes) == 0 {
			lister, ok := a.engine.Config.(ports.ScopeLister)
			if !ok {
				exitf("The %s source cannot list scopes; name them explicitly\n", a.cfg.Source)
			}
			var err error
			if scopes, err = lister.ListScopes(cmd.Context()); err != nil {
				exitf("Error listing scopes: %v\n", err)
			}
		}

		failed := false
		for _, scope := range scopes {
			g, err := a.engine.Manager.BuildGraph(cmd.Context(), scope)
			if err != nil {
				fmt.Printf("✗ %s: %v\n", scope, err)
				failed = true
				continue
			}
			nodes := g.Nodes()
			fmt.Printf("%s %s: %d agents, %d transitions\n", tui.Accent("✓"), scope, len(nodes), len(g.Edges()))
			if len(nodes) > 0 {
				if orphans := g.Unreachable(nodes[0].ID); len(orphans) > 0 {
					fmt.Printf("  warning: unreachable from %s: %s\n", nodes[0].ID, strings.Join(orphans, ", "))
				}
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
