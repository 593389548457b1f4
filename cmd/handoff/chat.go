package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/handoff/internal/presentation/tui"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /decide <key> <value>  record an agent decision
  /check                 run a transition check
  /where                 show the current agent
  /quit                  end the session`

var chatCmd = &cobra.Command{
	Use:   "chat <scope>",
	Short: "Drive a session interactively",
	Long: `Opens a session on a scope and feeds every line typed as a user message.
The active agent is printed whenever the conversation is handed off.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initial, _ := cmd.Flags().GetString("initial")
		ctx := cmd.Context()

		a := mustApp(cmd)
		defer a.close()
		mgr := a.engine.Manager

		o, err := mgr.CreateSession(ctx, args[0], "", initial)
		if err != nil {
			exitf("Error creating session: %v\n", err)
		}
		sessionID := o.SessionID()

		tui.PrintBanner(os.Stdout)
		fmt.Printf("Session %s on scope %s\n%s\n\n", sessionID, args[0], chatHelp)

		current := o.CurrentNode()
		fmt.Printf("→ %s\n", tui.Accent(current))

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("> ")
			text, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			input := strings.TrimSpace(text)
			if input == "" {
				continue
			}

			switch {
			case input == "/quit" || input == "exit" || input == "quit":
				fmt.Println("Bye!")
				return
			case input == "/where":
				fmt.Printf("→ %s\n", tui.Accent(o.CurrentNode()))
				continue
			case input == "/check":
				out, err := mgr.CheckAndExecuteTransition(ctx, sessionID)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					continue
				}
				printOutcome(out)
			case strings.HasPrefix(input, "/decide "):
				fields := strings.Fields(strings.TrimPrefix(input, "/decide "))
				if len(fields) != 2 {
					fmt.Println("usage: /decide <key> <value>")
					continue
				}
				if err := mgr.RecordDecision(sessionID, fields[0], fields[1]); err != nil {
					fmt.Printf("Error: %v\n", err)
				}
			default:
				e := domain.NewEvent(domain.EventUserMessage, domain.SourceHost, map[string]any{"message": input})
				if _, err := mgr.Submit(ctx, sessionID, e); err != nil {
					fmt.Printf("Error: %v\n", err)
				}
			}

			if next := o.CurrentNode(); next != current {
				fmt.Printf("→ handed off to %s\n", tui.Accent(next))
				current = next
			}
		}
	},
}

func printOutcome(out domain.Outcome) {
	switch out.Status {
	case domain.OutcomeSuccess:
		fmt.Printf("transition to %s\n", out.NodeID)
	case domain.OutcomeError:
		fmt.Printf("check failed: %s\n", out.Reason)
	default:
		fmt.Println("no transition")
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("initial", "", "Initial agent (defaults to the first agent of the scope)")
}
