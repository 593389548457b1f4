package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Handoff decides when a conversation moves between agents",
	Long: `Handoff evaluates transition rules over a live session and hands the
conversation to the next agent when an edge fires.

Scopes are YAML or JSON documents (or Markdown agents read through loam)
found in the config directory.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	addGlobalFlags(rootCmd)
}

// addGlobalFlags registers the flags read by loadConfig.
func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("dir", ".", "Directory containing the scope documents")
	flags.StringP("config", "c", "", "Path to a server config file (YAML or JSON)")
	flags.String("source", "", "Scope source: file or loam")
	flags.String("store", "", "Snapshot store: memory, file or redis")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
}
