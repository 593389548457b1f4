package main

import (
	"fmt"

	"github.com/aretw0/handoff"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of handoff",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("handoff version %s\n", handoff.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
