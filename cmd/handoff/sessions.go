package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/handoff/internal/config"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long: `List, inspect, and remove session snapshots.
The memory store does not outlive a process, so it reads the file store instead.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List persisted sessions",
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore := getStore(cmd)
		defer closeStore()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			exitf("Error listing sessions: %v\n", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No persisted sessions found.")
			return
		}

		fmt.Println("Sessions:")
		for _, s := range sessions {
			fmt.Println("- " + s)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the snapshot of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID := args[0]
		store, closeStore := getStore(cmd)
		defer closeStore()

		snap, err := store.Load(cmd.Context(), sessionID)
		if err != nil {
			exitf("Error loading session '%s': %v\n", sessionID, err)
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			exitf("Error marshaling snapshot: %v\n", err)
		}
		fmt.Println(string(data))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore := getStore(cmd)
		defer closeStore()
		hasError := false

		for _, sessionID := range args {
			if err := store.Delete(cmd.Context(), sessionID); err != nil {
				fmt.Printf("Error removing '%s': %v\n", sessionID, err)
				hasError = true
			} else {
				fmt.Printf("Removed session '%s'\n", sessionID)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

func getStore(cmd *cobra.Command) (ports.SnapshotStore, func() error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitf("Error loading config: %v\n", err)
	}
	if cfg.Store == config.StoreMemory {
		cfg.Store = config.StoreFile
	}
	store, _, closeStore, err := openSnapshotStore(cfg)
	if err != nil {
		exitf("Error opening snapshot store: %v\n", err)
	}
	return store, closeStore
}
