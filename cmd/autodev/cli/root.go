// Package cli wires the autodev host binary's subcommands: a cobra root
// command with a persistent --config flag (the directory holding
// autodev.yaml) and the serve subcommand.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "autodev",
	Short: "autodev orchestrates AI coding agents against a feature list until it's done",
	Long: `autodev decomposes a project spec into an independently testable
feature list, spawns AI coding agent CLI sessions against it, and streams
their progress to any subscribed client.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory holding autodev.yaml (default: cwd, /etc/autodev/)")
	rootCmd.AddCommand(serveCmd)
}
