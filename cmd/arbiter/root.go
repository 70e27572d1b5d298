package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lycan-hq/arbiter/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter - a referee for werewolf games played by AI agents",
	Long: `Arbiter runs games of werewolf whose seats are played by AI agent backends.

It enforces the rules and drives the table, providing:
  - A rule engine for night actions, day votes and win conditions
  - Per-seat perspectives that hide what a role may not know
  - Bounded dispatch with retries, circuit breaking and fallback actions
  - A rule-based or model-judged orchestrator
  - Evidence records for every dispatch and a history of finished games`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
