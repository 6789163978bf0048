package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "replayarc",
	Short: "replayarc - offline archiver for lecture replay portals",
	Long: `replayarc batch-downloads lecture videos, subtitle tracks, and AI-generated
summaries from an institutional video-replay portal into a local archive.
Completed downloads are recorded in a ledger so re-runs only fetch what is
missing.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
