package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yzhou-dev/replayarc/internal/config"
	"github.com/yzhou-dev/replayarc/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the completion ledger",
	RunE:  runLedger,
}

var ledgerAttempts string

func init() {
	ledgerCmd.Flags().StringVar(&ledgerAttempts, "attempts", "", "Show the attempt trail for a content ID")
}

func runLedger(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer led.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	if ledgerAttempts != "" {
		attempts, err := led.AttemptsFor(ledgerAttempts)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "STARTED\tOUTCOME\tDETAIL")
		for _, a := range attempts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.StartedAt.Format("2006-01-02 15:04:05"), a.Outcome, a.Detail)
		}
		return w.Flush()
	}

	entries, err := led.List()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "CONTENT ID\tDONE\tRETRIES\tSIZE\tPATH")
	for _, e := range entries {
		done := " "
		if e.Completed {
			done = "✓"
		}
		fmt.Fprintf(w, "%.12s\t%s\t%d\t%d\t%s\n", e.ContentID, done, e.Retries, e.Size, e.Path)
	}
	return w.Flush()
}
