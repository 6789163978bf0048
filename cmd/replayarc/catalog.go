package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yzhou-dev/replayarc/internal/config"
	"github.com/yzhou-dev/replayarc/internal/models"
	"github.com/yzhou-dev/replayarc/internal/portal"
)

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List accessible courses",
	RunE:  runCourses,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [course-id]",
	Short: "List recorded sessions of a course",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessions,
}

func catalogClient(ctx context.Context) (*portal.Client, error) {
	cfg := config.Load()
	handle, err := authenticate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return portal.NewClient(handle), nil
}

func runCourses(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := catalogClient(ctx)
	if err != nil {
		return err
	}

	courses, err := client.ListCourses(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACCOUNT")
	for _, c := range courses {
		fmt.Fprintf(w, "%d\t%s\t%d\n", c.ID, c.Name, c.Account)
	}
	return w.Flush()
}

func runSessions(cmd *cobra.Command, args []string) error {
	courseID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid course id %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := catalogClient(ctx)
	if err != nil {
		return err
	}

	sessions, err := client.ListSessions(ctx, models.Course{ID: courseID})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRECORDED")
	for _, s := range sessions {
		recorded := ""
		if !s.RecordedAt.IsZero() {
			recorded = s.RecordedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.Title, recorded)
	}
	return w.Flush()
}
