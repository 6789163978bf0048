package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/yzhou-dev/replayarc/internal/config"
	"github.com/yzhou-dev/replayarc/internal/coordinator"
	"github.com/yzhou-dev/replayarc/internal/engine"
	"github.com/yzhou-dev/replayarc/internal/ledger"
	"github.com/yzhou-dev/replayarc/internal/models"
	"github.com/yzhou-dev/replayarc/internal/pipeline"
	"github.com/yzhou-dev/replayarc/internal/portal"
	"github.com/yzhou-dev/replayarc/internal/tui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download everything missing from the local archive",
	RunE:  runSync,
}

var (
	syncTUI     bool
	syncCourses []int
)

func init() {
	syncCmd.Flags().BoolVar(&syncTUI, "tui", false, "Show interactive progress view")
	syncCmd.Flags().IntSliceVar(&syncCourses, "course", nil, "Restrict to these course IDs (repeatable)")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := authenticate(ctx, cfg)
	if err != nil {
		return err
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer led.Close()

	client := portal.NewClient(handle)
	if cfg.ScreenChannel {
		client.Channel = portal.ChannelScreen
	}

	var eng engine.Engine
	switch cfg.Engine {
	case "aria2":
		eng = engine.NewAria2Engine()
	default:
		eng = engine.NewHTTPEngine(nil)
	}

	coord := coordinator.New(eng, led, &coordinator.Config{
		Workers:     cfg.Workers,
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  coordinator.DefaultConfig().BackoffMax,
	})

	pipe := &pipeline.Pipeline{
		Client:      client,
		Index:       led,
		Coordinator: coord,
		DownloadDir: cfg.DownloadDir,
		Courses:     syncCourses,
	}

	if syncTUI {
		return runSyncTUI(ctx, stop, pipe, coord)
	}

	coord.SetEventFunc(func(ev models.TaskEvent) {
		if ev.Err != "" {
			log.Printf("%s -> %s %s (%s)", ev.From, ev.To, ev.Path, ev.Err)
			return
		}
		log.Printf("%s -> %s %s", ev.From, ev.To, ev.Path)
	})

	report, err := pipe.Run(ctx)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// runSyncTUI runs the pipeline behind the interactive progress view.
func runSyncTUI(ctx context.Context, cancel func(), pipe *pipeline.Pipeline, coord *coordinator.Coordinator) error {
	p := tea.NewProgram(tui.New(cancel))

	coord.SetEventFunc(func(ev models.TaskEvent) {
		p.Send(tui.EventMsg(ev))
	})

	go func() {
		report, err := pipe.Run(ctx)
		p.Send(tui.DoneMsg{Report: report, Err: err})
	}()

	_, err := p.Run()
	return err
}

// authenticate produces a live session handle from the saved cookies.
func authenticate(ctx context.Context, cfg *config.Config) (*portal.SessionHandle, error) {
	provider := &portal.CookieProvider{CanvasBase: cfg.CanvasBase, VodBase: cfg.VodBase}
	handle, err := provider.Authenticate(ctx, portal.Credentials{CookiePath: cfg.CookiePath})
	if err != nil {
		return nil, fmt.Errorf("authenticate (is %s a valid cookie export?): %w", cfg.CookiePath, err)
	}
	return handle, nil
}

func printReport(report *models.Report) {
	fmt.Printf("completed %d, skipped %d, failed %d\n",
		report.Completed, report.Skipped, len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("  FAILED %s: %s\n", f.Path, f.Reason)
	}
}
