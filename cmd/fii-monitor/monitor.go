package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fii-monitor/internal/monitor"
	"fii-monitor/models"
	"fii-monitor/observability"
	"fii-monitor/services"

	"github.com/spf13/cobra"
)

var (
	monitorOnce      bool
	monitorInterval  int
	monitorSkipHours bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Push watchlist summaries to Telegram",
	Long: `Runs the watchlist monitor. Every interval it fetches the watchlist, ranks it and
sends a summary to the configured Telegram chat, but only on weekdays within trading hours.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single cycle now, ignoring the schedule and trading hours")
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 0, "minutes between cycles (default MONITOR_INTERVAL_MINUTES)")
	monitorCmd.Flags().BoolVar(&monitorSkipHours, "skip-hours", false, "run cycles outside trading hours too")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if monitorInterval > 0 {
		cfg.Monitor.IntervalMinutes = monitorInterval
	}

	telegram, err := services.NewTelegramService(cfg.Telegram)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := newApp(ctx, cfg)
	m := monitor.New(cfg, application, telegram, monitor.WithSkipHours(monitorSkipHours))

	if monitorOnce {
		run := m.RunOnce(ctx)
		if run.Status == models.MonitorRunStatusFailed {
			return errors.New(run.Error)
		}
		fmt.Printf("run %s: %d funds, delivered=%t\n", run.ID, len(run.Records), run.Delivered)
		return nil
	}

	if err := m.Announce(ctx); err != nil {
		return err
	}

	scheduler, err := monitor.NewScheduler(ctx, m, cfg.MonitorInterval(), cfg.Market.Location())
	if err != nil {
		return err
	}
	scheduler.Start()
	observability.Info("monitor running",
		"interval_minutes", cfg.Monitor.IntervalMinutes,
		"tickers", len(cfg.Watchlist),
		"next_run", scheduler.Next().Format(time.DateTime))

	// first cycle right away, later ones on the schedule
	m.Tick(ctx)

	<-ctx.Done()
	scheduler.Stop()
	if last := m.LastRun(); last != nil {
		observability.Info("monitor stopped",
			"last_run", last.ID,
			"last_status", last.Status,
			"last_run_at", last.RunAt.Format(time.DateTime))
	} else {
		observability.Info("monitor stopped before any run")
	}
	return nil
}
