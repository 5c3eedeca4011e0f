// Command fii-monitor serves the FII market-data API and pushes scheduled
// market summaries to Telegram.
package main

import (
	"os"

	"fii-monitor/config"
	"fii-monitor/observability"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:           "fii-monitor",
	Short:         "Brazilian real-estate fund (FII) market monitor",
	Long:          `fii-monitor fetches FII quotes from Yahoo Finance, normalizes them, serves them over HTTP and pushes market summaries to a Telegram chat during B3 trading hours.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		observability.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging and metrics
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	observability.InitLoggerWithLevel(cfg.Log.Format == "json", observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()
	return cfg, nil
}
