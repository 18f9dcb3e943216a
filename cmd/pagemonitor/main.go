package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/outputs"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:     "pagemonitor",
	Short:   "Continuously audits page-load performance from a real browser",
	Version: browser.Version,
	Long: `Page Performance Monitor loads each configured site in headless Chrome,
collects paint, layout-shift, long-task, input and navigation timings, and
reports FCP, LCP, TTI, TBT, CLS, TTFB and FID with a weighted 0-100 score.

Results go to stdout and, when enabled, Prometheus, Elasticsearch and an
SNMP agent.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runMonitor(configFile))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "Path to YAML config file (default $CONFIG_FILE)")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print results as JSON lines")
	rootCmd.AddCommand(auditCmd, checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the logging config
func newLogger(cfg *config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: outputs.ParseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printBanner() {
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║  Page Performance Monitor                                      ║")
	fmt.Printf("║  Version: %-52s ║\n", browser.Version)
	fmt.Println("║  Page-load vitals and scores from a real browser               ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}
