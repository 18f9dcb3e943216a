package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/outputs"
)

var errAuditFailed = errors.New("one or more audits failed")

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit [url...]",
	Short: "Audit sites once and print their performance summaries",
	Long: `Audit loads each site once and prints its performance summary. With no
arguments the configured sites are audited. Exits non-zero if any audit fails.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			sites, err := config.ParseSimpleSiteList(strings.Join(args, ","))
			if err != nil {
				return err
			}
			cfg.Sites.List = sites
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
		}
		if auditJSON {
			cfg.Logging.Format = "json"
		}

		logger := newLogger(&cfg.Logging)
		ctrl, err := browser.NewController(&cfg.Browser, cfg.Audit, logger)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		out, err := outputs.NewLogger(&cfg.Logging)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		failed := false
		for _, site := range cfg.Sites.List {
			result, err := ctrl.Audit(ctx, site)
			if err != nil {
				return fmt.Errorf("audit %s: %w", site.GetName(), err)
			}
			if err := out.Write(result); err != nil {
				return err
			}
			failed = failed || !result.Status.Success
		}

		if failed {
			return errAuditFailed
		}
		return nil
	},
}

var checkConfigCmd = &cobra.Command{
	Use:          "check-config",
	Short:        "Validate the configuration and print what would run",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "✓ Configuration valid")
		fmt.Fprintf(w, "  Sites: %d\n", len(cfg.Sites.List))
		for _, site := range cfg.Sites.List {
			fmt.Fprintf(w, "    - %s (%s, timeout %v)\n", site.GetName(), site.URL, site.GetTimeout())
		}
		fmt.Fprintf(w, "  Inter-audit delay: %v\n", cfg.General.InterTestDelay)
		fmt.Fprintf(w, "  Settle delay: %v\n", cfg.Audit.SettleDelay)
		fmt.Fprintf(w, "  Outputs: %s\n", strings.Join(enabledOutputs(cfg), ", "))
		return nil
	},
}

func enabledOutputs(cfg *config.Config) []string {
	names := []string{"stdout (" + cfg.Logging.Format + ")"}
	if cfg.Prometheus.Enabled {
		names = append(names, fmt.Sprintf("prometheus :%d%s", cfg.Prometheus.Port, cfg.Prometheus.Path))
	}
	if cfg.Elasticsearch.Enabled {
		names = append(names, "elasticsearch "+cfg.Elasticsearch.Endpoint)
	}
	if cfg.SNMP.Enabled {
		names = append(names, fmt.Sprintf("snmp :%d", cfg.SNMP.Port))
	}
	if cfg.Advanced.HealthCheckEnabled {
		names = append(names, fmt.Sprintf("health :%d%s", cfg.Advanced.HealthCheckPort, cfg.Advanced.HealthCheckPath))
	}
	return names
}
