package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/auditloop"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/health"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/outputs"
)

// closer is an output with resources to release on shutdown
type closer interface {
	Name() string
	Close() error
}

// runMonitor audits the configured sites until a signal arrives and returns
// the process exit code
func runMonitor(configFile string) int {
	printBanner()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(&cfg.Logging)
	slog.SetDefault(logger)

	log.Printf("Loaded configuration: %d sites to audit", len(cfg.Sites.List))
	log.Printf("  Inter-audit delay: %v", cfg.General.InterTestDelay)
	log.Printf("  Settle delay: %v", cfg.Audit.SettleDelay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	browserCtrl, err := browser.NewController(&cfg.Browser, cfg.Audit, logger)
	if err != nil {
		log.Fatalf("Failed to create browser controller: %v", err)
	}
	log.Println("✓ Browser controller initialized")

	dispatcher := metrics.NewDispatcher(logger)
	siteStats := metrics.NewCollector()
	dispatcher.RegisterOutput(siteStats)

	stdout, err := outputs.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	dispatcher.RegisterOutput(stdout)
	log.Printf("✓ %s logger enabled", cfg.Logging.Format)

	var closers []closer

	esOutput, err := outputs.NewElasticsearchOutput(&cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Failed to create Elasticsearch output: %v", err)
	}
	if esOutput != nil {
		dispatcher.RegisterOutput(esOutput)
		closers = append(closers, esOutput)
		log.Println("✓ Elasticsearch output enabled")
	}

	promOutput, err := outputs.NewPrometheusOutput(&cfg.Prometheus)
	if err != nil {
		log.Fatalf("Failed to create Prometheus output: %v", err)
	}
	if promOutput != nil {
		dispatcher.RegisterOutput(promOutput)
		closers = append(closers, promOutput)
		log.Println("✓ Prometheus exporter enabled")
	}

	snmpOutput, err := outputs.NewSNMPOutput(&cfg.SNMP)
	if err != nil {
		log.Fatalf("Failed to create SNMP output: %v", err)
	}
	if snmpOutput != nil {
		dispatcher.RegisterOutput(snmpOutput)
		closers = append(closers, snmpOutput)
		log.Println("✓ SNMP agent enabled")
	}

	healthServer, err := health.NewHealthServer(&health.Config{
		Enabled:       cfg.Advanced.HealthCheckEnabled,
		Port:          cfg.Advanced.HealthCheckPort,
		Path:          cfg.Advanced.HealthCheckPath,
		ListenAddress: cfg.Advanced.HealthCheckListenAddress,
	}, siteStats)
	if err != nil {
		log.Fatalf("Failed to create health check server: %v", err)
	}
	if healthServer != nil {
		dispatcher.RegisterOutput(healthServer)
		closers = append(closers, healthServer)
		log.Println("✓ Health check endpoint enabled")
	}

	loop := auditloop.NewLoop(cfg.Sites.List, cfg.General.InterTestDelay, browserCtrl, dispatcher)
	log.Printf("✓ Audit loop initialized (outputs: %v)", dispatcher.Outputs())

	if configFile != "" {
		go func() {
			err := config.Watch(ctx, configFile, func(next *config.Config) {
				loop.SetSites(next.Sites.List)
			})
			if err != nil {
				slog.Warn("Config watch stopped", "error", err)
			}
		}()
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Page Performance Monitor started. Press Ctrl+C to stop.")

	exitCode := 0
	loopStopped := false
	select {
	case <-sigChan:
		log.Println("Received shutdown signal...")
	case err := <-loopDone:
		loopStopped = true
		if errors.Is(err, auditloop.ErrChromeUnavailable) {
			log.Printf("Audit loop gave up: %v", err)
			exitCode = 1
		} else if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Audit loop exited with error: %v", err)
		}
	}

	log.Println("Shutting down gracefully...")
	healthServer.SetHealthy(false)
	cancel()

	if !loopStopped {
		select {
		case <-loopDone:
			log.Println("✓ Audit loop stopped")
		case <-time.After(cfg.Advanced.ShutdownTimeout):
			log.Println("⚠ Shutdown timeout exceeded")
		}
	}

	if err := browserCtrl.Close(); err != nil {
		log.Printf("Error closing browser: %v", err)
	}
	log.Println("✓ Browser closed")

	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Printf("Error closing %s output: %v", c.Name(), err)
		} else {
			log.Printf("✓ %s output closed", c.Name())
		}
	}

	log.Println("Shutdown complete")
	return exitCode
}

