package browser

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/vitals"
)

// Version is reported in audit metadata
const Version = "1.0.0"

// ErrChromeStartupFailure indicates Chrome failed to start (not a page problem)
var ErrChromeStartupFailure = errors.New("chrome failed to start")

// ControllerImpl is the chromedp implementation of the browser controller
type ControllerImpl struct {
	config        *config.BrowserConfig
	audit         config.AuditConfig
	benchmarks    *vitals.BenchmarkTable
	logger        *slog.Logger
	allocatorOpts []chromedp.ExecAllocatorOption
	hostname      string
}

// NewControllerImpl creates a new browser controller with chromedp
func NewControllerImpl(cfg *config.BrowserConfig, auditCfg config.AuditConfig, logger *slog.Logger) (*ControllerImpl, error) {
	if logger == nil {
		logger = slog.Default()
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	// A fresh browser is started for every audit so the page is always a cold load
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("disable-cache", "true"),
		chromedp.Flag("disable-application-cache", "true"),
		chromedp.Flag("disable-offline-load-stale-cache", "true"),
		chromedp.Flag("disk-cache-size", "0"),
		chromedp.Flag("media-cache-size", "0"),
		// Keep background tabs from throttling the timers the summary depends on
		chromedp.Flag("disable-background-timer-throttling", "true"),
		chromedp.Flag("disable-renderer-backgrounding", "true"),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	return &ControllerImpl{
		config:        cfg,
		audit:         auditCfg,
		benchmarks:    vitals.DefaultBenchmarks(),
		logger:        logger,
		allocatorOpts: opts,
		hostname:      hostname,
	}, nil
}

// Audit loads a site in a fresh browser, collects its vitals and returns the scored result
func (c *ControllerImpl) Audit(ctx context.Context, site models.SiteDefinition) (*models.AuditResult, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOpts...)
	defer cancelAlloc()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, site.GetTimeout())
	defer cancelTimeout()

	result := &models.AuditResult{
		Timestamp: time.Now(),
		AuditID:   uuid.New().String(),
		Site: models.SiteInfo{
			URL:      site.URL,
			Name:     site.GetName(),
			Category: site.Category,
		},
		Metadata: models.AuditMetadata{
			Hostname:  c.hostname,
			Version:   Version,
			UserAgent: c.config.UserAgent,
		},
	}
	startTime := time.Now()

	host := newPageHost(c.logger.With("site", result.Site.Name))
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == bindingName {
			host.handleBinding(e.Payload)
		}
	})

	// The first run starts Chrome on about:blank, which is enough to probe the API
	var probe supportProbe
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(probeScript, &probe)); err != nil {
		return c.failed(result, err, startTime)
	}
	host.setSupport(probe)

	session := c.newSession(result.Site.Name)
	session.Start(host)

	select {
	case <-session.Done():
		// Nothing was installed, the host cannot observe performance entries
		_, err := session.Wait(taskCtx)
		return c.failed(result, err, startTime)
	default:
	}

	script, err := host.script()
	if err != nil {
		return c.failed(result, err, startTime)
	}

	err = chromedp.Run(taskCtx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		chromedp.Navigate(site.URL),
	)
	if err != nil {
		return c.failed(result, err, startTime)
	}

	report, err := session.Wait(taskCtx)
	if err != nil {
		return c.failed(result, err, startTime)
	}

	var nav *vitals.Entry
	if entries := host.NavigationEntries(); len(entries) > 0 {
		nav = &entries[0]
	}

	result.Network = extractTimings(nav, time.Since(startTime).Milliseconds())
	result.Vitals = readings(report)
	result.Score = report.Score
	result.Summary = report.String()
	result.FailedChannels = channelNames(append(session.FailedChannels(), host.failedInPage()...))
	result.Status.Success = true
	result.Status.Message = report.ScoreLine()

	return result, nil
}

func (c *ControllerImpl) newSession(siteName string) *vitals.Session {
	logger := c.logger.With("site", siteName)
	session := vitals.NewSession(c.audit.InteractiveDelay,
		vitals.WithLogger(logger),
		vitals.WithSettleDelay(c.audit.SettleDelay),
		vitals.WithBenchmarks(c.benchmarks),
	)

	if c.audit.LiveUpdates {
		session.OnUpdate(func(id vitals.MetricID, value float64) {
			logger.Info("Metric updated", "metric", id, "value", vitals.FormatValue(id, value),
				"rating", vitals.Classify(c.benchmarks, id, value))
		})
	}
	return session
}

// failed fills in the error details and returns the result for reporting.
// Chrome startup failures are returned as errors so the loop can skip them.
func (c *ControllerImpl) failed(result *models.AuditResult, err error, startTime time.Time) (*models.AuditResult, error) {
	if isChromeStartupFailure(err) {
		return nil, ErrChromeStartupFailure
	}

	result.Status.Success = false
	result.Status.Message = "Failed to audit page"
	result.Error = &models.ErrorInfo{
		ErrorType:    categorizeError(err),
		ErrorMessage: err.Error(),
	}
	result.Network.TotalDurationMs = time.Since(startTime).Milliseconds()
	return result, nil
}

// Close shuts down the browser controller.
// Every audit owns its browser, so there is nothing to release here.
func (c *ControllerImpl) Close() error {
	return nil
}

func readings(report *vitals.Report) []models.VitalReading {
	out := make([]models.VitalReading, 0, len(report.Metrics))
	for _, m := range report.Metrics {
		out = append(out, models.VitalReading{
			Metric: string(m.ID),
			Value:  m.Value,
			Unit:   m.ID.Unit(),
			Rating: string(m.Status),
		})
	}
	return out
}

func channelNames(types []vitals.EntryType) []string {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

// extractTimings converts the navigation entry into connection phase durations.
// Phases whose end mark is zero were not observed and stay nil.
func extractTimings(nav *vitals.Entry, totalMs int64) models.NetworkTimings {
	timings := models.NetworkTimings{
		TotalDurationMs: totalMs,
	}

	if nav == nil {
		return timings
	}

	if nav.DomainLookupEnd > 0 {
		timings.DNSLookupMs = msPtr(nav.DomainLookupEnd - nav.DomainLookupStart)
	}

	if nav.ConnectEnd > 0 {
		if nav.SecureConnectionStart > 0 {
			// HTTPS: TCP ends where TLS starts
			timings.TCPConnectionMs = msPtr(nav.SecureConnectionStart - nav.ConnectStart)
		} else {
			timings.TCPConnectionMs = msPtr(nav.ConnectEnd - nav.ConnectStart)
		}
	}

	if nav.SecureConnectionStart > 0 && nav.ConnectEnd > nav.SecureConnectionStart {
		timings.TLSHandshakeMs = msPtr(nav.ConnectEnd - nav.SecureConnectionStart)
	}

	// Request to response, unlike the TTFB vital which is measured from navigation start
	if nav.ResponseStart > 0 {
		timings.TimeToFirstByteMs = msPtr(nav.ResponseStart - nav.RequestStart)
	}

	if nav.DOMContentLoadedEventEnd > 0 {
		timings.DOMContentLoadedMs = msPtr(nav.DOMContentLoadedEventEnd)
	}

	if nav.LoadEventEnd > 0 {
		timings.FullPageLoadMs = msPtr(nav.LoadEventEnd)
	}

	return timings
}

func msPtr(v float64) *int64 {
	ms := int64(v)
	return &ms
}

// isChromeStartupFailure detects if Chrome failed to start
func isChromeStartupFailure(err error) bool {
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "chrome failed to start") ||
		strings.Contains(errStr, "failed to start chrome") ||
		strings.Contains(errStr, "failed to allocate") ||
		strings.Contains(errStr, "cannot start chrome") ||
		strings.Contains(errStr, "executable file not found")
}

// categorizeError determines the error type
func categorizeError(err error) string {
	if errors.Is(err, vitals.ErrPerformanceUnsupported) {
		return "unsupported"
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "context canceled"):
		return "timeout"
	case strings.Contains(errStr, "dns"):
		return "dns"
	case strings.Contains(errStr, "connection refused"):
		return "connection_refused"
	case strings.Contains(errStr, "tls"), strings.Contains(errStr, "cert"):
		return "tls"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "no such host"), strings.Contains(errStr, "name_not_resolved"):
		return "dns"
	default:
		return "unknown"
	}
}
