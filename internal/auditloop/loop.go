package auditloop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Maximum consecutive Chrome failures before giving up
const maxConsecutiveChromeFailures = 5

// DefaultInterval replaces a non-positive interval passed to NewLoop
const DefaultInterval = 10 * time.Second

// ErrChromeUnavailable is returned by Run when Chrome repeatedly fails to start
var ErrChromeUnavailable = errors.New("chrome failed to start too many times")

// Auditor loads and scores a single site
type Auditor interface {
	Audit(ctx context.Context, site models.SiteDefinition) (*models.AuditResult, error)
}

// Sink receives every completed audit
type Sink interface {
	Dispatch(result *models.AuditResult)
}

// Loop audits the configured sites one at a time, forever
type Loop struct {
	iterator                  *SiteIterator
	auditor                   Auditor
	sink                      Sink
	interval                  time.Duration
	logger                    *slog.Logger
	stopChan                  chan struct{}
	consecutiveChromeFailures int
}

// NewLoop creates a new audit loop
func NewLoop(sites []models.SiteDefinition, interval time.Duration, auditor Auditor, sink Sink) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		iterator: NewSiteIterator(sites),
		auditor:  auditor,
		sink:     sink,
		interval: interval,
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}
}

// SetSites replaces the site rotation, for config reloads
func (l *Loop) SetSites(sites []models.SiteDefinition) {
	l.iterator.Replace(sites)
	l.logger.Info("Site list updated", "sites", len(sites))
}

// Run audits immediately, then once per interval, until ctx is cancelled or
// Stop is called. The interval is measured between audit starts; an audit
// that overruns it delays the next one.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Starting audit loop",
		"sites", l.iterator.Count(),
		"interval", l.interval,
	)

	if err := l.runSingleAudit(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Audit loop stopped by context")
			return ctx.Err()

		case <-l.stopChan:
			l.logger.Info("Audit loop stopped by Stop() call")
			return nil

		case <-ticker.C:
			if err := l.runSingleAudit(ctx); err != nil {
				return err
			}
		}
	}
}

// runSingleAudit audits the next site and dispatches the result
func (l *Loop) runSingleAudit(ctx context.Context) error {
	rounds := l.iterator.Rounds()
	site, ok := l.iterator.Next()
	if !ok {
		l.logger.Warn("No sites configured, skipping audit")
		return nil
	}
	if done := l.iterator.Rounds(); done > rounds {
		l.logger.Debug("Completed audit round", "round", done, "sites", l.iterator.Count())
	}

	l.logger.Debug("Auditing site", "site", site.GetName(), "url", site.URL)

	result, err := l.auditor.Audit(ctx, site)
	if err != nil {
		if errors.Is(err, browser.ErrChromeStartupFailure) {
			l.consecutiveChromeFailures++
			l.logger.Warn("Chrome failed to start",
				"consecutive_failures", l.consecutiveChromeFailures,
				"max_allowed", maxConsecutiveChromeFailures,
			)
			if l.consecutiveChromeFailures >= maxConsecutiveChromeFailures {
				return ErrChromeUnavailable
			}
			// Not a page problem, nothing to report
			return nil
		}

		l.logger.Error("Failed to audit site", "site", site.GetName(), "error", err)
		return nil
	}

	l.consecutiveChromeFailures = 0
	l.sink.Dispatch(result)
	return nil
}

// Stop gracefully stops the loop
func (l *Loop) Stop() error {
	close(l.stopChan)
	return nil
}
