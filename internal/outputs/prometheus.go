package outputs

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/vitals"
)

var ratings = []vitals.Status{vitals.StatusGood, vitals.StatusNeedsImprovement, vitals.StatusPoor}

// PrometheusOutput exposes audit metrics via HTTP endpoint
type PrometheusOutput struct {
	config   *config.PrometheusConfig
	registry *prometheus.Registry
	server   *http.Server

	auditsTotal          *prometheus.CounterVec
	auditDuration        *prometheus.HistogramVec
	score                *prometheus.GaugeVec
	vital                *prometheus.GaugeVec
	vitalStatus          *prometheus.GaugeVec
	networkPhaseMs       *prometheus.GaugeVec
	failedChannels       *prometheus.GaugeVec
	lastSuccessTimestamp *prometheus.GaugeVec
}

// NewPrometheusOutput creates the exporter and starts its HTTP server.
// Returns nil when disabled.
func NewPrometheusOutput(cfg *config.PrometheusConfig) (*PrometheusOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	p := newPrometheusMetrics(cfg)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, p.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting Prometheus exporter on %s%s", addr, cfg.Path)
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Prometheus server error: %v", err)
		}
	}()

	return p, nil
}

func newPrometheusMetrics(cfg *config.PrometheusConfig) *PrometheusOutput {
	p := &PrometheusOutput{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	p.auditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_performance_audits_total",
			Help: "Total number of page audits performed",
		},
		[]string{"site", "status"},
	)

	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = []float64{1000, 2500, 5000, 7500, 10000, 15000, 20000, 30000}
	}
	p.auditDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "page_performance_audit_duration_ms",
			Help:    "Wall time of each audit, including the settle delay, in milliseconds",
			Buckets: buckets,
		},
		[]string{"site"},
	)

	p.score = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_performance_score",
			Help: "Weighted performance score (0-100) of the most recent successful audit",
		},
		[]string{"site"},
	)

	p.vital = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_performance_vital",
			Help: "Most recent value of each metric (milliseconds, CLS unitless)",
		},
		[]string{"site", "metric"},
	)

	p.vitalStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_performance_vital_status",
			Help: "1 for the current rating of each metric, 0 for the others",
		},
		[]string{"site", "metric", "rating"},
	)

	p.networkPhaseMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_performance_network_phase_ms",
			Help: "Connection phase durations of the most recent audit in milliseconds",
		},
		[]string{"site", "phase"},
	)

	p.failedChannels = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_performance_failed_channels",
			Help: "Number of entry types the page could not observe in the most recent audit",
		},
		[]string{"site"},
	)

	p.lastSuccessTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "page_performance_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful audit",
		},
		[]string{"site"},
	)

	p.registry.MustRegister(
		p.auditsTotal,
		p.auditDuration,
		p.score,
		p.vital,
		p.vitalStatus,
		p.networkPhaseMs,
		p.failedChannels,
		p.lastSuccessTimestamp,
	)

	if cfg.IncludeGoMetrics {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return p
}

// Handler serves the exporter's registry
func (p *PrometheusOutput) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Write updates Prometheus metrics with the audit result
func (p *PrometheusOutput) Write(result *models.AuditResult) error {
	if p == nil {
		return nil
	}

	siteName := result.Site.Name
	if siteName == "" {
		siteName = result.Site.URL
	}

	status := "failure"
	if result.Status.Success {
		status = "success"
	}
	p.auditsTotal.WithLabelValues(siteName, status).Inc()
	p.auditDuration.WithLabelValues(siteName).Observe(float64(result.Network.TotalDurationMs))

	if !result.Status.Success {
		return nil
	}

	p.score.WithLabelValues(siteName).Set(float64(result.Score))
	p.failedChannels.WithLabelValues(siteName).Set(float64(len(result.FailedChannels)))
	p.lastSuccessTimestamp.WithLabelValues(siteName).Set(float64(result.Timestamp.Unix()))

	for _, v := range result.Vitals {
		p.vital.WithLabelValues(siteName, v.Metric).Set(v.Value)
		for _, r := range ratings {
			current := 0.0
			if string(r) == v.Rating {
				current = 1
			}
			p.vitalStatus.WithLabelValues(siteName, v.Metric, string(r)).Set(current)
		}
	}

	phases := []struct {
		name  string
		value *int64
	}{
		{"dns", result.Network.DNSLookupMs},
		{"tcp", result.Network.TCPConnectionMs},
		{"tls", result.Network.TLSHandshakeMs},
		{"ttfb", result.Network.TimeToFirstByteMs},
		{"dom_content_loaded", result.Network.DOMContentLoadedMs},
		{"load", result.Network.FullPageLoadMs},
	}
	for _, phase := range phases {
		if phase.value != nil {
			p.networkPhaseMs.WithLabelValues(siteName, phase.name).Set(float64(*phase.value))
		}
	}

	return nil
}

// Name returns the output module name
func (p *PrometheusOutput) Name() string {
	return "prometheus"
}

// Close shuts down the HTTP server
func (p *PrometheusOutput) Close() error {
	if p == nil || p.server == nil {
		return nil
	}

	log.Println("Shutting down Prometheus exporter...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.server.Shutdown(ctx)
}
