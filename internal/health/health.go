package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// DefaultStaleAfter is how long without an audit before the monitor reports unhealthy
const DefaultStaleAfter = 5 * time.Minute

// HealthServer provides a health check endpoint
type HealthServer struct {
	config *Config
	server *http.Server
	sites  *metrics.Collector

	mu            sync.RWMutex
	lastAuditTime time.Time
	auditCount    int64
	successCount  int64
	failureCount  int64
	isHealthy     bool
}

// Config contains health check server configuration
type Config struct {
	Enabled       bool
	Port          int
	Path          string
	ListenAddress string
	StaleAfter    time.Duration
}

// SiteHealth is the latest state of one audited site
type SiteHealth struct {
	Name        string    `json:"name"`
	LastAudit   time.Time `json:"last_audit"`
	LastSuccess bool      `json:"last_success"`
	LastScore   int       `json:"last_score"`
}

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status        string       `json:"status"`
	Timestamp     time.Time    `json:"timestamp"`
	LastAuditTime time.Time    `json:"last_audit_time,omitempty"`
	AuditCount    int64        `json:"audit_count"`
	SuccessCount  int64        `json:"success_count"`
	FailureCount  int64        `json:"failure_count"`
	Uptime        string       `json:"uptime"`
	Sites         []SiteHealth `json:"sites,omitempty"`
}

var startTime = time.Now()

// NewHealthServer creates and starts the health check server. sites may be
// nil, in which case the response omits per-site state. Returns nil when
// disabled.
func NewHealthServer(cfg *Config, sites *metrics.Collector) (*HealthServer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	h := newHealthServer(cfg, sites)

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Health check endpoint started on %s%s", addr, cfg.Path)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Health check server error: %v", err)
		}
	}()

	return h, nil
}

func newHealthServer(cfg *Config, sites *metrics.Collector) *HealthServer {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &HealthServer{
		config:    cfg,
		sites:     sites,
		isHealthy: true,
	}
}

// Handler serves the health endpoint at the configured path
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(h.config.Path, h.handleHealth)
	return mux
}

// handleHealth handles health check requests
func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	response, statusCode := h.snapshot()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

func (h *HealthServer) snapshot() (HealthResponse, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	statusCode := http.StatusOK

	// No audit recently means the loop is stuck
	if h.auditCount > 0 && time.Since(h.lastAuditTime) > h.config.StaleAfter {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	if !h.isHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:        status,
		Timestamp:     time.Now(),
		LastAuditTime: h.lastAuditTime,
		AuditCount:    h.auditCount,
		SuccessCount:  h.successCount,
		FailureCount:  h.failureCount,
		Uptime:        time.Since(startTime).String(),
	}

	if h.sites != nil {
		for _, s := range h.sites.Sites() {
			response.Sites = append(response.Sites, SiteHealth{
				Name:        s.Name,
				LastAudit:   s.LastAudit,
				LastSuccess: s.LastSuccess,
				LastScore:   s.LastScore,
			})
		}
	}

	return response, statusCode
}

// RecordAudit records an audit execution
func (h *HealthServer) RecordAudit(success bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastAuditTime = time.Now()
	h.auditCount++

	if success {
		h.successCount++
	} else {
		h.failureCount++
	}
}

// Write implements the output interface so the dispatcher keeps health current
func (h *HealthServer) Write(result *models.AuditResult) error {
	h.RecordAudit(result.Status.Success)
	return nil
}

// Name returns the output module name
func (h *HealthServer) Name() string {
	return "health"
}

// SetHealthy sets the health status
func (h *HealthServer) SetHealthy(healthy bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.isHealthy = healthy
}

// GetStats returns current health statistics
func (h *HealthServer) GetStats() (auditCount, successCount, failureCount int64, lastAuditTime time.Time) {
	if h == nil {
		return 0, 0, 0, time.Time{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.auditCount, h.successCount, h.failureCount, h.lastAuditTime
}

// Close shuts down the health check server
func (h *HealthServer) Close() error {
	if h == nil || h.server == nil {
		return nil
	}

	log.Println("Shutting down health check server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.server.Shutdown(ctx)
}
