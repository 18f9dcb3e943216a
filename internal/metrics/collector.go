package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// SiteStats summarises the audits of one site
type SiteStats struct {
	Name          string
	URL           string
	Audits        int64
	Failures      int64
	LastScore     int
	AverageScore  float64
	LastAudit     time.Time
	LastSuccess   bool
	LatestVitals  []models.VitalReading
	LastErrorType string
}

// Collector aggregates audit results per site
type Collector struct {
	mu    sync.RWMutex
	sites map[string]*SiteStats

	// score sums over successful audits, for the running average
	scoreSums map[string]int64
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		sites:     make(map[string]*SiteStats),
		scoreSums: make(map[string]int64),
	}
}

// Name implements Output
func (c *Collector) Name() string { return "collector" }

// Write implements Output by recording the result
func (c *Collector) Write(result *models.AuditResult) error {
	c.RecordResult(result)
	return nil
}

// RecordResult folds one audit into the site's stats
func (c *Collector) RecordResult(result *models.AuditResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := result.Site.Name
	stats, ok := c.sites[key]
	if !ok {
		stats = &SiteStats{Name: result.Site.Name}
		c.sites[key] = stats
	}

	stats.URL = result.Site.URL
	stats.Audits++
	stats.LastAudit = result.Timestamp
	stats.LastSuccess = result.Status.Success

	if !result.Status.Success {
		stats.Failures++
		if result.Error != nil {
			stats.LastErrorType = result.Error.ErrorType
		}
		return
	}

	stats.LastScore = result.Score
	stats.LatestVitals = append([]models.VitalReading(nil), result.Vitals...)
	stats.LastErrorType = ""
	c.scoreSums[key] += int64(result.Score)
	stats.AverageScore = float64(c.scoreSums[key]) / float64(stats.Audits-stats.Failures)
}

// Sites returns a copy of every site's stats, sorted by name
func (c *Collector) Sites() []SiteStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SiteStats, 0, len(c.sites))
	for _, s := range c.sites {
		cp := *s
		cp.LatestVitals = append([]models.VitalReading(nil), s.LatestVitals...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Site returns the stats for one site
func (c *Collector) Site(name string) (SiteStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sites[name]
	if !ok {
		return SiteStats{}, false
	}
	cp := *s
	cp.LatestVitals = append([]models.VitalReading(nil), s.LatestVitals...)
	return cp, true
}
