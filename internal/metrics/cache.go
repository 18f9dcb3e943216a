package metrics

import (
	"sync"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ResultsCache keeps the most recent audit results in memory.
// It resets on restart.
type ResultsCache struct {
	maxSize int
	results []*models.AuditResult
	mu      sync.RWMutex
}

// NewResultsCache creates a new results cache with the specified size
func NewResultsCache(maxSize int) *ResultsCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &ResultsCache{
		maxSize: maxSize,
		results: make([]*models.AuditResult, 0, maxSize),
	}
}

// Name implements Output
func (c *ResultsCache) Name() string { return "cache" }

// Write implements Output by adding the result
func (c *ResultsCache) Write(result *models.AuditResult) error {
	c.Add(result)
	return nil
}

// Add adds a result, evicting the oldest when full
func (c *ResultsCache) Add(result *models.AuditResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = append(c.results, result)
	if len(c.results) > c.maxSize {
		c.results = c.results[len(c.results)-c.maxSize:]
	}
}

// GetLast returns up to n of the most recent results, oldest first
func (c *ResultsCache) GetLast(n int) []*models.AuditResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.results) {
		n = len(c.results)
	}
	if n < 0 {
		n = 0
	}

	results := make([]*models.AuditResult, n)
	copy(results, c.results[len(c.results)-n:])
	return results
}

// Count returns the current number of cached results
func (c *ResultsCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// Clear empties the cache
func (c *ResultsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = make([]*models.AuditResult, 0, c.maxSize)
}
