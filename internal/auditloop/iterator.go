package auditloop

import (
	"sync"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// SiteIterator hands out sites in round-robin order and counts how many
// full passes over the list have been made.
type SiteIterator struct {
	mu     sync.Mutex
	sites  []models.SiteDefinition
	pos    int
	rounds int
}

// NewSiteIterator copies sites so later edits by the caller are not seen
func NewSiteIterator(sites []models.SiteDefinition) *SiteIterator {
	return &SiteIterator{sites: append([]models.SiteDefinition(nil), sites...)}
}

// Next returns the site to audit next. ok is false when the list is empty.
func (it *SiteIterator) Next() (site models.SiteDefinition, ok bool) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if len(it.sites) == 0 {
		return models.SiteDefinition{}, false
	}

	site = it.sites[it.pos]
	it.pos++
	if it.pos == len(it.sites) {
		it.pos = 0
		it.rounds++
	}
	return site, true
}

// Rounds returns the number of completed passes over the site list
func (it *SiteIterator) Rounds() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.rounds
}

// Count returns the number of sites in rotation
func (it *SiteIterator) Count() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.sites)
}

// Replace swaps in a new site list. The position carries over when it is
// still in range so a reload does not restart the rotation.
func (it *SiteIterator) Replace(sites []models.SiteDefinition) {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.sites = append([]models.SiteDefinition(nil), sites...)
	if it.pos >= len(it.sites) {
		it.pos = 0
	}
}
