package config

import (
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// DefaultSites returns the pages audited when none are configured
func DefaultSites() []models.SiteDefinition {
	return []models.SiteDefinition{
		{URL: "https://www.wikipedia.org", Name: "wikipedia", Category: "reference", TimeoutSeconds: 30},
		{URL: "https://github.com", Name: "github", Category: "development", TimeoutSeconds: 30},
		{URL: "https://www.bbc.com/news", Name: "bbc", Category: "news", TimeoutSeconds: 45},
		{URL: "https://example.com", Name: "example", Category: "test", TimeoutSeconds: 20},
	}
}
