package models

import (
	"net"
	"net/url"
	"strings"
	"time"
)

// SiteDefinition represents a page to audit
type SiteDefinition struct {
	// URL is the full URL to load (e.g., "https://www.wikipedia.org")
	URL string `yaml:"url" json:"url"`

	// Name is a short, human-readable identifier (e.g., "wikipedia")
	Name string `yaml:"name" json:"name"`

	// Category groups sites by type (e.g., "search", "news")
	Category string `yaml:"category" json:"category"`

	// TimeoutSeconds bounds the whole audit, including the settle delay
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// GetTimeout returns the timeout duration for this site
func (s *SiteDefinition) GetTimeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GetName returns the site name, deriving it from the URL if not set
func (s *SiteDefinition) GetName() string {
	if s.Name != "" {
		return s.Name
	}
	return PageName(s.URL)
}

// PageName derives a short identifier for a page URL: the first label of the
// host without "www.", then the path if there is one. IP hosts are kept whole.
// "https://www.example.com/docs/" becomes "example/docs".
func PageName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}

	name := strings.TrimPrefix(u.Hostname(), "www.")
	if net.ParseIP(name) == nil {
		if idx := strings.Index(name, "."); idx > 0 {
			name = name[:idx]
		}
	}

	if path := strings.Trim(u.Path, "/"); path != "" {
		name += "/" + path
	}
	return name
}
