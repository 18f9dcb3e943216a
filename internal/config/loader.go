package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// LoadFromEnv overrides cfg with values from environment variables
func LoadFromEnv(cfg *Config) error {
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"INTER_TEST_DELAY", &cfg.General.InterTestDelay},
		{"SETTLE_DELAY", &cfg.Audit.SettleDelay},
		{"INTERACTIVE_DELAY", &cfg.Audit.InteractiveDelay},
		{"ES_FLUSH_INTERVAL", &cfg.Elasticsearch.FlushInterval},
		{"SHUTDOWN_TIMEOUT", &cfg.Advanced.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := envDuration(d.key, d.target); err != nil {
			return err
		}
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"CACHE_SIZE", &cfg.General.CacheSize},
		{"ES_BULK_SIZE", &cfg.Elasticsearch.BulkSize},
		{"SNMP_PORT", &cfg.SNMP.Port},
		{"SNMP_TRAP_SCORE_THRESHOLD", &cfg.SNMP.TrapScoreThreshold},
		{"PROM_PORT", &cfg.Prometheus.Port},
		{"HEALTH_CHECK_PORT", &cfg.Advanced.HealthCheckPort},
	}
	for _, i := range ints {
		if err := envPositiveInt(i.key, i.target); err != nil {
			return err
		}
	}

	envBool("LIVE_UPDATES", &cfg.Audit.LiveUpdates)
	envBool("BROWSER_HEADLESS", &cfg.Browser.Headless)
	envBool("BROWSER_DISABLE_IMAGES", &cfg.Browser.DisableImages)
	envBool("ES_ENABLED", &cfg.Elasticsearch.Enabled)
	envBool("SNMP_ENABLED", &cfg.SNMP.Enabled)
	envBool("PROM_ENABLED", &cfg.Prometheus.Enabled)
	envBool("HEALTH_CHECK_ENABLED", &cfg.Advanced.HealthCheckEnabled)

	envString("BROWSER_USER_AGENT", &cfg.Browser.UserAgent)
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)
	envString("ES_ENDPOINT", &cfg.Elasticsearch.Endpoint)
	envString("ES_INDEX_PATTERN", &cfg.Elasticsearch.IndexPattern)
	envString("ES_USERNAME", &cfg.Elasticsearch.Username)
	envString("ES_PASSWORD", &cfg.Elasticsearch.Password)
	envString("ES_API_KEY", &cfg.Elasticsearch.APIKey)
	envString("SNMP_COMMUNITY", &cfg.SNMP.Community)
	envString("SNMP_LISTEN_ADDRESS", &cfg.SNMP.ListenAddress)
	envString("PROM_PATH", &cfg.Prometheus.Path)
	envString("PROM_LISTEN_ADDRESS", &cfg.Prometheus.ListenAddress)
	envString("HEALTH_CHECK_LISTEN_ADDRESS", &cfg.Advanced.HealthCheckListenAddress)

	if v := os.Getenv("SNMP_TRAP_DESTINATIONS"); v != "" {
		cfg.SNMP.TrapDestinations = splitList(v)
	}

	if v := os.Getenv("SITES"); v != "" {
		sites, err := ParseSimpleSiteList(v)
		if err != nil {
			return fmt.Errorf("invalid SITES: %w", err)
		}
		cfg.Sites.List = sites
	}

	return nil
}

func envDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = d
	return nil
}

func envPositiveInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if n > 0 {
		*target = n
	}
	return nil
}

func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		*target = v == "true" || v == "1"
	}
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseSimpleSiteList parses a comma-separated list of domains or page URLs.
// Entries without a scheme get https://. Names come from models.PageName, so
// two pages on the same host stay distinct.
func ParseSimpleSiteList(sitesStr string) ([]models.SiteDefinition, error) {
	var sites []models.SiteDefinition
	for _, part := range splitList(sitesStr) {
		pageURL := part
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			pageURL = "https://" + part
		}

		sites = append(sites, models.SiteDefinition{
			URL:            pageURL,
			Name:           models.PageName(pageURL),
			TimeoutSeconds: 30,
		})
	}
	return sites, nil
}
