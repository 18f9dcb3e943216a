package config

import (
	"fmt"
	"os"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	General       GeneralConfig       `yaml:"general"`
	Audit         AuditConfig         `yaml:"audit"`
	Sites         SitesConfig         `yaml:"sites"`
	Browser       BrowserConfig       `yaml:"browser"`
	Logging       LoggingConfig       `yaml:"logging"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	SNMP          SNMPConfig          `yaml:"snmp"`
	Prometheus    PrometheusConfig    `yaml:"prometheus"`
	Advanced      AdvancedConfig      `yaml:"advanced"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	InterTestDelay time.Duration `yaml:"inter_test_delay"`
	CacheSize      int           `yaml:"cache_size"`
}

// AuditConfig controls the per-page collection session
type AuditConfig struct {
	// SettleDelay is the wait after the load event before the summary is produced
	SettleDelay time.Duration `yaml:"settle_delay"`

	// InteractiveDelay is the wait after the load event before TTI is sampled
	InteractiveDelay time.Duration `yaml:"interactive_delay"`

	// LiveUpdates logs every metric update as it arrives
	LiveUpdates bool `yaml:"live_updates"`
}

// SitesConfig contains the list of sites to audit
type SitesConfig struct {
	List []models.SiteDefinition `yaml:"list"`
}

// BrowserConfig contains browser-specific settings
type BrowserConfig struct {
	Headless      bool   `yaml:"headless"`
	UserAgent     string `yaml:"user_agent"`
	WindowWidth   int    `yaml:"window_width"`
	WindowHeight  int    `yaml:"window_height"`
	DisableImages bool   `yaml:"disable_images"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ElasticsearchConfig contains Elasticsearch output settings
type ElasticsearchConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Endpoint      string        `yaml:"endpoint"`
	IndexPattern  string        `yaml:"index_pattern"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	APIKey        string        `yaml:"api_key"`
	BulkSize      int           `yaml:"bulk_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
}

// SNMPConfig contains SNMP agent settings
type SNMPConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Port          int    `yaml:"port"`
	Community     string `yaml:"community"`
	ListenAddress string `yaml:"listen_address"`
	EnterpriseOID string `yaml:"enterprise_oid"`

	// host:port receivers for v2c traps on failures and score changes
	TrapDestinations []string `yaml:"trap_destinations"`

	// Score below which a site counts as degraded for traps
	TrapScoreThreshold int `yaml:"trap_score_threshold"`
}

// PrometheusConfig contains Prometheus exporter settings
type PrometheusConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Port             int       `yaml:"port"`
	Path             string    `yaml:"path"`
	ListenAddress    string    `yaml:"listen_address"`
	IncludeGoMetrics bool      `yaml:"include_go_metrics"`
	DurationBuckets  []float64 `yaml:"duration_buckets"`
}

// AdvancedConfig contains health check and shutdown settings
type AdvancedConfig struct {
	HealthCheckEnabled       bool          `yaml:"health_check_enabled"`
	HealthCheckPort          int           `yaml:"health_check_port"`
	HealthCheckPath          string        `yaml:"health_check_path"`
	HealthCheckListenAddress string        `yaml:"health_check_listen_address"`
	ShutdownTimeout          time.Duration `yaml:"shutdown_timeout"`
}

// Load loads configuration from an optional YAML file, then environment
// variables, then validates the result. An empty path skips the file.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	if len(cfg.Sites.List) == 0 {
		cfg.Sites.List = DefaultSites()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			InterTestDelay: 10 * time.Second,
			CacheSize:      100,
		},
		Audit: AuditConfig{
			SettleDelay:      5 * time.Second,
			InteractiveDelay: 500 * time.Millisecond,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:       false,
			IndexPattern:  "page-performance-%{+yyyy.MM.dd}",
			BulkSize:      50,
			FlushInterval: 10 * time.Second,
			MaxRetries:    3,
			RetryBackoff:  1 * time.Second,
		},
		SNMP: SNMPConfig{
			Enabled:            false,
			Port:               161,
			Community:          "public",
			ListenAddress:      "0.0.0.0",
			EnterpriseOID:      ".1.3.6.1.4.1.99999",
			TrapScoreThreshold: 50,
		},
		Prometheus: PrometheusConfig{
			Enabled:          true,
			Port:             9090,
			Path:             "/metrics",
			ListenAddress:    "0.0.0.0",
			IncludeGoMetrics: true,
			DurationBuckets:  []float64{1000, 2500, 5000, 7500, 10000, 15000, 20000, 30000},
		},
		Advanced: AdvancedConfig{
			HealthCheckEnabled:       true,
			HealthCheckPort:          8080,
			HealthCheckPath:          "/health",
			HealthCheckListenAddress: "0.0.0.0",
			ShutdownTimeout:          30 * time.Second,
		},
	}
}
