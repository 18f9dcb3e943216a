package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	logLevels  = []interface{}{"debug", "info", "warn", "error"}
	logFormats = []interface{}{"json", "text"}
)

// Validate checks the configuration for values the monitor cannot run with
func (c *Config) Validate() error {
	return validation.Errors{
		"general":       c.General.validate(),
		"audit":         c.Audit.validate(),
		"sites":         c.Sites.validate(c.Audit.SettleDelay),
		"logging":       c.Logging.validate(),
		"elasticsearch": c.Elasticsearch.validate(),
		"snmp":          c.SNMP.validate(),
		"prometheus":    c.Prometheus.validate(),
		"advanced":      c.Advanced.validate(),
	}.Filter()
}

func (g *GeneralConfig) validate() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.InterTestDelay, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&g.CacheSize, validation.Required, validation.Min(1)),
	)
}

func (a *AuditConfig) validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.SettleDelay, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&a.InteractiveDelay, validation.Required, validation.Min(time.Millisecond)),
	)
}

// validate checks each site and that names are unique, since outputs key
// their series and rows on the name. A site must also allow enough time for
// the settle delay, which runs inside the site timeout.
func (s *SitesConfig) validate(settleDelay time.Duration) error {
	errs := validation.Errors{}
	seen := make(map[string]int, len(s.List))

	for i := range s.List {
		site := &s.List[i]
		err := validation.ValidateStruct(site,
			validation.Field(&site.URL, validation.Required, is.URL),
			validation.Field(&site.TimeoutSeconds, validation.Min(0), validation.By(func(interface{}) error {
				if timeout := site.GetTimeout(); settleDelay >= timeout {
					return fmt.Errorf("timeout %v must exceed the settle delay %v", timeout, settleDelay)
				}
				return nil
			})),
			validation.Field(&site.Name, validation.By(func(interface{}) error {
				name := site.GetName()
				if first, dup := seen[name]; dup {
					return fmt.Errorf("duplicate site name %q (also site %d)", name, first)
				}
				seen[name] = i
				return nil
			})),
		)
		if err != nil {
			errs[fmt.Sprintf("%d", i)] = err
		}
	}
	return errs.Filter()
}

func (l *LoggingConfig) validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Level, validation.Required, validation.In(logLevels...)),
		validation.Field(&l.Format, validation.Required, validation.In(logFormats...)),
	)
}

func (e *ElasticsearchConfig) validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Endpoint, validation.When(e.Enabled, validation.Required, is.URL)),
		validation.Field(&e.IndexPattern, validation.When(e.Enabled, validation.Required)),
		validation.Field(&e.BulkSize, validation.When(e.Enabled, validation.Required, validation.Min(1))),
	)
}

func (s *SNMPConfig) validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Port, validation.When(s.Enabled, validation.Required, validation.Max(65535))),
		validation.Field(&s.Community, validation.When(s.Enabled, validation.Required)),
		validation.Field(&s.ListenAddress, validation.When(s.Enabled, validation.Required, is.IP)),
		validation.Field(&s.TrapDestinations, validation.When(s.Enabled, validation.Each(is.DialString))),
		validation.Field(&s.TrapScoreThreshold, validation.Min(0), validation.Max(100)),
	)
}

func (p *PrometheusConfig) validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Port, validation.When(p.Enabled, validation.Required, validation.Max(65535))),
		validation.Field(&p.Path, validation.When(p.Enabled, validation.Required)),
	)
}

func (a *AdvancedConfig) validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.HealthCheckPort, validation.When(a.HealthCheckEnabled, validation.Required, validation.Max(65535))),
		validation.Field(&a.HealthCheckListenAddress, validation.When(a.HealthCheckEnabled, is.IP)),
	)
}
