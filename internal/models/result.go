package models

import "time"

// AuditResult represents the outcome of auditing a single page load
type AuditResult struct {
	// Timestamp when the audit started
	Timestamp time.Time `json:"@timestamp"`

	// AuditID is a unique identifier for this audit
	AuditID string `json:"audit_id"`

	// Site information
	Site SiteInfo `json:"site"`

	// Status information
	Status StatusInfo `json:"status"`

	// Vitals holds one reading per metric, in summary order
	Vitals []VitalReading `json:"vitals,omitempty"`

	// Score is the weighted performance score (0-100)
	Score int `json:"score"`

	// Summary is the rendered performance summary block
	Summary string `json:"summary,omitempty"`

	// FailedChannels lists entry types the page refused to observe
	FailedChannels []string `json:"failed_channels,omitempty"`

	// Network breakdown from the navigation entry
	Network NetworkTimings `json:"network"`

	// Error information (if the audit failed)
	Error *ErrorInfo `json:"error,omitempty"`

	// Metadata about the audit environment
	Metadata AuditMetadata `json:"metadata,omitempty"`
}

// SiteInfo contains information about the audited site
type SiteInfo struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// StatusInfo contains the result status
type StatusInfo struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VitalReading is a single metric value and its rating
type VitalReading struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Rating string  `json:"rating"`
}

// Vital returns the reading for metric, if present
func (r *AuditResult) Vital(metric string) (VitalReading, bool) {
	for _, v := range r.Vitals {
		if v.Metric == metric {
			return v, true
		}
	}
	return VitalReading{}, false
}

// NetworkTimings contains connection phase durations in milliseconds.
// Nil means the phase was not observed.
type NetworkTimings struct {
	DNSLookupMs        *int64 `json:"dns_lookup_ms,omitempty"`
	TCPConnectionMs    *int64 `json:"tcp_connection_ms,omitempty"`
	TLSHandshakeMs     *int64 `json:"tls_handshake_ms,omitempty"`
	TimeToFirstByteMs  *int64 `json:"time_to_first_byte_ms,omitempty"`
	DOMContentLoadedMs *int64 `json:"dom_content_loaded_ms,omitempty"`
	FullPageLoadMs     *int64 `json:"full_page_load_ms,omitempty"`

	// TotalDurationMs is the wall time of the whole audit
	TotalDurationMs int64 `json:"total_duration_ms"`
}

// ErrorInfo contains error details when an audit fails
type ErrorInfo struct {
	// ErrorType categorizes the error (e.g., "timeout", "dns", "unsupported")
	ErrorType string `json:"error_type"`

	// ErrorMessage is the human-readable error message
	ErrorMessage string `json:"error_message"`
}

// AuditMetadata contains information about the audit environment
type AuditMetadata struct {
	Hostname  string `json:"hostname,omitempty"`
	Version   string `json:"version,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}
