package outputs

import (
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }

// sampleResult builds an audit for site. Failed audits carry no vitals.
func sampleResult(site string, score int, success bool) *models.AuditResult {
	result := &models.AuditResult{
		Timestamp: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		AuditID:   site + "-audit",
		Site:      models.SiteInfo{URL: "https://" + site + ".org", Name: site},
		Status:    models.StatusInfo{Success: success},
		Network:   models.NetworkTimings{TotalDurationMs: 6200},
	}

	if !success {
		result.Status.Message = "navigation failed"
		result.Error = &models.ErrorInfo{ErrorType: "dns", ErrorMessage: "net::ERR_NAME_NOT_RESOLVED"}
		return result
	}

	result.Score = score
	result.Summary = "=== Performance Summary ===\nScore: " + site + "\n"
	result.Vitals = []models.VitalReading{
		{Metric: "FCP", Value: 900, Unit: "ms", Rating: "good"},
		{Metric: "LCP", Value: 2100, Unit: "ms", Rating: "good"},
		{Metric: "TTI", Value: 1500, Unit: "ms", Rating: "good"},
		{Metric: "TBT", Value: 350, Unit: "ms", Rating: "needs-improvement"},
		{Metric: "CLS", Value: 0.05, Rating: "good"},
		{Metric: "TTFB", Value: 300, Unit: "ms", Rating: "good"},
		{Metric: "FID", Value: 0, Unit: "ms", Rating: "good"},
	}
	result.Network.DNSLookupMs = int64Ptr(12)
	result.Network.TimeToFirstByteMs = int64Ptr(300)
	return result
}
