package vitals

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Status is the health tier of a metric value
type Status string

const (
	StatusGood             Status = "good"
	StatusNeedsImprovement Status = "needs-improvement"
	StatusPoor             Status = "poor"
	StatusUnknown          Status = "unknown"
)

// Glyph returns the console indicator for a status
func (s Status) Glyph() string {
	switch s {
	case StatusGood:
		return "✅"
	case StatusNeedsImprovement:
		return "⚠️"
	case StatusPoor:
		return "❌"
	default:
		return "❓"
	}
}

// Score weights; they sum to 100
const (
	weightLCP = 25
	weightFID = 25
	weightCLS = 15
	weightTBT = 25
	weightFCP = 10
)

// summaryOrder is the order metrics appear in the rendered summary
var summaryOrder = []MetricID{
	TimeToFirstByte,
	FirstContentfulPaint,
	LargestContentfulPaint,
	TimeToInteractive,
	FirstInputDelay,
	TotalBlockingTime,
	CumulativeLayoutShift,
}

const (
	summaryHeader = "-------- PERFORMANCE METRICS SUMMARY --------"
	summaryRule   = "-------------------------------------------"
)

// Classify maps a value to a tier using inclusive upper bounds
func Classify(table *BenchmarkTable, id MetricID, value float64) Status {
	b, ok := table.Lookup(id)
	if !ok {
		return StatusUnknown
	}
	switch {
	case value <= b.Good:
		return StatusGood
	case value <= b.NeedsImprovement:
		return StatusNeedsImprovement
	default:
		return StatusPoor
	}
}

// FormatValue renders a value the way the summary prints it
func FormatValue(id MetricID, value float64) string {
	if id.Unit() == "ms" {
		return strconv.FormatFloat(math.Round(value), 'f', 0, 64) + "ms"
	}
	return strconv.FormatFloat(value, 'f', 3, 64)
}

// FormatLine renders "<glyph> <metric>: <value><unit>", e.g. "✅ FCP: 1200ms"
func FormatLine(table *BenchmarkTable, id MetricID, value float64) string {
	status := Classify(table, id, value)
	return fmt.Sprintf("%s %s: %s", status.Glyph(), id, FormatValue(id, value))
}

// normalized maps a tier to its score factor
func normalized(status Status) float64 {
	switch status {
	case StatusGood:
		return 1
	case StatusNeedsImprovement:
		return 0.5
	default:
		return 0.1
	}
}

// Score computes the weighted 0-100 performance estimate.
// TTI and TTFB are reported but do not contribute.
func Score(table *BenchmarkTable, snap Snapshot) int {
	factor := func(id MetricID) float64 {
		return normalized(Classify(table, id, snap[id]))
	}

	weighted := factor(LargestContentfulPaint)*weightLCP +
		factor(FirstInputDelay)*weightFID +
		factor(CumulativeLayoutShift)*weightCLS +
		factor(TotalBlockingTime)*weightTBT +
		factor(FirstContentfulPaint)*weightFCP

	return int(math.Round(weighted))
}

// MetricResult is one classified metric in a report
type MetricResult struct {
	ID     MetricID `json:"id"`
	Value  float64  `json:"value"`
	Status Status   `json:"status"`
	Line   string   `json:"line"`
}

// Report is the classified summary of one snapshot
type Report struct {
	Metrics []MetricResult `json:"metrics"`
	Score   int            `json:"score"`
}

// BuildReport classifies and scores a snapshot. It has no side effects.
func BuildReport(table *BenchmarkTable, snap Snapshot) *Report {
	report := &Report{
		Metrics: make([]MetricResult, 0, len(summaryOrder)),
		Score:   Score(table, snap),
	}
	for _, id := range summaryOrder {
		value := snap[id]
		report.Metrics = append(report.Metrics, MetricResult{
			ID:     id,
			Value:  value,
			Status: Classify(table, id, value),
			Line:   FormatLine(table, id, value),
		})
	}
	return report
}

// Metric returns the result for id, if present
func (r *Report) Metric(id MetricID) (MetricResult, bool) {
	for _, m := range r.Metrics {
		if m.ID == id {
			return m, true
		}
	}
	return MetricResult{}, false
}

// ScoreLine renders the score footer line
func (r *Report) ScoreLine() string {
	return fmt.Sprintf("Estimated Performance Score: %d/100", r.Score)
}

// String renders the full summary block
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(summaryHeader + "\n")
	for _, m := range r.Metrics {
		b.WriteString(m.Line + "\n")
	}
	b.WriteString(summaryRule + "\n")
	b.WriteString(r.ScoreLine() + "\n")
	b.WriteString(summaryRule + "\n")
	b.WriteString("\n")
	return b.String()
}

// Render writes the summary block to w
func (r *Report) Render(w io.Writer) error {
	_, err := io.WriteString(w, r.String())
	return err
}
