package vitals

import (
	"fmt"
	"sync"
)

// MetricID identifies one tracked page-load metric
type MetricID string

const (
	FirstContentfulPaint   MetricID = "FCP"
	LargestContentfulPaint MetricID = "LCP"
	TimeToInteractive      MetricID = "TTI"
	TotalBlockingTime      MetricID = "TBT"
	CumulativeLayoutShift  MetricID = "CLS"
	TimeToFirstByte        MetricID = "TTFB"
	FirstInputDelay        MetricID = "FID"
)

// AllMetrics lists every tracked metric in a stable order
var AllMetrics = []MetricID{
	FirstContentfulPaint,
	LargestContentfulPaint,
	TimeToInteractive,
	TotalBlockingTime,
	CumulativeLayoutShift,
	TimeToFirstByte,
	FirstInputDelay,
}

// Unit returns the display unit for a metric ("ms" for durations, "" for CLS)
func (id MetricID) Unit() string {
	if id == CumulativeLayoutShift {
		return ""
	}
	return "ms"
}

// Snapshot is a point-in-time copy of all metric values
type Snapshot map[MetricID]float64

// Registry holds the current value of every tracked metric for one page load.
// Values start at zero and are never reset.
type Registry struct {
	mu     sync.RWMutex
	values map[MetricID]float64
}

// NewRegistry creates a registry with every metric initialised to zero
func NewRegistry() *Registry {
	values := make(map[MetricID]float64, len(AllMetrics))
	for _, id := range AllMetrics {
		values[id] = 0
	}
	return &Registry{values: values}
}

// Get returns the current value of a metric
func (r *Registry) Get(id MetricID) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[id]
}

// Set overwrites the value of a metric. Values are not validated.
func (r *Registry) Set(id MetricID, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[id] = value
}

// Snapshot returns a copy of all current values
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(Snapshot, len(r.values))
	for id, v := range r.values {
		snap[id] = v
	}
	return snap
}

// Benchmark holds the classification boundaries for one metric
type Benchmark struct {
	Good             float64
	NeedsImprovement float64
}

// BenchmarkTable maps metrics to their boundaries. It is read-only after construction.
type BenchmarkTable struct {
	entries map[MetricID]Benchmark
}

// NewBenchmarkTable validates and copies the given boundaries
func NewBenchmarkTable(entries map[MetricID]Benchmark) (*BenchmarkTable, error) {
	copied := make(map[MetricID]Benchmark, len(entries))
	for id, b := range entries {
		if b.Good >= b.NeedsImprovement {
			return nil, fmt.Errorf("benchmark %s: good threshold %v must be below needs-improvement threshold %v",
				id, b.Good, b.NeedsImprovement)
		}
		copied[id] = b
	}
	return &BenchmarkTable{entries: copied}, nil
}

// Lookup returns the boundaries for a metric
func (t *BenchmarkTable) Lookup(id MetricID) (Benchmark, bool) {
	b, ok := t.entries[id]
	return b, ok
}

var (
	defaultBenchmarks     *BenchmarkTable
	defaultBenchmarksOnce sync.Once
)

// DefaultBenchmarks returns the Core Web Vitals style thresholds
func DefaultBenchmarks() *BenchmarkTable {
	defaultBenchmarksOnce.Do(func() {
		table, err := NewBenchmarkTable(map[MetricID]Benchmark{
			FirstContentfulPaint:   {Good: 1800, NeedsImprovement: 3000},
			LargestContentfulPaint: {Good: 2500, NeedsImprovement: 4000},
			TimeToInteractive:      {Good: 3800, NeedsImprovement: 7300},
			TotalBlockingTime:      {Good: 200, NeedsImprovement: 600},
			CumulativeLayoutShift:  {Good: 0.1, NeedsImprovement: 0.25},
			TimeToFirstByte:        {Good: 800, NeedsImprovement: 1800},
			FirstInputDelay:        {Good: 100, NeedsImprovement: 300},
		})
		if err != nil {
			panic(err)
		}
		defaultBenchmarks = table
	})
	return defaultBenchmarks
}
