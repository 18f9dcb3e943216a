package vitals

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCollector() (*Collector, *Registry, *fakeHost, *manualScheduler) {
	registry := NewRegistry()
	sched := &manualScheduler{}
	c := NewCollector(registry, quietLogger(), sched.schedule, 0)
	host := newFakeHost()
	return c, registry, host, sched
}

// TestCollector_SubscribesBuffered verifies every channel asks for buffered entries
func TestCollector_SubscribesBuffered(t *testing.T) {
	c, _, host, _ := newTestCollector()
	c.Install(host)

	for _, entryType := range ObservedChannels {
		if _, ok := host.handlers[entryType]; !ok {
			t.Errorf("Expected subscription for %s", entryType)
		}
		if !host.buffered[entryType] {
			t.Errorf("Expected buffered subscription for %s", entryType)
		}
	}
	if len(host.loadFns) != 1 {
		t.Errorf("Expected 1 load handler, got %d", len(host.loadFns))
	}
}

// TestCollector_Paint tests that only the first-contentful-paint entry counts
func TestCollector_Paint(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	c.Install(host)

	host.emit(EntryPaint, Entry{Name: "first-paint", StartTime: 400})
	if got := registry.Get(FirstContentfulPaint); got != 0 {
		t.Errorf("Expected FCP untouched by first-paint, got %v", got)
	}

	host.emit(EntryPaint,
		Entry{Name: "first-paint", StartTime: 400},
		Entry{Name: "first-contentful-paint", StartTime: 1200},
	)
	if got := registry.Get(FirstContentfulPaint); got != 1200 {
		t.Errorf("Expected FCP 1200, got %v", got)
	}
}

// TestCollector_LargestPaintOverwrites tests that the last candidate of each batch wins
func TestCollector_LargestPaintOverwrites(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	c.Install(host)

	host.emit(EntryLargestContentfulPaint,
		Entry{StartTime: 900},
		Entry{StartTime: 1500},
	)
	if got := registry.Get(LargestContentfulPaint); got != 1500 {
		t.Errorf("Expected LCP 1500, got %v", got)
	}

	host.emit(EntryLargestContentfulPaint, Entry{StartTime: 2100})
	if got := registry.Get(LargestContentfulPaint); got != 2100 {
		t.Errorf("Expected LCP overwritten to 2100, got %v", got)
	}

	// Empty batch leaves the previous candidate in place
	host.emit(EntryLargestContentfulPaint)
	if got := registry.Get(LargestContentfulPaint); got != 2100 {
		t.Errorf("Expected LCP 2100 after empty batch, got %v", got)
	}
}

// TestCollector_LayoutShiftExcludesRecentInput tests the recent-input exclusion scenario
func TestCollector_LayoutShiftExcludesRecentInput(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	c.Install(host)

	host.emit(EntryLayoutShift,
		Entry{Value: 0.2, HadRecentInput: true},
		Entry{Value: 0.05, HadRecentInput: false},
	)

	if got := registry.Get(CumulativeLayoutShift); math.Abs(got-0.05) > 1e-9 {
		t.Errorf("Expected CLS 0.05, got %v", got)
	}
}

// TestCollector_LayoutShiftReplacesPerBatch tests that each batch replaces the stored total
func TestCollector_LayoutShiftReplacesPerBatch(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	c.Install(host)

	host.emit(EntryLayoutShift, Entry{Value: 0.1}, Entry{Value: 0.05})
	if got := registry.Get(CumulativeLayoutShift); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("Expected CLS 0.15 within a batch, got %v", got)
	}

	host.emit(EntryLayoutShift, Entry{Value: 0.02})
	if got := registry.Get(CumulativeLayoutShift); math.Abs(got-0.02) > 1e-9 {
		t.Errorf("Expected CLS replaced with 0.02, got %v", got)
	}
}

// TestCollector_LongTasks tests the 80/30 scenario
func TestCollector_LongTasks(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	c.Install(host)

	host.emit(EntryLongTask, Entry{Duration: 80}, Entry{Duration: 30})

	if got := registry.Get(TotalBlockingTime); got != 30 {
		t.Errorf("Expected TBT 30, got %v", got)
	}
}

// TestCollector_BlockingTimeMonotonic tests TBT never decreases across batches
func TestCollector_BlockingTimeMonotonic(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	c.Install(host)

	batches := [][]Entry{
		{{Duration: 120}},
		{{Duration: 10}, {Duration: 50}},
		{{Duration: 51}},
		{},
		{{Duration: 300}, {Duration: 45}},
	}

	previous := 0.0
	for i, batch := range batches {
		host.emit(EntryLongTask, batch...)
		got := registry.Get(TotalBlockingTime)
		if got < previous {
			t.Errorf("Batch %d: TBT decreased from %v to %v", i, previous, got)
		}
		previous = got
	}

	// 70 + 0 + 0 + 1 + 250 + 0
	if previous != 321 {
		t.Errorf("Expected final TBT 321, got %v", previous)
	}
}

// TestCollector_FirstInput tests the delay of the batch's first entry
func TestCollector_FirstInput(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	c.Install(host)

	host.emit(EntryFirstInput,
		Entry{StartTime: 1000, ProcessingStart: 1080},
		Entry{StartTime: 2000, ProcessingStart: 2500},
	)

	if got := registry.Get(FirstInputDelay); got != 80 {
		t.Errorf("Expected FID 80, got %v", got)
	}
}

// TestCollector_LoadSetsTTFBAndSchedulesTTI tests navigation-derived metrics
func TestCollector_LoadSetsTTFBAndSchedulesTTI(t *testing.T) {
	c, registry, host, sched := newTestCollector()
	host.navigation = []Entry{{EntryType: EntryNavigation, ResponseStart: 245.1}}
	host.timing = &NavigationTiming{NavigationStart: 1000000, DOMInteractive: 1001800}
	c.Install(host)

	host.load()

	if got := registry.Get(TimeToFirstByte); got != 245.1 {
		t.Errorf("Expected TTFB 245.1, got %v", got)
	}
	if got := registry.Get(TimeToInteractive); got != 0 {
		t.Errorf("Expected TTI unset before timer, got %v", got)
	}

	delays := sched.delays()
	if len(delays) != 1 || delays[0] != 500*time.Millisecond {
		t.Fatalf("Expected one 500ms timer, got %v", delays)
	}

	sched.fireAll()
	if got := registry.Get(TimeToInteractive); got != 1800 {
		t.Errorf("Expected TTI 1800, got %v", got)
	}
}

// TestCollector_LoadWithoutNavigationData tests that missing data leaves metrics at zero
func TestCollector_LoadWithoutNavigationData(t *testing.T) {
	c, registry, host, sched := newTestCollector()
	c.Install(host)

	host.load()
	sched.fireAll()

	if got := registry.Get(TimeToFirstByte); got != 0 {
		t.Errorf("Expected TTFB 0, got %v", got)
	}
	if got := registry.Get(TimeToInteractive); got != 0 {
		t.Errorf("Expected TTI 0, got %v", got)
	}
}

// TestCollector_UnsupportedChannelIsolated tests that one rejected channel does not stop the others
func TestCollector_UnsupportedChannelIsolated(t *testing.T) {
	c, registry, host, _ := newTestCollector()
	host.unsupported[EntryLongTask] = true
	host.panics[EntryLayoutShift] = true
	c.Install(host)

	failed := c.FailedChannels()
	if len(failed) != 2 || failed[0] != EntryLayoutShift || failed[1] != EntryLongTask {
		t.Errorf("Expected layout-shift and longtask to fail, got %v", failed)
	}

	if host.emit(EntryLongTask, Entry{Duration: 500}) {
		t.Error("Expected no longtask subscription")
	}
	if got := registry.Get(TotalBlockingTime); got != 0 {
		t.Errorf("Expected TBT to stay 0, got %v", got)
	}

	host.emit(EntryFirstInput, Entry{StartTime: 10, ProcessingStart: 30})
	if got := registry.Get(FirstInputDelay); got != 20 {
		t.Errorf("Expected FID 20 from surviving channel, got %v", got)
	}
}

// TestChannelPanicError_Unwrap tests that a panicking registration reads as unsupported
func TestChannelPanicError_Unwrap(t *testing.T) {
	err := error(&channelPanicError{entryType: EntryPaint, value: "boom"})
	if !errors.Is(err, ErrUnsupportedChannel) {
		t.Error("Expected channel panic to unwrap to ErrUnsupportedChannel")
	}
	if err.Error() != "observe paint: boom" {
		t.Errorf("Unexpected error text '%s'", err.Error())
	}
}

// TestCollector_NeverNegative tests that out-of-order timestamps cannot produce negative values
func TestCollector_NeverNegative(t *testing.T) {
	c, registry, host, sched := newTestCollector()
	host.navigation = []Entry{{ResponseStart: -3}}
	host.timing = &NavigationTiming{NavigationStart: 2000, DOMInteractive: 1500}
	c.Install(host)

	host.emit(EntryFirstInput, Entry{StartTime: 100, ProcessingStart: 90})
	host.emit(EntryPaint, Entry{Name: "first-contentful-paint", StartTime: -1})
	host.emit(EntryLargestContentfulPaint, Entry{StartTime: -5})
	host.emit(EntryLayoutShift, Entry{Value: -0.3})
	host.emit(EntryLongTask, Entry{Duration: -100})
	host.load()
	sched.fireAll()

	for id, v := range registry.Snapshot() {
		if v < 0 {
			t.Errorf("Metric %s is negative: %v", id, v)
		}
	}
}

// TestCollector_UpdateHook tests that every update is surfaced
func TestCollector_UpdateHook(t *testing.T) {
	c, _, host, _ := newTestCollector()

	var seen []MetricID
	c.SetUpdateHook(func(id MetricID, value float64) {
		seen = append(seen, id)
	})
	c.Install(host)

	host.emit(EntryPaint, Entry{Name: "first-contentful-paint", StartTime: 100})
	host.emit(EntryLongTask, Entry{Duration: 60}, Entry{Duration: 70})

	expected := []MetricID{FirstContentfulPaint, TotalBlockingTime, TotalBlockingTime}
	if len(seen) != len(expected) {
		t.Fatalf("Expected %d updates, got %v", len(expected), seen)
	}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Errorf("Update %d: expected %s, got %s", i, expected[i], seen[i])
		}
	}
}
