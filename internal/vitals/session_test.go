package vitals

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSession(opts ...Option) (*Session, *manualScheduler, *bytes.Buffer) {
	sched := &manualScheduler{}
	var out bytes.Buffer
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithScheduler(sched.schedule),
		WithOutput(&out),
	}, opts...)
	return NewSession(0, opts...), sched, &out
}

// TestSession_UnsupportedHost tests that a host without the API produces nothing
func TestSession_UnsupportedHost(t *testing.T) {
	s, sched, out := newTestSession()
	host := newFakeHost()
	host.supported = false

	s.Start(host)

	if len(host.handlers) != 0 {
		t.Errorf("Expected no subscriptions, got %d", len(host.handlers))
	}
	if len(host.loadFns) != 0 {
		t.Errorf("Expected no load handlers, got %d", len(host.loadFns))
	}
	sched.fireAll()
	if out.Len() != 0 {
		t.Errorf("Expected no output, got %q", out.String())
	}

	report, err := s.Wait(context.Background())
	if !errors.Is(err, ErrPerformanceUnsupported) {
		t.Errorf("Expected ErrPerformanceUnsupported, got %v", err)
	}
	if report != nil {
		t.Error("Expected no report for unsupported host")
	}
}

// TestSession_NilHost tests that a missing host is treated as unsupported
func TestSession_NilHost(t *testing.T) {
	s, _, _ := newTestSession()
	s.Start(nil)

	if _, err := s.Wait(context.Background()); !errors.Is(err, ErrPerformanceUnsupported) {
		t.Errorf("Expected ErrPerformanceUnsupported, got %v", err)
	}
}

// TestSession_ReportsOnceAfterSettle tests the full load -> settle -> summary flow
func TestSession_ReportsOnceAfterSettle(t *testing.T) {
	var hookCalls int
	s, sched, out := newTestSession(
		WithSettleDelay(3*time.Second),
		WithReportHook(func(*Report) { hookCalls++ }),
	)
	host := newFakeHost()
	host.navigation = []Entry{{ResponseStart: 120}}
	host.timing = &NavigationTiming{NavigationStart: 100, DOMInteractive: 1900}

	s.Start(host)

	host.emit(EntryPaint, Entry{Name: "first-contentful-paint", StartTime: 1000})
	host.emit(EntryLargestContentfulPaint, Entry{StartTime: 2000})
	host.emit(EntryFirstInput, Entry{StartTime: 500, ProcessingStart: 650})
	host.emit(EntryLongTask, Entry{Duration: 350})
	host.emit(EntryLayoutShift, Entry{Value: 0.05})

	if out.Len() != 0 {
		t.Fatal("Expected no output before load")
	}

	host.load()

	delays := sched.delays()
	if len(delays) != 2 {
		t.Fatalf("Expected interactivity and settle timers, got %v", delays)
	}

	select {
	case <-s.Done():
		t.Fatal("Session finished before settle timer fired")
	default:
	}

	sched.fireAll()

	report, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Score != 75 {
		t.Errorf("Expected score 75, got %d", report.Score)
	}
	tti, _ := report.Metric(TimeToInteractive)
	if tti.Value != 1800 {
		t.Errorf("Expected TTI 1800 in report, got %v", tti.Value)
	}
	if !strings.Contains(out.String(), "Estimated Performance Score: 75/100") {
		t.Errorf("Expected score line in output, got:\n%s", out.String())
	}

	// A repeated trigger must not print again
	s.emitReport()
	if strings.Count(out.String(), "PERFORMANCE METRICS SUMMARY") != 1 {
		t.Errorf("Expected summary printed once, got:\n%s", out.String())
	}
	if hookCalls != 1 {
		t.Errorf("Expected report hook once, got %d", hookCalls)
	}

	// Explicit re-reporting reproduces the same content
	if s.Report().String() != report.String() {
		t.Error("Expected repeated report to match")
	}
}

// TestSession_ZeroValuesReported tests that metrics never observed are reported as zero
func TestSession_ZeroValuesReported(t *testing.T) {
	s, sched, out := newTestSession()
	host := newFakeHost()

	s.Start(host)
	host.load()
	sched.fireAll()

	report, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, m := range report.Metrics {
		if m.Value != 0 || m.Status != StatusGood {
			t.Errorf("Expected %s zero and good, got %v %s", m.ID, m.Value, m.Status)
		}
	}
	if !strings.Contains(out.String(), "✅ CLS: 0.000") {
		t.Errorf("Expected zero CLS line, got:\n%s", out.String())
	}
}

// TestSession_WaitHonorsContext tests that Wait returns when the context ends first
func TestSession_WaitHonorsContext(t *testing.T) {
	s, _, _ := newTestSession()
	s.Start(newFakeHost())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

// TestSession_FailedChannels tests that rejected channels are exposed on the session
func TestSession_FailedChannels(t *testing.T) {
	s, _, _ := newTestSession()
	host := newFakeHost()
	host.unsupported[EntryFirstInput] = true

	s.Start(host)

	failed := s.FailedChannels()
	if len(failed) != 1 || failed[0] != EntryFirstInput {
		t.Errorf("Expected first-input to fail, got %v", failed)
	}
}

// TestSession_RealTimers tests the default scheduler end to end with short delays
func TestSession_RealTimers(t *testing.T) {
	s := NewSession(5*time.Millisecond,
		WithLogger(quietLogger()),
		WithSettleDelay(150*time.Millisecond),
	)
	host := newFakeHost()
	host.timing = &NavigationTiming{NavigationStart: 0, DOMInteractive: 640}

	s.Start(host)
	host.emit(EntryLongTask, Entry{Duration: 90})
	host.load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	report, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	tbt, _ := report.Metric(TotalBlockingTime)
	if tbt.Value != 40 {
		t.Errorf("Expected TBT 40, got %v", tbt.Value)
	}
	tti, _ := report.Metric(TimeToInteractive)
	if tti.Value != 640 {
		t.Errorf("Expected TTI 640, got %v", tti.Value)
	}
}
