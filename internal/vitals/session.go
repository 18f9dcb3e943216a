package vitals

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultSettleDelay is how long after load the summary is produced, so that
// late LCP candidates and layout shifts are included
const DefaultSettleDelay = 5 * time.Second

// Session is the collection context for a single page load. It owns the
// registry, the collector and the one-shot summary.
type Session struct {
	registry   *Registry
	benchmarks *BenchmarkTable
	collector  *Collector
	logger     *slog.Logger
	schedule   Scheduler

	settleDelay time.Duration
	output      io.Writer
	onReport    func(*Report)

	reportOnce sync.Once
	done       chan struct{}
	report     *Report
	err        error
	mu         sync.Mutex
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for channel warnings
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithScheduler replaces the timer implementation (tests run timers synchronously)
func WithScheduler(schedule Scheduler) Option {
	return func(s *Session) { s.schedule = schedule }
}

// WithSettleDelay sets the delay between load and the summary
func WithSettleDelay(d time.Duration) Option {
	return func(s *Session) { s.settleDelay = d }
}

// WithBenchmarks replaces the default thresholds
func WithBenchmarks(table *BenchmarkTable) Option {
	return func(s *Session) { s.benchmarks = table }
}

// WithOutput sets where the summary text is written
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.output = w }
}

// WithReportHook is called once with the summary when it is produced
func WithReportHook(fn func(*Report)) Option {
	return func(s *Session) { s.onReport = fn }
}

// NewSession creates a session for one page load.
// interactiveDelay <= 0 selects DefaultInteractiveDelay.
func NewSession(interactiveDelay time.Duration, opts ...Option) *Session {
	s := &Session{
		registry:    NewRegistry(),
		benchmarks:  DefaultBenchmarks(),
		logger:      slog.Default(),
		schedule:    AfterFunc,
		settleDelay: DefaultSettleDelay,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.collector = NewCollector(s.registry, s.logger, s.schedule, interactiveDelay)
	return s
}

// OnUpdate installs a hook receiving every metric update. Call before Start.
func (s *Session) OnUpdate(hook UpdateHook) {
	s.collector.SetUpdateHook(hook)
}

// Start installs the collection pipeline on host and arranges for the summary
// to be produced once, settleDelay after the load event. If the host has no
// performance API nothing is installed and Wait returns ErrPerformanceUnsupported.
func (s *Session) Start(host Host) {
	if host == nil || !host.PerformanceSupported() {
		s.finish(nil, ErrPerformanceUnsupported)
		return
	}

	s.collector.Install(host)

	host.OnLoad(func() {
		s.schedule(s.settleDelay, s.emitReport)
	})
}

// emitReport produces and writes the summary, at most once
func (s *Session) emitReport() {
	s.reportOnce.Do(func() {
		report := s.Report()
		if s.output != nil {
			if err := report.Render(s.output); err != nil {
				s.logger.Warn("Failed to write performance summary", "error", err)
			}
		}
		if s.onReport != nil {
			s.onReport(report)
		}
		s.finish(report, nil)
	})
}

func (s *Session) finish(report *Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.report = report
	s.err = err
	close(s.done)
}

// Report builds a summary from the current registry contents. Calling it
// repeatedly on an unchanged registry yields identical reports.
func (s *Session) Report() *Report {
	return BuildReport(s.benchmarks, s.registry.Snapshot())
}

// Snapshot returns the current metric values
func (s *Session) Snapshot() Snapshot {
	return s.registry.Snapshot()
}

// Registry exposes the session's metric registry
func (s *Session) Registry() *Registry {
	return s.registry
}

// Benchmarks returns the thresholds used for classification
func (s *Session) Benchmarks() *BenchmarkTable {
	return s.benchmarks
}

// FailedChannels lists channels the host could not observe
func (s *Session) FailedChannels() []EntryType {
	return s.collector.FailedChannels()
}

// Done is closed once the summary has been produced or the session aborted
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the summary is produced or ctx ends
func (s *Session) Wait(ctx context.Context) (*Report, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.report, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
