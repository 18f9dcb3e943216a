package vitals

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// longTaskThresholdMs is the portion of each long task that does not count as blocking
	longTaskThresholdMs = 50

	// DefaultInteractiveDelay is how long after load time-to-interactive is sampled
	DefaultInteractiveDelay = 500 * time.Millisecond
)

// Scheduler runs fn once after d. time.AfterFunc satisfies it via AfterFunc.
type Scheduler func(d time.Duration, fn func())

// AfterFunc schedules fn on a timer goroutine
func AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// UpdateHook is notified after every metric update
type UpdateHook func(id MetricID, value float64)

// Collector subscribes to every observation channel and feeds the registry
type Collector struct {
	registry         *Registry
	logger           *slog.Logger
	schedule         Scheduler
	interactiveDelay time.Duration
	onUpdate         UpdateHook

	mu            sync.Mutex
	blockingTotal float64
	failed        []EntryType
}

// NewCollector creates a collector writing into registry
func NewCollector(registry *Registry, logger *slog.Logger, schedule Scheduler, interactiveDelay time.Duration) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == nil {
		schedule = AfterFunc
	}
	if interactiveDelay <= 0 {
		interactiveDelay = DefaultInteractiveDelay
	}
	return &Collector{
		registry:         registry,
		logger:           logger,
		schedule:         schedule,
		interactiveDelay: interactiveDelay,
	}
}

// SetUpdateHook installs a hook called after each metric update
func (c *Collector) SetUpdateHook(hook UpdateHook) {
	c.onUpdate = hook
}

// Install registers one subscription per channel plus the load handler.
// A channel the host rejects is logged and skipped; the rest are still installed.
func (c *Collector) Install(host Host) {
	handlers := map[EntryType]BatchHandler{
		EntryPaint:                  c.handlePaint,
		EntryLargestContentfulPaint: c.handleLargestPaint,
		EntryLayoutShift:            c.handleLayoutShift,
		EntryLongTask:               c.handleLongTasks,
		EntryFirstInput:             c.handleFirstInput,
	}

	for _, entryType := range ObservedChannels {
		if err := c.observe(host, entryType, handlers[entryType]); err != nil {
			c.logger.Warn("Failed to observe entry type",
				"type", string(entryType),
				"error", err,
			)
			c.mu.Lock()
			c.failed = append(c.failed, entryType)
			c.mu.Unlock()
		}
	}

	host.OnLoad(func() {
		c.handleLoad(host)
	})
}

// observe isolates one registration so a panicking host cannot abort the others
func (c *Collector) observe(host Host, entryType EntryType, handler BatchHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &channelPanicError{entryType: entryType, value: r}
		}
	}()
	return host.Observe(entryType, true, handler)
}

// FailedChannels returns the channels whose subscription was rejected
func (c *Collector) FailedChannels() []EntryType {
	c.mu.Lock()
	defer c.mu.Unlock()
	failed := make([]EntryType, len(c.failed))
	copy(failed, c.failed)
	return failed
}

func (c *Collector) update(id MetricID, value float64) {
	c.registry.Set(id, value)
	if c.onUpdate != nil {
		c.onUpdate(id, value)
	}
}

func (c *Collector) handlePaint(entries []Entry) {
	for _, entry := range entries {
		if entry.Name == "first-contentful-paint" {
			c.update(FirstContentfulPaint, nonNegative(entry.StartTime))
			return
		}
	}
}

// handleLargestPaint keeps the latest candidate; later entries supersede earlier ones
func (c *Collector) handleLargestPaint(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	last := entries[len(entries)-1]
	c.update(LargestContentfulPaint, nonNegative(last.StartTime))
}

// handleLayoutShift replaces the stored score with this batch's sum.
// Shifts caused by recent user input are not counted.
func (c *Collector) handleLayoutShift(entries []Entry) {
	var total float64
	for _, entry := range entries {
		if !entry.HadRecentInput {
			total += entry.Value
		}
	}
	c.update(CumulativeLayoutShift, nonNegative(total))
}

func (c *Collector) handleLongTasks(entries []Entry) {
	for _, entry := range entries {
		blocking := entry.Duration - longTaskThresholdMs
		if blocking <= 0 {
			continue
		}

		c.mu.Lock()
		c.blockingTotal += blocking
		total := c.blockingTotal
		c.mu.Unlock()

		c.update(TotalBlockingTime, total)
	}
}

func (c *Collector) handleFirstInput(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	first := entries[0]
	c.update(FirstInputDelay, nonNegative(first.ProcessingStart-first.StartTime))
}

// handleLoad reads time-to-first-byte and schedules the interactivity sample
func (c *Collector) handleLoad(host Host) {
	if nav := host.NavigationEntries(); len(nav) > 0 {
		c.update(TimeToFirstByte, nonNegative(nav[0].ResponseStart))
	}

	c.schedule(c.interactiveDelay, func() {
		timing, ok := host.NavigationTiming()
		if !ok || timing.DOMInteractive == 0 {
			return
		}
		c.update(TimeToInteractive, nonNegative(timing.DOMInteractive-timing.NavigationStart))
	})
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// channelPanicError reports a host that panicked while registering a channel
type channelPanicError struct {
	entryType EntryType
	value     interface{}
}

func (e *channelPanicError) Error() string {
	return fmt.Sprintf("observe %s: %v", e.entryType, e.value)
}

func (e *channelPanicError) Unwrap() error {
	return ErrUnsupportedChannel
}
