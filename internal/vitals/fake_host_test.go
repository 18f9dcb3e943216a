package vitals

import (
	"sync"
	"time"
)

// fakeHost is an in-memory Host whose events are fired manually by tests
type fakeHost struct {
	supported   bool
	unsupported map[EntryType]bool
	panics      map[EntryType]bool

	mu         sync.Mutex
	handlers   map[EntryType]BatchHandler
	buffered   map[EntryType]bool
	loadFns    []func()
	navigation []Entry
	timing     *NavigationTiming
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		supported:   true,
		unsupported: make(map[EntryType]bool),
		panics:      make(map[EntryType]bool),
		handlers:    make(map[EntryType]BatchHandler),
		buffered:    make(map[EntryType]bool),
	}
}

func (h *fakeHost) PerformanceSupported() bool { return h.supported }

func (h *fakeHost) Observe(entryType EntryType, buffered bool, handler BatchHandler) error {
	if h.panics[entryType] {
		panic("observer exploded")
	}
	if h.unsupported[entryType] {
		return ErrUnsupportedChannel
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[entryType] = handler
	h.buffered[entryType] = buffered
	return nil
}

func (h *fakeHost) OnLoad(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadFns = append(h.loadFns, fn)
}

func (h *fakeHost) NavigationEntries() []Entry { return h.navigation }

func (h *fakeHost) NavigationTiming() (NavigationTiming, bool) {
	if h.timing == nil {
		return NavigationTiming{}, false
	}
	return *h.timing, true
}

// emit delivers a batch to the channel's handler, if subscribed
func (h *fakeHost) emit(entryType EntryType, entries ...Entry) bool {
	h.mu.Lock()
	handler, ok := h.handlers[entryType]
	h.mu.Unlock()
	if !ok {
		return false
	}
	handler(entries)
	return true
}

func (h *fakeHost) load() {
	h.mu.Lock()
	fns := append([]func(){}, h.loadFns...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// manualScheduler records timers so tests decide when they fire
type manualScheduler struct {
	mu     sync.Mutex
	timers []scheduledTimer
}

type scheduledTimer struct {
	delay time.Duration
	fn    func()
}

func (m *manualScheduler) schedule(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers = append(m.timers, scheduledTimer{delay: d, fn: fn})
}

// fireAll runs pending timers in delay order
func (m *manualScheduler) fireAll() {
	m.mu.Lock()
	timers := m.timers
	m.timers = nil
	m.mu.Unlock()

	for i := 1; i < len(timers); i++ {
		for j := i; j > 0 && timers[j].delay < timers[j-1].delay; j-- {
			timers[j], timers[j-1] = timers[j-1], timers[j]
		}
	}
	for _, t := range timers {
		t.fn()
	}
}

func (m *manualScheduler) delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, 0, len(m.timers))
	for _, t := range m.timers {
		out = append(out, t.delay)
	}
	return out
}
