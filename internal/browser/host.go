package browser

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/vitals"
)

// bindingName is the page-side function the observer script reports through
const bindingName = "__pvmEmit"

// observerScript subscribes to the entry types listed in window.__pvmTypes
// and forwards each batch, plus the navigation data at load, to bindingName.
//
//go:embed observer.js
var observerScript string

// probeScript reports whether PerformanceObserver exists and which entry types it knows
const probeScript = `(() => {
	const supported = typeof PerformanceObserver !== 'undefined';
	return {
		supported: supported,
		entryTypes: (supported && PerformanceObserver.supportedEntryTypes) || []
	};
})()`

type supportProbe struct {
	Supported  bool     `json:"supported"`
	EntryTypes []string `json:"entryTypes"`
}

// bindingMessage is one payload sent by the observer script
type bindingMessage struct {
	Kind       string                   `json:"kind"`
	EntryType  vitals.EntryType         `json:"entryType"`
	Entries    []vitals.Entry           `json:"entries"`
	Navigation []vitals.Entry           `json:"navigation"`
	Timing     *vitals.NavigationTiming `json:"timing"`
	Message    string                   `json:"message"`
}

// pageHost adapts a Chrome tab to vitals.Host. Subscriptions are recorded
// before navigation and installed in the page by the observer script.
type pageHost struct {
	logger *slog.Logger

	mu           sync.Mutex
	supported    bool
	entryTypes   map[vitals.EntryType]bool
	handlers     map[vitals.EntryType]vitals.BatchHandler
	loadFns      []func()
	loaded       bool
	navigation   []vitals.Entry
	timing       *vitals.NavigationTiming
	lateFailures []vitals.EntryType
}

func newPageHost(logger *slog.Logger) *pageHost {
	return &pageHost{
		logger:     logger,
		entryTypes: make(map[vitals.EntryType]bool),
		handlers:   make(map[vitals.EntryType]vitals.BatchHandler),
	}
}

// setSupport records the result of the support probe
func (h *pageHost) setSupport(probe supportProbe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.supported = probe.Supported
	for _, t := range probe.EntryTypes {
		h.entryTypes[vitals.EntryType(t)] = true
	}
}

func (h *pageHost) PerformanceSupported() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.supported
}

// Observe records handler for entryType. Buffering is always requested by the
// observer script, so the flag only documents the caller's intent.
func (h *pageHost) Observe(entryType vitals.EntryType, buffered bool, handler vitals.BatchHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Older engines expose the observer without supportedEntryTypes
	if len(h.entryTypes) > 0 && !h.entryTypes[entryType] {
		return fmt.Errorf("%w: %s", vitals.ErrUnsupportedChannel, entryType)
	}
	if !buffered {
		h.logger.Debug("Unbuffered subscription requested, buffering anyway", "type", entryType)
	}
	h.handlers[entryType] = handler
	return nil
}

func (h *pageHost) OnLoad(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadFns = append(h.loadFns, fn)
}

func (h *pageHost) NavigationEntries() []vitals.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]vitals.Entry(nil), h.navigation...)
}

func (h *pageHost) NavigationTiming() (vitals.NavigationTiming, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timing == nil {
		return vitals.NavigationTiming{}, false
	}
	return *h.timing, true
}

// observedTypes lists the subscribed entry types in a stable order
func (h *pageHost) observedTypes() []vitals.EntryType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]vitals.EntryType, 0, len(h.handlers))
	for _, t := range vitals.ObservedChannels {
		if _, ok := h.handlers[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// script returns the observer script prefixed with the subscribed types
func (h *pageHost) script() (string, error) {
	types, err := json.Marshal(h.observedTypes())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("window.__pvmTypes = %s;\n%s", types, observerScript), nil
}

// handleBinding dispatches one payload from the page
func (h *pageHost) handleBinding(payload string) {
	var msg bindingMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		h.logger.Warn("Discarding malformed observer payload", "error", err)
		return
	}

	switch msg.Kind {
	case "entries":
		h.mu.Lock()
		handler, ok := h.handlers[msg.EntryType]
		h.mu.Unlock()
		if ok {
			handler(msg.Entries)
		}

	case "load":
		h.mu.Lock()
		if h.loaded {
			h.mu.Unlock()
			return
		}
		h.loaded = true
		h.navigation = msg.Navigation
		h.timing = msg.Timing
		fns := append([]func(){}, h.loadFns...)
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}

	case "error":
		h.logger.Warn("Failed to observe entry type", "type", msg.EntryType, "error", msg.Message)
		h.mu.Lock()
		h.lateFailures = append(h.lateFailures, msg.EntryType)
		delete(h.handlers, msg.EntryType)
		h.mu.Unlock()

	default:
		h.logger.Debug("Ignoring unknown observer payload", "kind", msg.Kind)
	}
}

// failedInPage returns entry types that were accepted but threw in the page
func (h *pageHost) failedInPage() []vitals.EntryType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]vitals.EntryType(nil), h.lateFailures...)
}
