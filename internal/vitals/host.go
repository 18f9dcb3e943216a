package vitals

import "errors"

// EntryType names a performance observation channel
type EntryType string

const (
	EntryPaint                  EntryType = "paint"
	EntryLargestContentfulPaint EntryType = "largest-contentful-paint"
	EntryLayoutShift            EntryType = "layout-shift"
	EntryLongTask               EntryType = "longtask"
	EntryFirstInput             EntryType = "first-input"
	EntryNavigation             EntryType = "navigation"
)

// ObservedChannels are the channels the collector subscribes to.
// Navigation is read once after load instead of being observed.
var ObservedChannels = []EntryType{
	EntryPaint,
	EntryLargestContentfulPaint,
	EntryLayoutShift,
	EntryLongTask,
	EntryFirstInput,
}

var (
	// ErrPerformanceUnsupported means the host has no performance observation API at all
	ErrPerformanceUnsupported = errors.New("performance observation API not supported")

	// ErrUnsupportedChannel means the host does not recognise a specific entry type
	ErrUnsupportedChannel = errors.New("entry type not supported")
)

// Entry is a single performance entry as reported by the host.
// Fields that do not apply to an entry type are zero.
type Entry struct {
	EntryType EntryType `json:"entryType"`
	Name      string    `json:"name"`
	StartTime float64   `json:"startTime"`
	Duration  float64   `json:"duration"`

	// layout-shift
	Value          float64 `json:"value"`
	HadRecentInput bool    `json:"hadRecentInput"`

	// first-input
	ProcessingStart float64 `json:"processingStart"`

	// navigation
	DomainLookupStart        float64 `json:"domainLookupStart"`
	DomainLookupEnd          float64 `json:"domainLookupEnd"`
	ConnectStart             float64 `json:"connectStart"`
	ConnectEnd               float64 `json:"connectEnd"`
	SecureConnectionStart    float64 `json:"secureConnectionStart"`
	RequestStart             float64 `json:"requestStart"`
	ResponseStart            float64 `json:"responseStart"`
	ResponseEnd              float64 `json:"responseEnd"`
	DOMContentLoadedEventEnd float64 `json:"domContentLoadedEventEnd"`
	LoadEventEnd             float64 `json:"loadEventEnd"`
}

// NavigationTiming carries the legacy navigation timing marks (epoch milliseconds)
type NavigationTiming struct {
	NavigationStart float64 `json:"navigationStart"`
	DOMInteractive  float64 `json:"domInteractive"`
}

// BatchHandler receives each batch of entries delivered for one channel
type BatchHandler func(entries []Entry)

// Host is the capability interface a page environment exposes to the collector
type Host interface {
	// PerformanceSupported reports whether the observation API exists at all
	PerformanceSupported() bool

	// Observe subscribes handler to entryType. When buffered is true, entries
	// recorded before the subscription are delivered too. Returns
	// ErrUnsupportedChannel if the host does not know the entry type.
	Observe(entryType EntryType, buffered bool, handler BatchHandler) error

	// OnLoad registers fn to run once when the page load event fires
	OnLoad(fn func())

	// NavigationEntries returns the navigation entries recorded for the page
	NavigationEntries() []Entry

	// NavigationTiming returns the legacy timing marks, if available
	NavigationTiming() (NavigationTiming, bool)
}
