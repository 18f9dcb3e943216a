package metrics

import (
	"log/slog"
	"sync"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Output is an interface for result output modules
type Output interface {
	// Write sends an audit result to the output
	Write(result *models.AuditResult) error

	// Name returns the output module name
	Name() string
}

// Dispatcher distributes audit results to all output modules
type Dispatcher struct {
	outputs []Output
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewDispatcher creates a new result dispatcher
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		outputs: make([]Output, 0),
		logger:  logger,
	}
}

// RegisterOutput adds an output module to the dispatcher
func (d *Dispatcher) RegisterOutput(output Output) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs = append(d.outputs, output)
}

// Outputs returns the names of the registered outputs
func (d *Dispatcher) Outputs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.outputs))
	for i, o := range d.outputs {
		names[i] = o.Name()
	}
	return names
}

// Dispatch sends a result to all registered outputs in parallel and waits
// for them. A failing output is logged and does not affect the others.
func (d *Dispatcher) Dispatch(result *models.AuditResult) {
	d.mu.RLock()
	outputs := make([]Output, len(d.outputs))
	copy(outputs, d.outputs)
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for _, output := range outputs {
		wg.Add(1)
		go func(o Output) {
			defer wg.Done()
			if err := o.Write(result); err != nil {
				d.logger.Error("Output failed to write audit result",
					"output", o.Name(),
					"site", result.Site.Name,
					"error", err,
				)
			}
		}(output)
	}

	wg.Wait()
}
