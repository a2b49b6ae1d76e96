// Package trace keeps a sliding time window of control cycles for display
// and derives the touch spans within it.
package trace

import (
	"sync"
	"time"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
)

var _ History = (*Trace)(nil)

// Span is a run of consecutive touching cycles.
type Span struct {
	Start      time.Time
	End        time.Time
	Cycles     int
	PeakSignal float32
	PeakLevel  int
	Open       bool // The most recent cycle is still touching
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// History processes cycles and keeps them for display.
type History interface {
	ProcessCycles(input <-chan control.Cycle)
	Cycles() []control.Cycle                             // Cycles within the window, oldest first
	Spans() []Span                                       // Touch spans at least the minimum duration long
	OnUpdate(func(cycles []control.Cycle, spans []Span)) // Register callback for updates
}

// Trace implements History.
type Trace struct {
	window   time.Duration
	minTouch time.Duration

	mu       sync.RWMutex
	cycles   []control.Cycle
	spans    []Span // Includes spans shorter than minTouch
	shutdown bool   // Set when the input channel closes, prevents further callbacks

	callbacks []func(cycles []control.Cycle, spans []Span)
	cbMu      sync.RWMutex
}

// New creates a trace from the trace configuration.
func New(cfg config.TraceConfig) *Trace {
	return &Trace{
		window:   time.Duration(cfg.WindowSeconds * float64(time.Second)),
		minTouch: time.Duration(cfg.MinTouchDuration * float64(time.Second)),
		cycles:   make([]control.Cycle, 0),
		spans:    make([]Span, 0),
	}
}

// Configure changes the window and the minimum span duration. Cycles that
// fall out of a shorter window are dropped with the next Add.
func (t *Trace) Configure(cfg config.TraceConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = time.Duration(cfg.WindowSeconds * float64(time.Second))
	t.minTouch = time.Duration(cfg.MinTouchDuration * float64(time.Second))
}

// ProcessCycles consumes cycles until input is closed. After that no more
// callbacks are sent until ResetShutdown is called.
func (t *Trace) ProcessCycles(input <-chan control.Cycle) {
	for c := range input {
		t.Add(c)
	}
	t.mu.Lock()
	t.shutdown = true
	t.mu.Unlock()
}

// Add appends a cycle, trims the window and updates spans.
func (t *Trace) Add(c control.Cycle) {
	t.mu.Lock()
	t.cycles = append(t.cycles, c)
	t.trim(c.At)
	t.updateSpans(c)
	shouldNotify := !t.shutdown
	t.mu.Unlock()

	if shouldNotify {
		t.notifyCallbacks()
	}
}

// trim drops cycles and spans that ended before the window.
func (t *Trace) trim(now time.Time) {
	if t.window <= 0 {
		return
	}
	cutoff := now.Add(-t.window)

	idx := 0
	for idx < len(t.cycles) && !t.cycles[idx].At.After(cutoff) {
		idx++
	}
	if idx > 0 {
		t.cycles = append(t.cycles[:0], t.cycles[idx:]...)
	}

	keep := t.spans[:0]
	for _, s := range t.spans {
		if s.End.After(cutoff) {
			keep = append(keep, s)
		}
	}
	t.spans = keep
}

func (t *Trace) updateSpans(c control.Cycle) {
	var last *Span
	if n := len(t.spans); n > 0 && t.spans[n-1].Open {
		last = &t.spans[n-1]
	}

	if !c.Touching {
		if last != nil {
			last.Open = false
		}
		return
	}

	if last == nil {
		t.spans = append(t.spans, Span{
			Start:      c.At,
			End:        c.At,
			Cycles:     1,
			PeakSignal: c.Signal,
			PeakLevel:  c.Level,
			Open:       true,
		})
		return
	}

	last.End = c.At
	last.Cycles++
	if c.Signal > last.PeakSignal {
		last.PeakSignal = c.Signal
	}
	if c.Level > last.PeakLevel {
		last.PeakLevel = c.Level
	}
}

// Cycles returns a copy of the cycles within the window.
func (t *Trace) Cycles() []control.Cycle {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]control.Cycle, len(t.cycles))
	copy(result, t.cycles)
	return result
}

// Spans returns the spans at least the minimum touch duration long.
func (t *Trace) Spans() []Span {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.visibleSpans()
}

func (t *Trace) visibleSpans() []Span {
	result := make([]Span, 0, len(t.spans))
	for _, s := range t.spans {
		if s.Duration() >= t.minTouch {
			result = append(result, s)
		}
	}
	return result
}

// OnUpdate registers a callback invoked after every added cycle.
// The callback should copy what it needs and return quickly.
func (t *Trace) OnUpdate(callback func(cycles []control.Cycle, spans []Span)) {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.callbacks = append(t.callbacks, callback)
}

// ResetShutdown allows callbacks again. Call it before feeding a new chain.
func (t *Trace) ResetShutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdown = false
}

// Clear drops all cycles and spans.
func (t *Trace) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cycles = t.cycles[:0]
	t.spans = t.spans[:0]
}

func (t *Trace) notifyCallbacks() {
	t.mu.RLock()
	cycles := make([]control.Cycle, len(t.cycles))
	copy(cycles, t.cycles)
	spans := t.visibleSpans()
	t.mu.RUnlock()

	t.cbMu.RLock()
	callbacks := make([]func([]control.Cycle, []Span), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(cycles, spans)
		}
	}
}
