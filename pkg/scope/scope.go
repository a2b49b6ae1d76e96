// Package scope provides a Fyne widget that plots the control loop: touch
// signal, output level and touch spans over the trace window.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
	"github.com/itohio/touchamp/pkg/trace"
)

// ScopeWidget is a custom Fyne widget that displays oscilloscope-style graphs
// of the control loop.
type ScopeWidget struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu     sync.RWMutex
	cycles []control.Cycle
	spans  []trace.Span

	// Display buffer (reused for downsampling)
	displayCycles []control.Cycle

	axes axes

	window           time.Duration
	maxSignal        float32
	levelMax         int
	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cycles:           make([]control.Cycle, 0),
		spans:            make([]trace.Span, 0),
		displayCycles:    make([]control.Cycle, 0, 1000),
		maxDisplayPoints: 1000,
	}
	s.Configure(cfg)
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// Configure applies display-related settings.
func (s *ScopeWidget) Configure(cfg *config.Config) {
	s.mu.Lock()
	s.window = time.Duration(cfg.Trace.WindowSeconds * float64(time.Second))
	s.maxSignal = cfg.Signal.MaxSignal
	s.levelMax = cfg.Output.LevelMax
	s.axes = computeAxes(s.displayCycles, s.window, s.maxSignal)
	s.mu.Unlock()
}

// UpdateData updates the widget with new trace data.
// This should be called from the trace callback using fyne.Do().
func (s *ScopeWidget) UpdateData(cycles []control.Cycle, spans []trace.Span) {
	s.mu.Lock()
	s.displayCycles = trace.Downsample(s.displayCycles, cycles, s.maxDisplayPoints)
	s.cycles = cycles
	s.spans = spans
	s.axes = computeAxes(s.displayCycles, s.window, s.maxSignal)
	s.mu.Unlock()

	s.Refresh()
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		grid:    grid,
		objects: []fyne.CanvasObject{grid},
	}
}

// axes is the visible data range.
type axes struct {
	yMin, yMax float32
	xMin, xMax time.Time
}

// computeAxes fixes Y to [0, maxSignal] plus a margin and spans X over the
// cycles, at least one window wide.
func computeAxes(cycles []control.Cycle, window time.Duration, maxSignal float32) axes {
	if maxSignal <= 0 {
		maxSignal = 1
	}
	margin := maxSignal * 0.05
	a := axes{yMin: -margin, yMax: maxSignal + margin}

	if len(cycles) == 0 {
		now := time.Now()
		a.xMin = now
		a.xMax = now.Add(window)
		if window <= 0 {
			a.xMax = now.Add(10 * time.Second)
		}
		return a
	}

	a.xMin = cycles[0].At
	a.xMax = cycles[len(cycles)-1].At
	if a.xMax.Sub(a.xMin) < window {
		a.xMin = a.xMax.Add(-window)
	}
	if !a.xMax.After(a.xMin) {
		a.xMax = a.xMin.Add(time.Second)
	}
	return a
}

// x maps a timestamp to [0,1] across the visible range.
func (a axes) x(t time.Time) float32 {
	return float32(t.Sub(a.xMin).Seconds() / a.xMax.Sub(a.xMin).Seconds())
}

// y maps a signal value to [0,1], 0 at the bottom.
func (a axes) y(v float32) float32 {
	return (v - a.yMin) / (a.yMax - a.yMin)
}

// levelAsSignal scales a level onto the signal axis so both share one plot.
func levelAsSignal(level, levelMax int, maxSignal float32) float32 {
	if levelMax <= 0 {
		return 0
	}
	return float32(level) / float32(levelMax) * maxSignal
}
