package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/touchamp/pkg/control"
	"github.com/itohio/touchamp/pkg/trace"
)

var (
	gridColor   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	signalColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	levelColor  = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	spanColor   = color.RGBA{R: 0, G: 100, B: 200, A: 255}   // Dark blue
	faultColor  = color.RGBA{R: 220, G: 50, B: 50, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	grid    *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// plot is the drawing area inside the margins.
type plot struct {
	x, y, w, h float32
	axes       axes
}

func (p plot) pos(t time.Time, v float32) fyne.Position {
	return fyne.NewPos(p.x+p.axes.x(t)*p.w, p.y+p.h-p.axes.y(v)*p.h)
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	cycles := r.scope.displayCycles
	spans := r.scope.spans
	a := r.scope.axes
	levelMax := r.scope.levelMax
	maxSignal := r.scope.maxSignal
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	const (
		marginLeft   = 60
		marginRight  = 20
		marginTop    = 20
		marginBottom = 40
	)
	p := plot{
		x:    marginLeft,
		y:    marginTop,
		w:    size.Width - marginLeft - marginRight,
		h:    size.Height - marginTop - marginBottom,
		axes: a,
	}

	r.drawGrid(p)
	r.drawSpans(p, spans)
	r.drawLine(p, cycles, signalColor, 1.5, func(c control.Cycle) float32 { return c.Signal })
	r.drawLine(p, cycles, levelColor, 2.5, func(c control.Cycle) float32 {
		return levelAsSignal(c.Level, levelMax, maxSignal)
	})
	r.drawStatus(p, cycles, levelMax)
}

// drawGrid draws the oscilloscope-style grid.
func (r *scopeRenderer) drawGrid(p plot) {
	numHLines := 8
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.h/float32(numHLines)
		r.addLine(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		value := p.axes.yMax - float32(i)*(p.axes.yMax-p.axes.yMin)/float32(numHLines)
		r.addText(fmt.Sprintf("%.1f", value), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
	}

	numVLines := 10
	span := p.axes.xMax.Sub(p.axes.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.w/float32(numVLines)
		r.addLine(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))

		offset := span * time.Duration(i) / time.Duration(numVLines)
		r.addText(formatTime(offset), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.h+5))
	}
}

func (r *scopeRenderer) drawLine(p plot, cycles []control.Cycle, c color.Color, width float32, value func(control.Cycle) float32) {
	if len(cycles) < 2 {
		return
	}

	prev := p.pos(cycles[0].At, value(cycles[0]))
	for _, cy := range cycles[1:] {
		next := p.pos(cy.At, value(cy))
		r.addLine(c, width, prev, next)
		prev = next
	}
}

// drawSpans draws start and end markers for each touch span, labelled with
// the peak level reached.
func (r *scopeRenderer) drawSpans(p plot, spans []trace.Span) {
	for _, s := range spans {
		if s.End.Before(p.axes.xMin) {
			continue
		}
		start := p.pos(s.Start, p.axes.yMax)
		end := p.pos(s.End, p.axes.yMax)
		r.addLine(spanColor, 1, start, fyne.NewPos(start.X, p.y+p.h))
		r.addLine(spanColor, 1, end, fyne.NewPos(end.X, p.y+p.h))

		label := fmt.Sprintf("%.1fs L%d", s.Duration().Seconds(), s.PeakLevel)
		r.addText(label, signalColor, 12, fyne.TextAlignCenter, fyne.NewPos((start.X+end.X)/2-30, p.y+5))
	}
}

// drawStatus prints the latest cycle in the top-left corner.
func (r *scopeRenderer) drawStatus(p plot, cycles []control.Cycle, levelMax int) {
	if len(cycles) == 0 {
		return
	}
	last := cycles[len(cycles)-1]

	status := fmt.Sprintf("level %d/%d  signal %.1f  raw %d  threshold %d  x%.2f",
		last.Level, levelMax, last.Signal, last.Raw, last.Threshold, last.Multiplier)
	r.addText(status, color.RGBA{R: 200, G: 200, B: 200, A: 255}, 11, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+10))

	if last.ActuatorError != "" {
		r.addText(last.ActuatorError, faultColor, 11, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+26))
	}
}

func (r *scopeRenderer) addLine(c color.Color, width float32, from, to fyne.Position) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) addText(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	text := canvas.NewText(s, c)
	text.TextSize = size
	text.Alignment = align
	text.Move(pos)
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
