package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
)

func testTrace(window, minTouch float64) *Trace {
	return New(config.TraceConfig{
		WindowSeconds:    window,
		MinTouchDuration: minTouch,
	})
}

// feed adds one cycle per 100ms; touching[i] controls cycle i.
func feed(tr *Trace, start time.Time, touching []bool) {
	for i, on := range touching {
		c := control.Cycle{
			At:       start.Add(time.Duration(i) * 100 * time.Millisecond),
			Touching: on,
			Signal:   float32(i),
			Level:    i,
		}
		tr.Add(c)
	}
}

func TestTrace_WindowTrimming(t *testing.T) {
	tr := testTrace(1.0, 0)
	start := time.Now()

	feed(tr, start, make([]bool, 30)) // 3 seconds of cycles

	cycles := tr.Cycles()
	require.NotEmpty(t, cycles)
	last := cycles[len(cycles)-1].At
	for _, c := range cycles {
		assert.True(t, c.At.After(last.Add(-time.Second)), "cycle outside window")
	}
	assert.Len(t, cycles, 10)
}

func TestTrace_ZeroWindowKeepsEverything(t *testing.T) {
	tr := testTrace(0, 0)
	feed(tr, time.Now(), make([]bool, 50))
	assert.Len(t, tr.Cycles(), 50)
}

func TestTrace_Spans(t *testing.T) {
	tr := testTrace(10, 0)
	start := time.Now()

	feed(tr, start, []bool{false, true, true, true, false, false, true, true})

	spans := tr.Spans()
	require.Len(t, spans, 2)

	assert.Equal(t, start.Add(100*time.Millisecond), spans[0].Start)
	assert.Equal(t, start.Add(300*time.Millisecond), spans[0].End)
	assert.Equal(t, 3, spans[0].Cycles)
	assert.Equal(t, float32(3), spans[0].PeakSignal)
	assert.Equal(t, 3, spans[0].PeakLevel)
	assert.False(t, spans[0].Open)
	assert.Equal(t, 200*time.Millisecond, spans[0].Duration())

	assert.Equal(t, 2, spans[1].Cycles)
	assert.True(t, spans[1].Open)
}

func TestTrace_ShortSpansHidden(t *testing.T) {
	tr := testTrace(10, 0.25)
	start := time.Now()

	// 100ms blip, then a 400ms touch.
	feed(tr, start, []bool{true, true, false, true, true, true, true, true, false})

	spans := tr.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, 5, spans[0].Cycles)
}

func TestTrace_SpansExpireWithWindow(t *testing.T) {
	tr := testTrace(1.0, 0)
	start := time.Now()

	touching := make([]bool, 30)
	touching[1] = true
	touching[2] = true
	feed(tr, start, touching)

	assert.Empty(t, tr.Spans())
}

func TestTrace_OnUpdate(t *testing.T) {
	tr := testTrace(10, 0)

	var gotCycles int
	var gotSpans int
	tr.OnUpdate(func(cycles []control.Cycle, spans []Span) {
		gotCycles = len(cycles)
		gotSpans = len(spans)
	})

	feed(tr, time.Now(), []bool{true, true, false})
	assert.Equal(t, 3, gotCycles)
	assert.Equal(t, 1, gotSpans)
}

func TestTrace_Clear(t *testing.T) {
	tr := testTrace(10, 0)
	feed(tr, time.Now(), []bool{true, true})

	tr.Clear()
	assert.Empty(t, tr.Cycles())
	assert.Empty(t, tr.Spans())
}

func TestTrace_Configure(t *testing.T) {
	tr := testTrace(10, 0)
	start := time.Now()

	feed(tr, start, []bool{true, true, false, false, false})
	require.Len(t, tr.Spans(), 1)

	tr.Configure(config.TraceConfig{WindowSeconds: 0.25, MinTouchDuration: 0.5})
	assert.Empty(t, tr.Spans(), "short span hidden after raising the minimum")

	tr.Add(control.Cycle{At: start.Add(500 * time.Millisecond)})
	assert.Len(t, tr.Cycles(), 3, "window shrinks with the next Add")
}
