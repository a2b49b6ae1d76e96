package touch

import (
	"math"

	"github.com/chewxy/math32"
)

// Threshold returns floor(baseline * multiplier). The product is taken in
// float64: float32 lands one count low for multipliers like 1.3.
func Threshold(baseline int, multiplier float64) int {
	return int(math.Floor(float64(baseline) * multiplier))
}

// Estimate converts a raw reading into an approximate capacitance in
// [0, maxSignal]. Readings at or below the baseline give 0, readings at or
// above the threshold give maxSignal. A degenerate range (threshold not above
// baseline) always gives 0.
func Estimate(raw uint16, baseline int, multiplier float64, maxSignal float32) float32 {
	threshold := Threshold(baseline, multiplier)

	clamped := int(raw)
	if clamped < baseline {
		clamped = baseline
	}

	delta := clamped - baseline
	span := threshold - baseline
	if span <= 0 {
		return 0
	}

	signal := float32(delta) / float32(span) * maxSignal
	if math32.IsNaN(signal) {
		return 0
	}

	return math32.Max(0, math32.Min(signal, maxSignal))
}

// Touching reports whether raw has reached the threshold. A degenerate
// range never counts as a touch, so a failed calibration cannot latch the
// output high.
func Touching(raw uint16, baseline int, multiplier float64) bool {
	threshold := Threshold(baseline, multiplier)
	if threshold <= baseline {
		return false
	}
	return int(raw) >= threshold
}
