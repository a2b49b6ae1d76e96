// Package sample turns the board's sample stream into the point reads the
// control loop expects.
package sample

import "github.com/itohio/touchamp/pkg/board"

// Average averages touch and pot readings, rounding to nearest. The most
// recent timestamp is kept.
func Average(samples []board.RawSample) board.RawSample {
	if len(samples) == 0 {
		return board.RawSample{}
	}

	var sumTouch, sumPot uint64
	for _, s := range samples {
		sumTouch += uint64(s.Touch)
		sumPot += uint64(s.Pot)
	}

	n := float64(len(samples))
	return board.RawSample{
		Timestamp: samples[len(samples)-1].Timestamp,
		Touch:     uint16(float64(sumTouch)/n + 0.5), // Round to nearest
		Pot:       uint16(float64(sumPot)/n + 0.5),
	}
}
