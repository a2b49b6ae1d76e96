package touch

import "time"

// CalibrationState holds the baseline of the most recent calibration run.
// It is owned by the control loop and replaced wholesale on recalibration.
type CalibrationState struct {
	Baseline     int
	Rounds       int
	CalibratedAt time.Time
}

// Calibrated reports whether a calibration run has completed.
func (s CalibrationState) Calibrated() bool {
	return !s.CalibratedAt.IsZero()
}

// Threshold returns the touch threshold for the given multiplier.
func (s CalibrationState) Threshold(multiplier float64) int {
	return Threshold(s.Baseline, multiplier)
}

// Estimate returns the approximate capacitance for raw.
func (s CalibrationState) Estimate(raw uint16, multiplier float64, maxSignal float32) float32 {
	return Estimate(raw, s.Baseline, multiplier, maxSignal)
}

// Touching reports whether raw counts as a touch.
func (s CalibrationState) Touching(raw uint16, multiplier float64) bool {
	return Touching(raw, s.Baseline, multiplier)
}
