// Package touch turns raw capacitive-touch readings into a touch estimate.
//
// The sensor reports charge-timing counts that grow with touch strength but
// drift with the environment. A baseline is taken while the sensor is left
// alone; every cycle the baseline is scaled by a sensitivity multiplier to
// get a threshold, and readings between baseline and threshold are mapped
// linearly onto [0, max signal] as an approximate capacitance.
package touch
