package main

import (
	"fmt"

	"github.com/itohio/touchamp/pkg/control"
)

// cycleStatus renders the latest cycle for the status bar.
func cycleStatus(c control.Cycle) string {
	touch := "idle"
	if c.Touching {
		touch = "TOUCH"
	}

	s := fmt.Sprintf("%s  raw %d  baseline %d  threshold %d  x%.2f  signal %.1f  %s %d",
		touch, c.Raw, c.Baseline, c.Threshold, c.Multiplier, c.Signal, c.Policy, c.Level)

	switch {
	case c.ActuatorError != "":
		s += "  amp: " + c.ActuatorError
	case !c.Dispatched:
		s += "  amp: not sent"
	}
	return s
}
