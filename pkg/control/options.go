package control

import (
	"log/slog"

	"github.com/zoobzio/clockz"

	"github.com/itohio/touchamp/pkg/output"
)

// Option configures a Driver.
type Option func(*Driver)

// WithPotentiometer sets the sensitivity knob. Without one the driver uses
// the fixed multiplier from the configuration.
func WithPotentiometer(p Potentiometer) Option {
	return func(d *Driver) {
		d.pot = p
	}
}

// WithActuator sets the output sink. Without one the loop still computes
// levels but never dispatches them. Pass an untyped nil, not a nil pointer,
// to run without an actuator.
func WithActuator(a Actuator) Option {
	return func(d *Driver) {
		d.actuator = a
	}
}

// WithMapper overrides the mapper built from the output configuration.
func WithMapper(m output.Mapper) Option {
	return func(d *Driver) {
		d.mapper = m
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithClock sets the clock used for timestamps and waits.
// Use this with clockz.NewFakeClock() in tests.
func WithClock(c clockz.Clock) Option {
	return func(d *Driver) {
		d.clock = c
	}
}

// WithLevel sets the starting output level.
func WithLevel(level int) Option {
	return func(d *Driver) {
		d.level = level
	}
}
