// Package control runs the touch-to-output control loop.
//
// A Driver owns the calibration state and the current output level. Both are
// written only from the goroutine that calls Run (or Step); other goroutines
// can read snapshots and send recalibration or reload requests, which are
// applied at the next cycle boundary.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/output"
	"github.com/itohio/touchamp/pkg/touch"
)

// Driver is the control loop.
type Driver struct {
	cfg      *config.Config
	sensor   TouchSensor
	pot      Potentiometer
	actuator Actuator
	mapper   output.Mapper
	logger   *slog.Logger
	clock    clockz.Clock

	mu    sync.RWMutex
	state touch.CalibrationState
	level int

	recalibrate chan struct{}
	reload      chan *config.Config

	callbacksMu sync.Mutex
	callbacks   []func(Cycle)
}

// New creates a driver. The configuration is used as is; validate it first.
func New(cfg *config.Config, sensor TouchSensor, opts ...Option) (*Driver, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if sensor == nil {
		return nil, errors.New("touch sensor is required")
	}

	d := &Driver{
		cfg:         cfg.Clone(),
		sensor:      sensor,
		logger:      slog.Default(),
		clock:       clockz.RealClock,
		recalibrate: make(chan struct{}, 1),
		reload:      make(chan *config.Config, 1),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.mapper == nil {
		m, err := output.New(d.cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to create output mapper: %w", err)
		}
		d.mapper = m
	}

	d.level = clamp(d.level, 0, d.cfg.Output.LevelMax)

	return d, nil
}

// OnCycle registers a callback invoked after every cycle from the loop's
// goroutine. Callbacks must not block.
func (d *Driver) OnCycle(fn func(Cycle)) {
	d.callbacksMu.Lock()
	defer d.callbacksMu.Unlock()
	d.callbacks = append(d.callbacks, fn)
}

// Level returns the current output level.
func (d *Driver) Level() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.level
}

// Calibration returns the current calibration state.
func (d *Driver) Calibration() touch.CalibrationState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Recalibrate asks the loop to recalibrate before its next cycle. It never
// blocks; repeated requests before the loop gets to them collapse into one.
func (d *Driver) Recalibrate() {
	select {
	case d.recalibrate <- struct{}{}:
	default:
	}
}

// Reload hands a new configuration to the loop. Only the latest pending
// configuration is applied.
func (d *Driver) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	for {
		select {
		case d.reload <- cfg:
			return
		default:
		}
		select {
		case <-d.reload:
		default:
		}
	}
}

// Run calibrates and then runs cycles until ctx is done, returning ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("Control loop starting",
		"policy", d.mapper.Name(),
		"actuator", d.actuator != nil,
		"potentiometer", d.pot != nil && d.cfg.Sensitivity.Source == config.SensitivityPotentiometer)

	if err := d.Calibrate(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Control loop stopping")
			return ctx.Err()
		case cfg := <-d.reload:
			d.applyConfig(cfg)
		case <-d.recalibrate:
			d.logger.Info("Recalibration requested")
			if err := d.Calibrate(ctx); err != nil {
				return err
			}
		default:
		}

		if _, err := d.Step(ctx); err != nil {
			return err
		}

		if err := d.wait(ctx, d.cfg.Loop.Cadence); err != nil {
			return err
		}
	}
}

// Calibrate samples the untouched sensor and replaces the baseline.
func (d *Driver) Calibrate(ctx context.Context) error {
	c := d.cfg.Calibration
	d.logger.Info("Calibrating, keep hands off the sensor",
		"settle", c.SettleDelay,
		"rounds", c.Rounds)

	baseline, err := touch.Calibrate(ctx, d.sensor.ReadRawTouch, touch.CalibrateOptions{
		Rounds:      c.Rounds,
		SettleDelay: c.SettleDelay,
		SampleDelay: c.SampleDelay,
		Sleep:       d.wait,
		OnSample: func(index, total int, raw uint16) {
			d.logger.Debug("Calibration sample", "index", index, "total", total, "raw", raw)
		},
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.state = touch.CalibrationState{
		Baseline:     baseline,
		Rounds:       c.Rounds,
		CalibratedAt: d.clock.Now(),
	}
	d.mu.Unlock()

	if r, ok := d.mapper.(interface{ Reset() }); ok {
		r.Reset()
	}

	if baseline == 0 {
		d.logger.Warn("Calibration produced a zero baseline, signal will stay at zero", "rounds", c.Rounds)
	} else {
		d.logger.Info("Calibration complete", "baseline", baseline)
	}
	return nil
}

// Step runs a single cycle: read the knob and the sensor, wait out the
// debounce delay, estimate the signal, map it to a level and dispatch it.
// The only error is ctx.Err() when cancelled during the debounce wait.
func (d *Driver) Step(ctx context.Context) (Cycle, error) {
	cfg := d.cfg

	var pot uint16
	multiplier := cfg.Sensitivity.FixedMultiplier
	if d.pot != nil && cfg.Sensitivity.Source == config.SensitivityPotentiometer {
		pot = d.pot.ReadPotentiometer()
		multiplier = touch.Sensitivity(int(pot), cfg.Sensitivity.PotMax,
			cfg.Sensitivity.MinMultiplier, cfg.Sensitivity.MaxMultiplier)
	}

	raw := d.sensor.ReadRawTouch()

	if err := d.wait(ctx, cfg.Loop.Debounce); err != nil {
		return Cycle{}, err
	}

	d.mu.RLock()
	state := d.state
	previous := d.level
	d.mu.RUnlock()

	cycle := Cycle{
		At:         d.clock.Now(),
		Raw:        raw,
		Pot:        pot,
		Multiplier: multiplier,
		Baseline:   state.Baseline,
		Threshold:  state.Threshold(multiplier),
		Signal:     state.Estimate(raw, multiplier, cfg.Signal.MaxSignal),
		Touching:   state.Touching(raw, multiplier),
		Policy:     d.mapper.Name(),
	}

	cycle.Level = d.mapper.Apply(output.Reading{
		Signal:   cycle.Signal,
		Touching: cycle.Touching,
		At:       cycle.At,
	}, previous)

	d.mu.Lock()
	d.level = cycle.Level
	d.mu.Unlock()

	d.dispatch(&cycle)

	d.logger.Debug("Cycle",
		"pot", cycle.Pot,
		"multiplier", cycle.Multiplier,
		"raw", cycle.Raw,
		"threshold", cycle.Threshold,
		"signal", cycle.Signal,
		"touching", cycle.Touching,
		"level", cycle.Level)

	d.notify(cycle)

	return cycle, nil
}

func (d *Driver) dispatch(c *Cycle) {
	if d.actuator == nil {
		return
	}

	err := d.actuator.SetOutputLevel(c.Level)
	switch {
	case err == nil:
		c.Dispatched = true
	case errors.Is(err, ErrActuatorOffline):
		c.ActuatorError = err.Error()
		d.logger.Warn("Actuator offline, skipping update", "level", c.Level)
	default:
		c.ActuatorError = err.Error()
		d.logger.Error("Failed to set output level", "level", c.Level, "error", err)
	}
}

func (d *Driver) notify(c Cycle) {
	d.callbacksMu.Lock()
	callbacks := make([]func(Cycle), len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.callbacksMu.Unlock()

	for _, fn := range callbacks {
		fn(c)
	}
}

func (d *Driver) applyConfig(cfg *config.Config) {
	old := d.cfg
	d.cfg = cfg.Clone()

	if d.cfg.Output != old.Output {
		m, err := output.Retune(d.mapper, d.cfg.Output)
		if err != nil {
			d.logger.Error("Keeping previous output policy", "error", err)
			d.cfg.Output = old.Output
		} else {
			d.mapper = m
		}
	}

	d.mu.Lock()
	d.level = clamp(d.level, 0, d.cfg.Output.LevelMax)
	d.mu.Unlock()

	d.logger.Info("Configuration reloaded",
		"policy", d.mapper.Name(),
		"sensitivity", d.cfg.Sensitivity.Source,
		"cadence", d.cfg.Loop.Cadence)

	if d.cfg.Calibration != old.Calibration {
		d.logger.Info("Calibration settings changed, use recalibrate to apply")
	}
}

func (d *Driver) wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}

	timer := d.clock.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
