package control

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/touchamp/pkg/config"
)

type fakeSensor struct {
	raw   atomic.Uint32
	reads atomic.Int64
}

func newFakeSensor(raw uint16) *fakeSensor {
	s := &fakeSensor{}
	s.raw.Store(uint32(raw))
	return s
}

func (s *fakeSensor) ReadRawTouch() uint16 {
	s.reads.Add(1)
	return uint16(s.raw.Load())
}

func (s *fakeSensor) Set(raw uint16) {
	s.raw.Store(uint32(raw))
}

type fakePot struct {
	raw uint16
}

func (p *fakePot) ReadPotentiometer() uint16 {
	return p.raw
}

type fakeActuator struct {
	mu     sync.Mutex
	levels []int
	err    error
}

func (a *fakeActuator) SetOutputLevel(level int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.levels = append(a.levels, level)
	return nil
}

func (a *fakeActuator) SetError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

func (a *fakeActuator) Levels() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, len(a.levels))
	copy(out, a.levels)
	return out
}

var errBus = errors.New("i2c bus error")

func offlineError() error {
	return fmt.Errorf("failed to write level: %w", ErrActuatorOffline)
}

// testConfig returns a configuration with every wait disabled.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Calibration.Rounds = 10
	cfg.Calibration.SettleDelay = 0
	cfg.Calibration.SampleDelay = 0
	cfg.Loop.Debounce = 0
	cfg.Loop.Cadence = 0
	cfg.Sensitivity.Source = config.SensitivityFixed
	cfg.Sensitivity.FixedMultiplier = 1.5
	return cfg
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

type atomicCounter struct {
	n atomic.Int64
}

func (c *atomicCounter) inc()       { c.n.Add(1) }
func (c *atomicCounter) get() int64 { return c.n.Load() }

type lastCycle struct {
	mu sync.Mutex
	c  Cycle
}

func (l *lastCycle) set(c Cycle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c = c
}

func (l *lastCycle) get() Cycle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c
}
