package board

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
)

// Mock simulates a sensor board with an amplifier attached.
//
// The touch channel idles around the configured baseline with a small
// deterministic ripple. Once per TouchPeriod, during its last TouchDuration,
// the reading rises to baseline*TouchGain as if a finger were on the pad.
type Mock struct {
	cfg config.MockConfig

	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	startTime time.Time
	pot       uint16
	touch     *bool // Manual override of the touch schedule
	level     int
	writes    int
}

// NewMock creates a simulated board. A nil cfg uses the default mock settings.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	c := *cfg
	if c.SampleRate <= 0 {
		c.SampleRate = config.Default().Mock.SampleRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:     c,
		samples: make(chan RawSample, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
		pot:     cfg.Potentiometer,
	}
}

// Connect starts generating samples.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	if m.ctx.Err() != nil {
		return fmt.Errorf("mock board was closed")
	}

	m.connected = true
	m.startTime = time.Now()

	go m.generateSamples()

	return nil
}

// Close stops the generator and closes the samples channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false

	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan RawSample {
	return m.samples
}

// SetOutputLevel records the level. Every FailEvery-th write fails with a
// bus error.
func (m *Mock) SetOutputLevel(level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("mock: %w", control.ErrActuatorOffline)
	}
	if level < 0 || level > MaxLevel {
		return fmt.Errorf("level out of range: %d (0-%d)", level, MaxLevel)
	}

	m.writes++
	if m.cfg.FailEvery > 0 && m.writes%m.cfg.FailEvery == 0 {
		return fmt.Errorf("simulated amplifier bus error on write %d", m.writes)
	}

	m.level = level
	return nil
}

// IsConnected returns whether the mock is generating samples.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Level returns the last level accepted by the simulated amplifier.
func (m *Mock) Level() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// SetPotentiometer sets the simulated knob position.
func (m *Mock) SetPotentiometer(raw uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pot = raw
}

// SetTouch overrides the touch schedule: true holds a touch, false holds
// the pad untouched.
func (m *Mock) SetTouch(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch = &on
}

// ClearTouch returns to the periodic touch schedule.
func (m *Mock) ClearTouch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch = nil
}

func (m *Mock) generateSamples() {
	defer close(m.samples)

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			sample := m.generateSample(now)
			select {
			case m.samples <- sample:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

func (m *Mock) generateSample(now time.Time) RawSample {
	m.mu.RLock()
	elapsed := now.Sub(m.startTime)
	pot := m.pot
	var touching bool
	if m.touch != nil {
		touching = *m.touch
	} else {
		touching = m.scheduledTouch(elapsed)
	}
	m.mu.RUnlock()

	return RawSample{
		Timestamp: now,
		Touch:     m.touchReading(elapsed, touching),
		Pot:       pot,
	}
}

// scheduledTouch reports whether the periodic schedule has a finger on the
// pad at elapsed. The touch sits at the end of each period so that a
// calibration at start-up sees an idle pad.
func (m *Mock) scheduledTouch(elapsed time.Duration) bool {
	if m.cfg.TouchPeriod <= 0 || m.cfg.TouchDuration <= 0 {
		return false
	}
	phase := elapsed % m.cfg.TouchPeriod
	return phase >= m.cfg.TouchPeriod-m.cfg.TouchDuration
}

func (m *Mock) touchReading(elapsed time.Duration, touching bool) uint16 {
	value := float64(m.cfg.Baseline)
	if touching {
		value *= m.cfg.TouchGain
	}

	t := elapsed.Seconds()
	ripple := (math.Sin(t*37.0) + math.Cos(t*23.0)) * 0.5 * float64(m.cfg.Noise)
	value += ripple

	if value < 0 {
		value = 0
	} else if value > math.MaxUint16 {
		value = math.MaxUint16
	}
	return uint16(value)
}
