package output

import "time"

var _ Mapper = (*Incremental)(nil)

// Incremental ramps the level up by Step while touching and down by Step
// otherwise, changing it at most once per MinInterval.
//
// The gate is stateful: the time of the last accepted update is remembered
// across calls. It is owned by a single control loop and is not safe for
// concurrent use.
type Incremental struct {
	Step        int
	MinInterval time.Duration
	LevelMax    int

	lastUpdate time.Time
}

// NewIncremental creates a rate-limited incremental mapper.
func NewIncremental(step int, minInterval time.Duration, levelMax int) *Incremental {
	return &Incremental{
		Step:        step,
		MinInterval: minInterval,
		LevelMax:    levelMax,
	}
}

func (m *Incremental) Name() string { return "incremental" }

// Apply returns previous unchanged while the gate is closed. The first call
// always passes the gate.
func (m *Incremental) Apply(r Reading, previous int) int {
	previous = clampLevel(previous, m.LevelMax)

	if !m.lastUpdate.IsZero() && r.At.Sub(m.lastUpdate) < m.MinInterval {
		return previous
	}
	m.lastUpdate = r.At

	if r.Touching {
		return clampLevel(previous+m.Step, m.LevelMax)
	}
	return clampLevel(previous-m.Step, m.LevelMax)
}

// Reset reopens the gate, e.g. after recalibration.
func (m *Incremental) Reset() {
	m.lastUpdate = time.Time{}
}
