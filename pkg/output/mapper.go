// Package output maps a touch estimate onto a bounded actuator level.
package output

import (
	"fmt"
	"time"

	"github.com/itohio/touchamp/pkg/config"
)

// Reading is what a Mapper sees of one control cycle.
type Reading struct {
	Signal   float32   // Approximate capacitance in [0, max signal]
	Touching bool      // Raw reading at or above the threshold
	At       time.Time // Cycle timestamp
}

// Mapper turns a reading and the current level into the next level.
// Implementations always return a value in [0, level max].
type Mapper interface {
	Apply(r Reading, previous int) int
	Name() string
}

// New creates the Mapper selected by cfg.Policy.
func New(cfg config.OutputConfig) (Mapper, error) {
	switch cfg.Policy {
	case config.PolicyProportional, "":
		return NewProportional(cfg.MinCap, cfg.MaxCap, cfg.LevelMax), nil
	case config.PolicyIncremental:
		return NewIncremental(cfg.Step, cfg.MinInterval, cfg.LevelMax), nil
	default:
		return nil, fmt.Errorf("unknown output policy %q", cfg.Policy)
	}
}

// Retune applies cfg to m. A mapper already running cfg.Policy is updated in
// place, so the incremental rate gate stays closed across a reload; any
// other change builds a fresh mapper.
func Retune(m Mapper, cfg config.OutputConfig) (Mapper, error) {
	switch cur := m.(type) {
	case *Incremental:
		if cfg.Policy == config.PolicyIncremental {
			cur.Step = cfg.Step
			cur.MinInterval = cfg.MinInterval
			cur.LevelMax = cfg.LevelMax
			return cur, nil
		}
	case *Proportional:
		if cfg.Policy == config.PolicyProportional || cfg.Policy == "" {
			cur.MinCap = cfg.MinCap
			cur.MaxCap = cfg.MaxCap
			cur.LevelMax = cfg.LevelMax
			return cur, nil
		}
	}
	return New(cfg)
}

func clampLevel(level, levelMax int) int {
	if level < 0 {
		return 0
	}
	if level > levelMax {
		return levelMax
	}
	return level
}
