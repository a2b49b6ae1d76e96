package output

import "github.com/chewxy/math32"

var _ Mapper = (*Proportional)(nil)

// Proportional maps the signal linearly from [MinCap, MaxCap] onto
// [0, LevelMax], rounding half up. The previous level is ignored.
type Proportional struct {
	MinCap   float32
	MaxCap   float32
	LevelMax int
}

// NewProportional creates a proportional mapper.
func NewProportional(minCap, maxCap float32, levelMax int) *Proportional {
	return &Proportional{
		MinCap:   minCap,
		MaxCap:   maxCap,
		LevelMax: levelMax,
	}
}

func (p *Proportional) Name() string { return "proportional" }

// Apply returns round(clamp((signal-MinCap)/(MaxCap-MinCap), 0, 1) * LevelMax).
// An empty cap range always gives 0.
func (p *Proportional) Apply(r Reading, _ int) int {
	span := p.MaxCap - p.MinCap
	if span <= 0 || p.LevelMax <= 0 {
		return 0
	}

	ratio := (r.Signal - p.MinCap) / span
	if math32.IsNaN(ratio) {
		return 0
	}
	ratio = math32.Max(0, math32.Min(1, ratio))

	level := int(math32.Floor(ratio*float32(p.LevelMax) + 0.5))
	return clampLevel(level, p.LevelMax)
}
