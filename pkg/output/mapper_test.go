package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/touchamp/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		policy   string
		wantName string
		wantErr  bool
	}{
		{name: "proportional", policy: config.PolicyProportional, wantName: "proportional"},
		{name: "incremental", policy: config.PolicyIncremental, wantName: "incremental"},
		{name: "empty defaults to proportional", policy: "", wantName: "proportional"},
		{name: "unknown", policy: "logarithmic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Output
			cfg.Policy = tt.policy

			m, err := New(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, m.Name())
		})
	}
}

func TestNew_CarriesParameters(t *testing.T) {
	cfg := config.Default().Output
	cfg.Policy = config.PolicyIncremental
	cfg.Step = 5
	cfg.MinInterval = 250 * time.Millisecond
	cfg.LevelMax = 31

	m, err := New(cfg)
	require.NoError(t, err)

	inc, ok := m.(*Incremental)
	require.True(t, ok)
	assert.Equal(t, 5, inc.Step)
	assert.Equal(t, 250*time.Millisecond, inc.MinInterval)
	assert.Equal(t, 31, inc.LevelMax)
}

func TestRetune(t *testing.T) {
	inc := config.Default().Output
	inc.Policy = config.PolicyIncremental
	inc.Step = 2
	inc.MinInterval = time.Second

	prop := config.Default().Output

	tests := []struct {
		name     string
		from     config.OutputConfig
		to       func(c config.OutputConfig) config.OutputConfig
		wantName string
		inPlace  bool
	}{
		{
			name:     "incremental step change",
			from:     inc,
			to:       func(c config.OutputConfig) config.OutputConfig { c.Step = 4; return c },
			wantName: "incremental",
			inPlace:  true,
		},
		{
			name:     "proportional caps change",
			from:     prop,
			to:       func(c config.OutputConfig) config.OutputConfig { c.MaxCap = 50; return c },
			wantName: "proportional",
			inPlace:  true,
		},
		{
			name:     "incremental to proportional",
			from:     inc,
			to:       func(c config.OutputConfig) config.OutputConfig { c.Policy = config.PolicyProportional; return c },
			wantName: "proportional",
		},
		{
			name:     "proportional to incremental",
			from:     prop,
			to:       func(c config.OutputConfig) config.OutputConfig { c.Policy = config.PolicyIncremental; return c },
			wantName: "incremental",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.from)
			require.NoError(t, err)

			got, err := Retune(m, tt.to(tt.from))
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.Name())
			if tt.inPlace {
				assert.Same(t, m, got)
			} else {
				assert.NotSame(t, m, got)
			}
		})
	}
}

func TestRetune_KeepsIncrementalGate(t *testing.T) {
	m := NewIncremental(1, time.Second, 63)
	start := time.Unix(1000, 0)
	assert.Equal(t, 1, m.Apply(Reading{Touching: true, At: start}, 0))

	cfg := config.Default().Output
	cfg.Policy = config.PolicyIncremental
	cfg.Step = 1
	cfg.MinInterval = time.Second
	cfg.LevelMax = 31

	got, err := Retune(m, cfg)
	require.NoError(t, err)

	// Still inside the interval opened by the first update.
	assert.Equal(t, 1, got.Apply(Reading{Touching: true, At: start.Add(500 * time.Millisecond)}, 1))
	assert.Equal(t, 2, got.Apply(Reading{Touching: true, At: start.Add(time.Second)}, 1))
	assert.Equal(t, 31, m.LevelMax)
}

func TestRetune_UnknownPolicy(t *testing.T) {
	m := NewIncremental(1, 0, 63)
	cfg := config.Default().Output
	cfg.Policy = "bogus"

	_, err := Retune(m, cfg)
	assert.Error(t, err)
	assert.Equal(t, 63, m.LevelMax)
}
