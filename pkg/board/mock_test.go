package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
)

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		Baseline:      1000,
		Noise:         8,
		TouchGain:     1.8,
		TouchDuration: 3 * time.Second,
		TouchPeriod:   10 * time.Second,
		Potentiometer: 12345,
		SampleRate:    5 * time.Millisecond,
	}
}

func TestMock_ScheduledTouch(t *testing.T) {
	m := NewMock(testMockConfig())

	tests := []struct {
		elapsed time.Duration
		want    bool
	}{
		{elapsed: 0, want: false},
		{elapsed: 4 * time.Second, want: false},
		{elapsed: 6999 * time.Millisecond, want: false},
		{elapsed: 7 * time.Second, want: true},
		{elapsed: 9999 * time.Millisecond, want: true},
		{elapsed: 10 * time.Second, want: false},
		{elapsed: 18 * time.Second, want: true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, m.scheduledTouch(tt.elapsed), "elapsed=%v", tt.elapsed)
	}
}

func TestMock_ScheduleDisabled(t *testing.T) {
	cfg := testMockConfig()
	cfg.TouchPeriod = 0
	m := NewMock(cfg)

	assert.False(t, m.scheduledTouch(5*time.Second))
}

func TestMock_TouchReading(t *testing.T) {
	m := NewMock(testMockConfig())

	for i := 0; i < 200; i++ {
		elapsed := time.Duration(i) * 37 * time.Millisecond

		idle := m.touchReading(elapsed, false)
		assert.InDelta(t, 1000, int(idle), 8, "idle at %v", elapsed)

		touched := m.touchReading(elapsed, true)
		assert.InDelta(t, 1800, int(touched), 8, "touched at %v", elapsed)
	}
}

func TestMock_TouchReadingSaturates(t *testing.T) {
	cfg := testMockConfig()
	cfg.Baseline = 60000
	cfg.TouchGain = 2
	m := NewMock(cfg)

	assert.Equal(t, uint16(65535), m.touchReading(time.Second, true))
}

func TestMock_ManualTouchOverride(t *testing.T) {
	m := NewMock(testMockConfig())
	m.startTime = time.Now()

	m.SetTouch(true)
	s := m.generateSample(m.startTime)
	assert.Greater(t, s.Touch, uint16(1500))
	assert.Equal(t, uint16(12345), s.Pot)

	m.SetTouch(false)
	s = m.generateSample(m.startTime.Add(8 * time.Second))
	assert.Less(t, s.Touch, uint16(1100))

	m.ClearTouch()
	s = m.generateSample(m.startTime.Add(8 * time.Second))
	assert.Greater(t, s.Touch, uint16(1500))
}

func TestMock_SetPotentiometer(t *testing.T) {
	m := NewMock(testMockConfig())
	m.SetPotentiometer(65535)

	s := m.generateSample(time.Now())
	assert.Equal(t, uint16(65535), s.Pot)
}

func TestMock_SetOutputLevel(t *testing.T) {
	m := NewMock(testMockConfig())

	err := m.SetOutputLevel(10)
	assert.ErrorIs(t, err, control.ErrActuatorOffline)

	require.NoError(t, m.Connect())
	defer m.Close()

	require.NoError(t, m.SetOutputLevel(42))
	assert.Equal(t, 42, m.Level())

	assert.Error(t, m.SetOutputLevel(-1))
	assert.Error(t, m.SetOutputLevel(256))
	assert.Equal(t, 42, m.Level())
}

func TestMock_FailEvery(t *testing.T) {
	cfg := testMockConfig()
	cfg.FailEvery = 3
	m := NewMock(cfg)
	require.NoError(t, m.Connect())
	defer m.Close()

	var failures int
	for i := 1; i <= 9; i++ {
		err := m.SetOutputLevel(i)
		if err != nil {
			failures++
			assert.NotErrorIs(t, err, control.ErrActuatorOffline)
		}
	}
	assert.Equal(t, 3, failures)
	assert.Equal(t, 8, m.Level())
}

func TestMock_Connect(t *testing.T) {
	m := NewMock(nil)

	assert.False(t, m.IsConnected())
	require.NoError(t, m.Connect())
	assert.True(t, m.IsConnected())
	assert.Error(t, m.Connect(), "second connect should fail")

	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())
	assert.NoError(t, m.Close())
	assert.Error(t, m.Connect(), "closed mock cannot reconnect")
}

func TestMock_ZeroSampleRateUsesDefault(t *testing.T) {
	cfg := testMockConfig()
	cfg.SampleRate = 0
	m := NewMock(cfg)

	assert.Equal(t, config.Default().Mock.SampleRate, m.cfg.SampleRate)
	assert.Equal(t, time.Duration(0), cfg.SampleRate, "caller config is not modified")
}
