package touch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func TestCalibrate_ConstantReading(t *testing.T) {
	calls := 0
	read := func() uint16 {
		calls++
		return 200
	}

	baseline, err := Calibrate(context.Background(), read, CalibrateOptions{
		Rounds: 50,
		Sleep:  noSleep,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, baseline)
	assert.Equal(t, 50, calls)
}

func TestCalibrate_FloorsMean(t *testing.T) {
	values := []uint16{100, 101, 101}
	i := 0
	read := func() uint16 {
		v := values[i]
		i++
		return v
	}

	baseline, err := Calibrate(context.Background(), read, CalibrateOptions{
		Rounds: 3,
		Sleep:  noSleep,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, baseline) // 302/3 = 100.67
}

func TestCalibrate_ZeroRounds(t *testing.T) {
	read := func() uint16 {
		t.Fatal("sensor should not be read")
		return 0
	}

	baseline, err := Calibrate(context.Background(), read, CalibrateOptions{
		Rounds: 0,
		Sleep:  noSleep,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, baseline)
}

func TestCalibrate_MaxReadingsDoNotOverflow(t *testing.T) {
	read := func() uint16 { return 65535 }

	baseline, err := Calibrate(context.Background(), read, CalibrateOptions{
		Rounds: 1000,
		Sleep:  noSleep,
	})
	require.NoError(t, err)
	assert.Equal(t, 65535, baseline)
}

func TestCalibrate_SleepSequence(t *testing.T) {
	var sleeps []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	_, err := Calibrate(context.Background(), func() uint16 { return 1 }, CalibrateOptions{
		Rounds:      3,
		SettleDelay: 3 * time.Second,
		SampleDelay: 20 * time.Millisecond,
		Sleep:       sleep,
	})
	require.NoError(t, err)

	// Settle once, then a pause between each pair of samples.
	assert.Equal(t, []time.Duration{3 * time.Second, 20 * time.Millisecond, 20 * time.Millisecond}, sleeps)
}

func TestCalibrate_ReportsProgress(t *testing.T) {
	type progress struct {
		index, total int
		raw          uint16
	}
	var got []progress

	raw := uint16(10)
	_, err := Calibrate(context.Background(), func() uint16 { raw++; return raw }, CalibrateOptions{
		Rounds: 3,
		Sleep:  noSleep,
		OnSample: func(index, total int, r uint16) {
			got = append(got, progress{index, total, r})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []progress{{1, 3, 11}, {2, 3, 12}, {3, 3, 13}}, got)
}

func TestCalibrate_CancelledDuringSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	baseline, err := Calibrate(ctx, func() uint16 { return 100 }, CalibrateOptions{
		Rounds:      5,
		SettleDelay: time.Hour,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, baseline)
}

func TestCalibrate_RealSleep(t *testing.T) {
	start := time.Now()
	baseline, err := Calibrate(context.Background(), func() uint16 { return 321 }, CalibrateOptions{
		Rounds:      3,
		SettleDelay: 10 * time.Millisecond,
		SampleDelay: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, 321, baseline)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0, Mean(100, 0))
	assert.Equal(t, 33, Mean(100, 3))
	assert.Equal(t, 200, Mean(10000, 50))
}
