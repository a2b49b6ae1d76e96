package sample

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/touchamp/pkg/board"
	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
)

func TestTracker_EmptyReadsZero(t *testing.T) {
	tr := NewTracker(4)

	_, ok := tr.Current()
	assert.False(t, ok)
	assert.Equal(t, uint16(0), tr.ReadRawTouch())
	assert.Equal(t, uint16(0), tr.ReadPotentiometer())
}

func TestTracker_LatestOnly(t *testing.T) {
	tr := NewTracker(0)

	tr.Push(board.RawSample{Touch: 1000, Pot: 10})
	tr.Push(board.RawSample{Touch: 2000, Pot: 20})

	assert.Equal(t, uint16(2000), tr.ReadRawTouch())
	assert.Equal(t, uint16(20), tr.ReadPotentiometer())
	assert.Equal(t, uint64(2), tr.Count())
}

func TestTracker_SlidingWindow(t *testing.T) {
	tr := NewTracker(3)

	for _, v := range []uint16{100, 200, 300, 400, 500} {
		tr.Push(board.RawSample{Touch: v, Pot: v * 2})
	}

	// Window holds 300, 400, 500.
	assert.Equal(t, uint16(400), tr.ReadRawTouch())
	assert.Equal(t, uint16(800), tr.ReadPotentiometer())
	assert.Equal(t, uint64(5), tr.Count())
}

func TestTracker_Follow(t *testing.T) {
	in := make(chan board.RawSample, 10)
	tr := NewTracker(2).Follow(in)

	in <- board.RawSample{Touch: 1000}
	in <- board.RawSample{Touch: 1002}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.WaitReady(ctx))
	require.Eventually(t, func() bool { return tr.Count() == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, uint16(1001), tr.ReadRawTouch())

	close(in)
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not finish after input closed")
	}

	_, ok := tr.Current()
	assert.False(t, ok, "no reading once the stream ended")
	assert.Equal(t, uint16(0), tr.ReadRawTouch())
}

func TestTracker_WaitReady(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		tr := NewTracker(1).Follow(make(chan board.RawSample))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, tr.WaitReady(ctx), context.Canceled)
	})

	t.Run("closed before any sample", func(t *testing.T) {
		in := make(chan board.RawSample)
		close(in)
		tr := NewTracker(1).Follow(in)

		assert.ErrorIs(t, tr.WaitReady(context.Background()), ErrClosed)
	})

	t.Run("already has a sample", func(t *testing.T) {
		tr := NewTracker(1)
		tr.Push(board.RawSample{Touch: 1})
		assert.NoError(t, tr.WaitReady(context.Background()))
	})
}

func TestTracker_FollowsMockBoard(t *testing.T) {
	m := board.NewMock(nil)
	require.NoError(t, m.Connect())

	tr := NewTracker(4).Follow(m.Samples())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.WaitReady(ctx))
	assert.InDelta(t, 1000, int(tr.ReadRawTouch()), 10)

	require.NoError(t, m.Close())
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not finish after board closed")
	}
}

func TestTracker_LoopReleasesAfterStreamEnds(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration.Rounds = 5
	cfg.Calibration.SettleDelay = 0
	cfg.Calibration.SampleDelay = 0
	cfg.Loop.Debounce = 0
	cfg.Loop.Cadence = 0
	cfg.Sensitivity.Source = config.SensitivityFixed
	cfg.Sensitivity.FixedMultiplier = 1.5
	cfg.Output.Policy = config.PolicyIncremental
	cfg.Output.MinInterval = 0

	in := make(chan board.RawSample, 10)
	tr := NewTracker(1).Follow(in)

	in <- board.RawSample{Touch: 1000}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.WaitReady(ctx))

	d, err := control.New(cfg, tr, control.WithPotentiometer(tr))
	require.NoError(t, err)
	require.NoError(t, d.Calibrate(ctx))
	require.Equal(t, 1000, d.Calibration().Baseline)

	in <- board.RawSample{Touch: 2000}
	require.Eventually(t, func() bool { return tr.ReadRawTouch() == 2000 }, 2*time.Second, time.Millisecond)

	for i := 0; i < 3; i++ {
		c, err := d.Step(ctx)
		require.NoError(t, err)
		assert.True(t, c.Touching)
	}
	assert.Equal(t, 3*cfg.Output.Step, d.Level())

	// Pad still touched when the stream dies.
	close(in)
	<-tr.Done()

	for i := 0; i < 5; i++ {
		c, err := d.Step(ctx)
		require.NoError(t, err)
		assert.False(t, c.Touching, "a dead stream must not read as a held touch")
	}
	assert.Equal(t, 0, d.Level())
}
