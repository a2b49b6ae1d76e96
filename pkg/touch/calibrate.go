package touch

import (
	"context"
	"time"
)

// CalibrateOptions controls a baseline calibration run.
type CalibrateOptions struct {
	Rounds      int           // Number of samples to average
	SettleDelay time.Duration // Wait before the first sample (hands off the sensor)
	SampleDelay time.Duration // Pause between consecutive samples

	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnSample is called after each sample with its 1-based index.
	OnSample func(index, total int, raw uint16)
}

// Calibrate samples the untouched sensor and returns the integer mean of the
// readings. Zero rounds yields a zero baseline. The only error is ctx.Err()
// when the context is cancelled during one of the waits.
func Calibrate(ctx context.Context, read func() uint16, opts CalibrateOptions) (int, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	if err := sleep(ctx, opts.SettleDelay); err != nil {
		return 0, err
	}

	var sum uint64
	n := 0
	for i := 0; i < opts.Rounds; i++ {
		if i > 0 {
			if err := sleep(ctx, opts.SampleDelay); err != nil {
				return 0, err
			}
		}

		raw := read()
		sum += uint64(raw)
		n++

		if opts.OnSample != nil {
			opts.OnSample(i+1, opts.Rounds, raw)
		}
	}

	return Mean(sum, n), nil
}

// Mean returns floor(sum/n), or 0 when no samples were taken.
func Mean(sum uint64, n int) int {
	if n <= 0 {
		return 0
	}
	return int(sum / uint64(n))
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
