package main

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// stopOnStreamEnd cancels the run when the board stream ends, so the loop
// never keeps driving the amplifier from a reading that is no longer live.
// The returned flag is set before cancel is called.
func stopOnStreamEnd(ctx context.Context, done <-chan struct{}, cancel context.CancelFunc, logger *slog.Logger) *atomic.Bool {
	ended := &atomic.Bool{}
	go func() {
		select {
		case <-done:
			ended.Store(true)
			logger.Error("board stream ended, stopping control loop")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ended
}
