package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fyne.io/fyne/v2/dialog"

	"github.com/itohio/touchamp/pkg/board"
	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
	"github.com/itohio/touchamp/pkg/logging"
	"github.com/itohio/touchamp/pkg/sample"
	"github.com/itohio/touchamp/pkg/trace"
)

// controlChain is a connected board, the driver running on it and the
// goroutine feeding its cycles into the trace.
type controlChain struct {
	device board.Board
	mock   *board.Mock // nil for a real board
	driver *control.Driver

	cancel     context.CancelFunc
	driverDone chan struct{}
	traceDone  chan struct{}
}

// startChain connects the board and starts the control loop. If the board
// stream ends on its own the loop is stopped and onLost, when set, is called
// with the chain from a background goroutine.
func startChain(cfg *config.Config, useMock bool, history *trace.Trace, onLost func(*controlChain)) (*controlChain, error) {
	chain := &controlChain{
		driverDone: make(chan struct{}),
		traceDone:  make(chan struct{}),
	}

	if useMock {
		chain.mock = board.NewMock(&cfg.Mock)
		chain.device = chain.mock
	} else {
		chain.device = board.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, board.DefaultBufferSize)
	}

	if err := chain.device.Connect(); err != nil {
		if useMock {
			return nil, fmt.Errorf("failed to connect to simulated board: %w", err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Serial.Port, err)
	}

	logger, err := logging.New(cfg.Logging.Level, nil)
	if err != nil {
		chain.device.Close()
		return nil, err
	}

	tracker := sample.NewTracker(cfg.Signal.AverageSamples).Follow(chain.device.Samples())

	opts := []control.Option{
		control.WithPotentiometer(tracker),
		control.WithLogger(logger),
	}
	if cfg.Amplifier.Enabled {
		opts = append(opts, control.WithActuator(chain.device))
	}

	driver, err := control.New(cfg, tracker, opts...)
	if err != nil {
		chain.device.Close()
		return nil, err
	}
	chain.driver = driver

	// Cycles are only emitted from the Run goroutine, which also closes
	// the channel once Run returns.
	cycles := make(chan control.Cycle, 100)
	driver.OnCycle(func(c control.Cycle) {
		select {
		case cycles <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	chain.cancel = cancel

	history.ResetShutdown()
	history.Clear()

	go func() {
		defer close(chain.traceDone)
		history.ProcessCycles(cycles)
	}()

	go func() {
		select {
		case <-tracker.Done():
			log.Printf("Board stream ended, stopping control loop")
			cancel()
			if onLost != nil {
				onLost(chain)
			}
		case <-ctx.Done():
		}
	}()

	go func() {
		defer close(chain.driverDone)
		defer close(cycles)

		if err := tracker.WaitReady(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("Board produced no samples: %v", err)
			}
			return
		}
		if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Control loop stopped: %v", err)
		}
	}()

	return chain, nil
}

// close stops the loop, closes the board and waits for the goroutines.
func (c *controlChain) close() {
	c.cancel()
	<-c.driverDone
	c.device.Close()
	<-c.traceDone
}

func showError(state *appState, err error) {
	log.Printf("%v", err)
	dialog.ShowError(err, state.window)
}
