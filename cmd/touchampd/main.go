package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/itohio/touchamp/pkg/board"
	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
	"github.com/itohio/touchamp/pkg/logging"
	"github.com/itohio/touchamp/pkg/sample"
	"github.com/itohio/touchamp/pkg/telemetry"
)

func main() {
	var (
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		portFlag     = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		mockFlag     = flag.Bool("mock", false, "Use simulated board instead of serial port")
		policyFlag   = flag.String("policy", "", "Output policy override (proportional or incremental)")
		logLevelFlag = flag.String("log-level", "", "Log level override (error, warn, info, debug)")
	)
	flag.Parse()

	if err := run(*configFlag, overrides{
		port:     *portFlag,
		mock:     *mockFlag,
		policy:   *policyFlag,
		logLevel: *logLevelFlag,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "touchampd: %v\n", err)
		os.Exit(1)
	}
}

type overrides struct {
	port     string
	mock     bool
	policy   string
	logLevel string
}

func (o overrides) apply(cfg *config.Config) {
	if o.port != "" {
		cfg.Serial.Port = o.port
	}
	if o.policy != "" {
		cfg.Output.Policy = o.policy
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
}

func run(configPath string, o overrides) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dev board.Board
	if o.mock {
		dev = board.NewMock(&cfg.Mock)
		logger.Info("using simulated board")
	} else {
		dev = board.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, board.DefaultBufferSize)
	}
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("failed to connect to board: %w", err)
	}
	defer dev.Close()
	logger.Info("board connected", "port", cfg.Serial.Port, "mock", o.mock)

	tracker := sample.NewTracker(cfg.Signal.AverageSamples).Follow(dev.Samples())
	if err := tracker.WaitReady(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed waiting for board samples: %w", err)
	}

	opts := []control.Option{
		control.WithPotentiometer(tracker),
		control.WithLogger(logger),
	}
	if cfg.Amplifier.Enabled {
		opts = append(opts, control.WithActuator(dev))
	} else {
		logger.Info("amplifier disabled, levels are computed but not dispatched")
	}

	driver, err := control.New(cfg, tracker, opts...)
	if err != nil {
		return err
	}

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	if err := startTelemetry(ctx, &wg, cfg.Telemetry, driver, &current, logger); err != nil {
		return err
	}

	if changes, err := config.Watch(ctx, configPath); err != nil {
		logger.Warn("config hot reload disabled", "error", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for next := range changes {
				o.apply(next)
				if err := next.Validate(); err != nil {
					logger.Warn("ignoring config change", "error", err)
					continue
				}
				current.Store(next)
				driver.Reload(next)
			}
		}()
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	streamEnded := stopOnStreamEnd(runCtx, tracker.Done(), cancelRun, logger)

	err = driver.Run(runCtx)
	if streamEnded.Load() {
		return errors.New("board stream ended")
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func startTelemetry(ctx context.Context, wg *sync.WaitGroup, tcfg config.TelemetryConfig, driver *control.Driver, current *atomic.Pointer[config.Config], logger *slog.Logger) error {
	if tcfg.Listen != "" {
		srv := telemetry.NewServer(logger, telemetry.HubConfig{}, func() (string, int, int, int) {
			c := current.Load()
			return c.Output.Policy, c.Output.LevelMax, driver.Calibration().Baseline, driver.Level()
		})
		driver.OnCycle(srv.Publish)

		wg.Add(2)
		go func() {
			defer wg.Done()
			srv.Hub().Run(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, tcfg.Listen, tcfg.WSPath); err != nil {
				logger.Error("ws telemetry stopped", "error", err)
			}
		}()
	}

	if tcfg.MQTTBroker != "" {
		pub, err := telemetry.DialMQTT(tcfg, logger)
		if err != nil {
			return err
		}
		driver.OnCycle(pub.Publish)

		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Run(ctx)
		}()
	}

	return nil
}
