package main

import (
	"flag"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
	"github.com/itohio/touchamp/pkg/scope"
	"github.com/itohio/touchamp/pkg/trace"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use simulated board instead of serial port")
		policyFlag = flag.String("policy", "", "Output policy override (proportional or incremental)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *policyFlag != "" {
		cfg.Output.Policy = *policyFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	application := app.NewWithID("com.itohio.touchamp")

	window := application.NewWindow("Touch Amplifier")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		history:    trace.New(cfg.Trace),
		window:     window,
		useMock:    *mockFlag,
	}

	state.scopeWidget = scope.New(cfg)
	state.status = widget.NewLabel("Disconnected")

	// ~60 FPS is plenty for the scope.
	const updateInterval = 16 * time.Millisecond
	state.history.OnUpdate(func(cycles []control.Cycle, spans []trace.Span) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		var status string
		if len(cycles) > 0 {
			status = cycleStatus(cycles[len(cycles)-1])
		}

		fyne.Do(func() {
			state.scopeWidget.UpdateData(cycles, spans)
			if status != "" {
				state.status.SetText(status)
			}
		})
	})

	content := container.NewBorder(
		createToolbar(state),
		state.status,
		nil,
		nil,
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		state.disconnect()
	})
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	history    *trace.Trace
	window     fyne.Window
	useMock    bool
	chain      *controlChain // nil when disconnected

	scopeWidget    *scope.ScopeWidget
	status         *widget.Label
	connectBtn     *widget.Button
	recalibrateBtn *widget.Button
	touchBtn       *widget.Button
	potSlider      *widget.Slider
	mockTouch      bool // Simulated touch is held

	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the toolbar: connect, settings and recalibrate on the
// left, simulated board controls on the right.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("Connect", theme.LoginIcon(), func() {
		handleConnect(state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.recalibrateBtn = widget.NewButtonWithIcon("Recalibrate", theme.ViewRefreshIcon(), func() {
		if state.chain != nil {
			state.chain.driver.Recalibrate()
		}
	})
	state.recalibrateBtn.Disable()

	mockControls := createMockControls(state)

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, settingsBtn, state.recalibrateBtn),
		mockControls,
		nil,
	)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.chain != nil {
		state.disconnect()
		return
	}

	chain, err := startChain(state.cfg, state.useMock, state.history, func(lost *controlChain) {
		fyne.Do(func() {
			if state.chain != lost {
				return
			}
			state.disconnect()
			state.status.SetText("Board disconnected")
		})
	})
	if err != nil {
		showError(state, err)
		return
	}
	state.chain = chain

	state.connectBtn.SetText("Disconnect")
	state.connectBtn.SetIcon(theme.LogoutIcon())
	state.recalibrateBtn.Enable()
	state.status.SetText("Calibrating, keep hands off the pad")
	updateMockControls(state)
}

func (state *appState) disconnect() {
	if state.chain == nil {
		return
	}
	state.chain.close()
	state.chain = nil

	state.connectBtn.SetText("Connect")
	state.connectBtn.SetIcon(theme.LoginIcon())
	state.recalibrateBtn.Disable()
	state.status.SetText("Disconnected")
	updateMockControls(state)
}
