package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/touchamp/pkg/board"
	"github.com/itohio/touchamp/pkg/config"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createCalibrationTab(state),
		createSensitivityTab(state),
		createOutputTab(state),
		createLoopTab(state),
		createTraceTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// applySettings validates next, saves it and hands it to the running loop.
// The running loop picks tunables up at its next cycle; serial and mock
// changes take effect on the next connect.
func applySettings(state *appState, next *config.Config) {
	if err := next.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := next.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return
	}

	state.cfg = next
	state.scopeWidget.Configure(next)
	state.history.Configure(next.Trace)
	if state.chain != nil {
		state.chain.driver.Reload(next.Clone())
	}
}

func parseFloat32(text string, dst *float32) {
	if v, err := strconv.ParseFloat(text, 32); err == nil {
		*dst = float32(v)
	}
}

func parseFloat64(text string, dst *float64) {
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		*dst = v
	}
}

func parseInt(text string, dst *int) {
	if v, err := strconv.Atoi(text); err == nil {
		*dst = v
	}
}

func parseDuration(text string, dst *time.Duration) {
	if v, err := time.ParseDuration(text); err == nil {
		*dst = v
	}
}

func parseUint16(text string, dst *uint16) {
	if v, err := strconv.ParseUint(text, 10, 16); err == nil {
		*dst = uint16(v)
	}
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := board.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Display name to port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			next := state.cfg.Clone()
			if portSelect.Selected != "" {
				selected := portMap[portSelect.Selected]
				if selected == "" {
					selected = portSelect.Selected
				}
				next.Serial.Port = selected
			}
			parseInt(baudEntry.Text, &next.Serial.BaudRate)

			changed := next.Serial != state.cfg.Serial
			applySettings(state, next)

			// A new port needs a new connection.
			if changed && state.chain != nil && state.chain.mock == nil {
				state.disconnect()
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createCalibrationTab creates the Calibration configuration tab.
func createCalibrationTab(state *appState) *container.TabItem {
	roundsEntry := widget.NewEntry()
	roundsEntry.SetText(strconv.Itoa(state.cfg.Calibration.Rounds))

	settleEntry := widget.NewEntry()
	settleEntry.SetText(state.cfg.Calibration.SettleDelay.String())

	sampleEntry := widget.NewEntry()
	sampleEntry.SetText(state.cfg.Calibration.SampleDelay.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Rounds", Widget: roundsEntry},
			{Text: "Settle Delay", Widget: settleEntry},
			{Text: "Sample Delay", Widget: sampleEntry},
		},
		OnSubmit: func() {
			next := state.cfg.Clone()
			parseInt(roundsEntry.Text, &next.Calibration.Rounds)
			parseDuration(settleEntry.Text, &next.Calibration.SettleDelay)
			parseDuration(sampleEntry.Text, &next.Calibration.SampleDelay)
			applySettings(state, next)
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createSensitivityTab creates the Sensitivity configuration tab.
func createSensitivityTab(state *appState) *container.TabItem {
	sourceSelect := widget.NewRadioGroup([]string{config.SensitivityPotentiometer, config.SensitivityFixed}, nil)
	sourceSelect.Horizontal = true
	sourceSelect.SetSelected(state.cfg.Sensitivity.Source)

	minEntry := widget.NewEntry()
	minEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Sensitivity.MinMultiplier))

	maxEntry := widget.NewEntry()
	maxEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Sensitivity.MaxMultiplier))

	fixedEntry := widget.NewEntry()
	fixedEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Sensitivity.FixedMultiplier))

	maxSignalEntry := widget.NewEntry()
	maxSignalEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Signal.MaxSignal))

	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(state.cfg.Signal.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Source", Widget: sourceSelect},
			{Text: "Min Multiplier", Widget: minEntry},
			{Text: "Max Multiplier", Widget: maxEntry},
			{Text: "Fixed Multiplier", Widget: fixedEntry},
			{Text: "Max Signal (pF)", Widget: maxSignalEntry},
			{Text: "Average Samples", Widget: averageEntry},
		},
		OnSubmit: func() {
			next := state.cfg.Clone()
			if sourceSelect.Selected != "" {
				next.Sensitivity.Source = sourceSelect.Selected
			}
			parseFloat64(minEntry.Text, &next.Sensitivity.MinMultiplier)
			parseFloat64(maxEntry.Text, &next.Sensitivity.MaxMultiplier)
			parseFloat64(fixedEntry.Text, &next.Sensitivity.FixedMultiplier)
			parseFloat32(maxSignalEntry.Text, &next.Signal.MaxSignal)
			parseInt(averageEntry.Text, &next.Signal.AverageSamples)
			applySettings(state, next)
		},
	}

	return container.NewTabItem("Sensitivity", form)
}

// createOutputTab creates the Output policy configuration tab.
func createOutputTab(state *appState) *container.TabItem {
	policySelect := widget.NewRadioGroup([]string{config.PolicyProportional, config.PolicyIncremental}, nil)
	policySelect.Horizontal = true
	policySelect.SetSelected(state.cfg.Output.Policy)

	levelMaxEntry := widget.NewEntry()
	levelMaxEntry.SetText(strconv.Itoa(state.cfg.Output.LevelMax))

	minCapEntry := widget.NewEntry()
	minCapEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Output.MinCap))

	maxCapEntry := widget.NewEntry()
	maxCapEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Output.MaxCap))

	stepEntry := widget.NewEntry()
	stepEntry.SetText(strconv.Itoa(state.cfg.Output.Step))

	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Output.MinInterval.String())

	amplifierCheck := widget.NewCheck("Send levels to amplifier", nil)
	amplifierCheck.SetChecked(state.cfg.Amplifier.Enabled)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Policy", Widget: policySelect},
			{Text: "Level Max", Widget: levelMaxEntry},
			{Text: "Min Cap (pF)", Widget: minCapEntry},
			{Text: "Max Cap (pF)", Widget: maxCapEntry},
			{Text: "Step", Widget: stepEntry},
			{Text: "Min Interval", Widget: intervalEntry},
			{Text: "Amplifier", Widget: amplifierCheck},
		},
		OnSubmit: func() {
			next := state.cfg.Clone()
			if policySelect.Selected != "" {
				next.Output.Policy = policySelect.Selected
			}
			parseInt(levelMaxEntry.Text, &next.Output.LevelMax)
			parseFloat32(minCapEntry.Text, &next.Output.MinCap)
			parseFloat32(maxCapEntry.Text, &next.Output.MaxCap)
			parseInt(stepEntry.Text, &next.Output.Step)
			parseDuration(intervalEntry.Text, &next.Output.MinInterval)
			next.Amplifier.Enabled = amplifierCheck.Checked
			applySettings(state, next)
		},
	}

	return container.NewTabItem("Output", form)
}

// createLoopTab creates the Loop timing configuration tab.
func createLoopTab(state *appState) *container.TabItem {
	debounceEntry := widget.NewEntry()
	debounceEntry.SetText(state.cfg.Loop.Debounce.String())

	cadenceEntry := widget.NewEntry()
	cadenceEntry.SetText(state.cfg.Loop.Cadence.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Debounce", Widget: debounceEntry},
			{Text: "Cadence", Widget: cadenceEntry},
		},
		OnSubmit: func() {
			next := state.cfg.Clone()
			parseDuration(debounceEntry.Text, &next.Loop.Debounce)
			parseDuration(cadenceEntry.Text, &next.Loop.Cadence)
			applySettings(state, next)
		},
	}

	return container.NewTabItem("Loop", form)
}

// createTraceTab creates the Trace display configuration tab.
func createTraceTab(state *appState) *container.TabItem {
	windowEntry := widget.NewEntry()
	windowEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Trace.WindowSeconds))

	minTouchEntry := widget.NewEntry()
	minTouchEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Trace.MinTouchDuration))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowEntry},
			{Text: "Min Touch (seconds)", Widget: minTouchEntry},
		},
		OnSubmit: func() {
			next := state.cfg.Clone()
			if ws, err := strconv.ParseFloat(windowEntry.Text, 64); err == nil {
				next.Trace.WindowSeconds = ws
			}
			if mt, err := strconv.ParseFloat(minTouchEntry.Text, 64); err == nil {
				next.Trace.MinTouchDuration = mt
			}
			applySettings(state, next)
		},
	}

	return container.NewTabItem("Trace", form)
}

// createMockTab creates the simulated board configuration tab.
func createMockTab(state *appState) *container.TabItem {
	baselineEntry := widget.NewEntry()
	baselineEntry.SetText(strconv.Itoa(int(state.cfg.Mock.Baseline)))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(strconv.Itoa(int(state.cfg.Mock.Noise)))

	gainEntry := widget.NewEntry()
	gainEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.TouchGain))

	durationEntry := widget.NewEntry()
	durationEntry.SetText(state.cfg.Mock.TouchDuration.String())

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Mock.TouchPeriod.String())

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	failEntry := widget.NewEntry()
	failEntry.SetText(strconv.Itoa(state.cfg.Mock.FailEvery))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Baseline (raw)", Widget: baselineEntry},
			{Text: "Noise (raw)", Widget: noiseEntry},
			{Text: "Touch Gain", Widget: gainEntry},
			{Text: "Touch Duration", Widget: durationEntry},
			{Text: "Touch Period", Widget: periodEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
			{Text: "Fail Every N Writes", Widget: failEntry},
		},
		OnSubmit: func() {
			next := state.cfg.Clone()
			parseUint16(baselineEntry.Text, &next.Mock.Baseline)
			parseUint16(noiseEntry.Text, &next.Mock.Noise)
			if g, err := strconv.ParseFloat(gainEntry.Text, 64); err == nil {
				next.Mock.TouchGain = g
			}
			parseDuration(durationEntry.Text, &next.Mock.TouchDuration)
			parseDuration(periodEntry.Text, &next.Mock.TouchPeriod)
			parseDuration(sampleRateEntry.Text, &next.Mock.SampleRate)
			parseInt(failEntry.Text, &next.Mock.FailEvery)
			applySettings(state, next)
		},
	}

	return container.NewTabItem("Mock", form)
}
