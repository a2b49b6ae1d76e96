package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// createMockControls creates the simulated board controls: a button that
// holds a touch while toggled and a slider standing in for the knob.
func createMockControls(state *appState) fyne.CanvasObject {
	state.touchBtn = widget.NewButtonWithIcon("Touch", theme.RadioButtonIcon(), func() {
		handleTouchToggle(state)
	})

	state.potSlider = widget.NewSlider(0, 65535)
	state.potSlider.Step = 256
	state.potSlider.SetValue(float64(state.cfg.Mock.Potentiometer))
	state.potSlider.OnChanged = func(v float64) {
		if state.chain != nil && state.chain.mock != nil {
			state.chain.mock.SetPotentiometer(uint16(v))
		}
	}

	slider := container.NewGridWrap(fyne.NewSize(200, state.potSlider.MinSize().Height), state.potSlider)

	updateMockControls(state)
	return container.NewHBox(widget.NewLabel("Knob"), slider, state.touchBtn)
}

// handleTouchToggle holds or releases a simulated touch. Releasing returns the
// simulated board to its periodic touch schedule.
func handleTouchToggle(state *appState) {
	if state.chain == nil || state.chain.mock == nil {
		return
	}

	state.mockTouch = !state.mockTouch
	if state.mockTouch {
		state.chain.mock.SetTouch(true)
		state.touchBtn.SetIcon(theme.RadioButtonCheckedIcon())
		state.touchBtn.Importance = widget.HighImportance
	} else {
		state.chain.mock.ClearTouch()
		state.touchBtn.SetIcon(theme.RadioButtonIcon())
		state.touchBtn.Importance = widget.MediumImportance
	}
	state.touchBtn.Refresh()
}

// updateMockControls enables the simulated board controls only while a
// simulated board is connected.
func updateMockControls(state *appState) {
	if state.touchBtn == nil || state.potSlider == nil {
		return
	}

	if state.chain != nil && state.chain.mock != nil {
		state.chain.mock.SetPotentiometer(uint16(state.potSlider.Value))
		state.touchBtn.Enable()
		state.potSlider.Enable()
		return
	}

	state.mockTouch = false
	state.touchBtn.SetIcon(theme.RadioButtonIcon())
	state.touchBtn.Importance = widget.MediumImportance
	state.touchBtn.Disable()
	state.potSlider.Disable()
}
