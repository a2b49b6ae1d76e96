package control

import "errors"

// ErrActuatorOffline is wrapped by actuators that are not connected.
var ErrActuatorOffline = errors.New("actuator offline")

// TouchSensor provides raw capacitive-touch readings. Reads never fail; a
// sensor that has nothing new returns its last value.
type TouchSensor interface {
	ReadRawTouch() uint16
}

// Potentiometer provides raw sensitivity-knob readings.
type Potentiometer interface {
	ReadPotentiometer() uint16
}

// Actuator receives output level commands. A failed write is skipped for
// that cycle only.
type Actuator interface {
	SetOutputLevel(level int) error
}
