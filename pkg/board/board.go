// Package board talks to the touch sensor board: a microcontroller that
// streams capacitive-touch and potentiometer readings and accepts amplifier
// level commands over a serial line.
package board

import (
	"time"

	"github.com/itohio/touchamp/pkg/control"
)

const (
	// DefaultBaudRate is the board's serial speed.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 100
	// MaxLevel is the largest level the line protocol can carry.
	MaxLevel = 255
)

// RawSample is one reading streamed by the board.
type RawSample struct {
	Timestamp time.Time
	Touch     uint16 // Capacitive charge-timing count
	Pot       uint16 // Sensitivity knob, 16-bit scaled ADC
}

// Board is a sensor board, real or simulated. It is also the amplifier sink.
type Board interface {
	control.Actuator

	Connect() error
	Close() error
	Samples() <-chan RawSample
	IsConnected() bool
}

var (
	_ Board = (*Serial)(nil)
	_ Board = (*Mock)(nil)
)
