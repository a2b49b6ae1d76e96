//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 2  // Touch and pot read interval
	NUM_SAMPLES        = 10 // Readings averaged per output line (one line every 20ms)

	// Charge-timing touch configuration
	TOUCH_CYCLES    = 8     // Charge/discharge cycles summed per reading
	TOUCH_MAX_COUNT = 65535 // Reading reported when the pad never discharges

	// Amplifier (MAX9744 over I2C)
	AMP_ADDRESS   = 0x4B
	AMP_LEVEL_MAX = 63

	// Pins
	PIN_TOUCH = machine.A2 // Pad with a 1M pull-down
	PIN_POT   = machine.A1

	// Serial configuration
	// Format "unix_micros,touch,pot\n", e.g. "1234567890123456,65535,65535\n" = ~30 bytes.
	// 50 lines/sec * 30 bytes = 1,500 bytes/sec, 115200 baud gives ~7.7x headroom.
	UART_BAUD_RATE = 115200
)
