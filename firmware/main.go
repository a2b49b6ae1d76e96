//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adcPot machine.ADC
	uart   = machine.UART0
	i2c    = machine.I2C0

	ampOnline bool
	ampLevel  int

	// Running sums and counts
	touchSum uint32
	potSum   uint32
	count    int

	lastRead time.Time

	// Serial buffer for reading command lines
	serialBuffer [8]byte
	serialPos    int
)

func main() {
	PIN_POT.Configure(machine.PinConfig{Mode: machine.PinInput})
	adcPot = machine.ADC{Pin: PIN_POT}
	adcPot.Configure(machine.ADCConfig{})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	if err := i2c.Configure(machine.I2CConfig{}); err == nil {
		ampOnline = setAmpLevel(0)
	}
	if !ampOnline {
		println("# amplifier not found")
	}

	lastRead = time.Now()

	for {
		now := time.Now()

		processSerial()

		if now.Sub(lastRead) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			touchSum += uint32(readTouch())
			potSum += uint32(adcPot.Get()) // 16-bit scaled
			count++
			lastRead = now
		}

		if count >= NUM_SAMPLES {
			outputAveragedValues()
			touchSum = 0
			potSum = 0
			count = 0
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// readTouch measures the pad by charge timing: drive it high, release it and
// count how long the pull-down takes to discharge it. A finger adds
// capacitance and the count grows.
func readTouch() uint16 {
	var total uint32
	for range TOUCH_CYCLES {
		PIN_TOUCH.Configure(machine.PinConfig{Mode: machine.PinOutput})
		PIN_TOUCH.High()
		PIN_TOUCH.Configure(machine.PinConfig{Mode: machine.PinInput})

		var n uint32
		for PIN_TOUCH.Get() && n < TOUCH_MAX_COUNT {
			n++
		}
		total += n
	}
	if total > TOUCH_MAX_COUNT {
		return TOUCH_MAX_COUNT
	}
	return uint16(total)
}

func outputAveragedValues() {
	n := uint32(count)
	if n == 0 {
		n = 1
	}
	touchAvg := touchSum / n
	potAvg := potSum / n

	timestampMicros := time.Now().UnixNano() / 1000

	// Output format: "unix_micros,touch,pot\n"
	print(timestampMicros)
	print(",")
	print(touchAvg)
	print(",")
	print(potAvg)
	print("\n")
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 1 && serialBuffer[0] == 'L' {
				handleLevelCommand(serialBuffer[1:serialPos])
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		// "L" followed by up to three digits
		switch {
		case serialPos == 0 && data == 'L':
		case serialPos > 0 && data >= '0' && data <= '9':
		default:
			serialPos = 0
			continue
		}
		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
	}
}

func handleLevelCommand(digits []byte) {
	if len(digits) > 3 {
		return
	}
	level := 0
	for _, d := range digits {
		level = level*10 + int(d-'0')
	}
	if level > AMP_LEVEL_MAX {
		level = AMP_LEVEL_MAX
	}
	if level == ampLevel && ampOnline {
		return
	}

	ampOnline = setAmpLevel(level)
	if !ampOnline {
		println("# amplifier write failed")
	}
}

// setAmpLevel writes the MAX9744 volume register.
func setAmpLevel(level int) bool {
	if err := i2c.Tx(AMP_ADDRESS, []byte{byte(level)}, nil); err != nil {
		return false
	}
	ampLevel = level
	return true
}
