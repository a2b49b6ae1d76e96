package board

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/touchamp/pkg/control"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a connection to the sensor board.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// NewSerial creates a board connection for the given port. Zero baud rate
// and buffer size select the defaults.
func NewSerial(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		samples:  make(chan RawSample, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}
	if d.ctx.Err() != nil {
		return fmt.Errorf("board on %s was closed", d.port)
	}

	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.read(port)

	return nil
}

// read runs the line reader on r. When the stream ends on its own (cable
// pulled, port error) the board goes offline so level writes fail with
// ErrActuatorOffline instead of hitting a dead port.
func (d *Serial) read(r io.Reader) {
	readSamples(d.ctx, r, d.samples)

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return
	}
	log.Printf("Board stream on %s ended", d.port)

	d.cancel()
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}
	d.connected = false
}

// Close closes the port and the samples channel. A closed Serial cannot be
// reconnected.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// Samples returns the channel for reading samples. It is closed once the
// reader stops.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// SetOutputLevel sends the amplifier level to the board.
func (d *Serial) SetOutputLevel(level int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("serial %s: %w", d.port, control.ErrActuatorOffline)
	}

	cmd, err := levelCommand(level)
	if err != nil {
		return err
	}

	if _, err := d.conn.Write(cmd); err != nil {
		return fmt.Errorf("failed to send level command: %w", err)
	}

	return nil
}

// IsConnected returns whether the port is open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// levelCommand formats a level command: "L<level>\n".
func levelCommand(level int) ([]byte, error) {
	if level < 0 || level > MaxLevel {
		return nil, fmt.Errorf("level out of range: %d (0-%d)", level, MaxLevel)
	}
	return []byte("L" + strconv.Itoa(level) + "\n"), nil
}

// readSamples parses lines from r into out until r fails or ctx is done,
// then closes out.
func readSamples(ctx context.Context, r io.Reader, out chan<- RawSample) {
	defer close(out)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readSamples: %v", r)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sample, err := parseLine(line)
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", line, err)
			continue
		}

		select {
		case out <- sample:
		case <-ctx.Done():
			return
		default:
			log.Printf("Samples channel full, dropping sample")
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		log.Printf("Error reading from serial port: %v", err)
	}
}

// parseLine parses a board line into a RawSample.
// Format: unix_micros,touch,pot
// Example: 1234567890123,1532,40211
func parseLine(line string) (RawSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return RawSample{}, fmt.Errorf("invalid line format: expected 3 comma-separated values, got %d", len(parts))
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	touch, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid touch reading: %w", err)
	}

	pot, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid potentiometer reading: %w", err)
	}

	return RawSample{
		Timestamp: time.UnixMicro(micros),
		Touch:     uint16(touch),
		Pot:       uint16(pot),
	}, nil
}
