package sample

import (
	"context"
	"errors"
	"sync"

	"github.com/itohio/touchamp/pkg/board"
	"github.com/itohio/touchamp/pkg/control"
)

// ErrClosed is returned by WaitReady when the input closed before any sample.
var ErrClosed = errors.New("sample stream closed")

var (
	_ control.TouchSensor   = (*Tracker)(nil)
	_ control.Potentiometer = (*Tracker)(nil)
)

// Tracker keeps the most recent board samples and serves averaged reads.
// One goroutine feeds it (Follow or Push); any number may read.
type Tracker struct {
	window int

	mu      sync.RWMutex
	samples []board.RawSample // Oldest first, at most window long
	count   uint64
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewTracker creates a tracker averaging over the last window samples.
// A window below 1 means the latest sample only.
func NewTracker(window int) *Tracker {
	if window < 1 {
		window = 1
	}
	return &Tracker{
		window:  window,
		samples: make([]board.RawSample, 0, window),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Follow consumes in on a new goroutine until it is closed. Once in closes
// the held samples are dropped, so reads fall back to 0 instead of replaying
// the last reading.
func (t *Tracker) Follow(in <-chan board.RawSample) *Tracker {
	go func() {
		defer close(t.done)
		for s := range in {
			t.Push(s)
		}
		t.mu.Lock()
		t.samples = t.samples[:0]
		t.mu.Unlock()
	}()
	return t
}

// Push records a sample.
func (t *Tracker) Push(s board.RawSample) {
	t.mu.Lock()
	if len(t.samples) == t.window {
		copy(t.samples, t.samples[1:])
		t.samples = t.samples[:t.window-1]
	}
	t.samples = append(t.samples, s)
	t.count++
	t.mu.Unlock()

	t.once.Do(func() { close(t.ready) })
}

// Done is closed when the followed channel is closed.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// WaitReady blocks until the first sample arrives, the input closes or ctx
// is done.
func (t *Tracker) WaitReady(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-t.done:
		select {
		case <-t.ready:
			return nil
		default:
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the averaged window and whether any sample was seen.
func (t *Tracker) Current() (board.RawSample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.samples) == 0 {
		return board.RawSample{}, false
	}
	return Average(t.samples), true
}

// Count returns the number of samples pushed so far.
func (t *Tracker) Count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// ReadRawTouch returns the averaged touch reading, 0 before the first sample
// and after the followed stream ends. The loop reads 0 as "not touching".
func (t *Tracker) ReadRawTouch() uint16 {
	s, _ := t.Current()
	return s.Touch
}

// ReadPotentiometer returns the averaged knob reading, 0 before the first
// sample and after the followed stream ends.
func (t *Tracker) ReadPotentiometer() uint16 {
	s, _ := t.Current()
	return s.Pot
}
