package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itohio/touchamp/pkg/control"
)

// HubConfig sizes the hub. Zero values select defaults.
type HubConfig struct {
	ViewerQueue int // Frames buffered per viewer
	CycleQueue  int // Cycles waiting to be encoded
	MaxLag      int // Consecutive frames a viewer may miss before it is dropped
}

func (c HubConfig) withDefaults() HubConfig {
	if c.ViewerQueue <= 0 {
		c.ViewerQueue = 32
	}
	if c.CycleQueue <= 0 {
		c.CycleQueue = 128
	}
	if c.MaxLag <= 0 {
		c.MaxLag = 8
	}
	return c
}

// HubStats counts cycles seen by the hub.
type HubStats struct {
	Viewers   int
	Published uint64 // Cycles encoded and fanned out
	Dropped   uint64 // Cycles lost to a full hub queue plus frames skipped for lagging viewers
}

// Hub fans control cycles out to websocket viewers. Each cycle is encoded
// once on the Run goroutine. A viewer that falls behind skips frames; one
// that misses more than MaxLag in a row is disconnected. A new viewer
// first receives the latest cycle so it has something to draw.
type Hub struct {
	logger *slog.Logger
	cfg    HubConfig

	cycles chan control.Cycle
	joins  chan *viewer
	leaves chan *viewer

	mu      sync.Mutex
	viewers map[*viewer]struct{}

	stopped chan struct{}

	latest    []byte // Owned by Run
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		logger:  logger,
		cfg:     cfg,
		cycles:  make(chan control.Cycle, cfg.CycleQueue),
		joins:   make(chan *viewer, 16),
		leaves:  make(chan *viewer, 16),
		viewers: make(map[*viewer]struct{}),
		stopped: make(chan struct{}),
	}
}

// Publish queues a cycle for the viewers. It never blocks, so it can be
// registered directly with Driver.OnCycle.
func (h *Hub) Publish(c control.Cycle) {
	select {
	case h.cycles <- c:
	default:
		h.dropped.Add(1)
		h.logger.Debug("ws cycle queue full, dropping cycle", "level", c.Level)
	}
}

// Run serves joins, leaves and cycles until ctx is cancelled, then
// disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			h.logger.Info("ws hub stopped")
			return

		case v := <-h.joins:
			h.join(v)

		case v := <-h.leaves:
			h.drop(v, "left")

		case c := <-h.cycles:
			frame, err := EncodeCycle(c)
			if err != nil {
				h.logger.Warn("ws cycle encode failed", "error", err)
				continue
			}
			h.latest = frame
			h.fanOut(frame)
			h.published.Add(1)
		}
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Viewers:   h.Viewers(),
		Published: h.published.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// admit hands a viewer to Run. After Run returns the viewer is closed
// instead.
func (h *Hub) admit(v *viewer) {
	select {
	case <-h.stopped:
		v.close()
		return
	default:
	}
	select {
	case h.joins <- v:
	case <-h.stopped:
		v.close()
	}
}

func (h *Hub) leave(v *viewer) {
	select {
	case h.leaves <- v:
	case <-h.stopped:
	}
}

func (h *Hub) join(v *viewer) {
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	n := len(h.viewers)
	h.mu.Unlock()

	if h.latest != nil {
		select {
		case v.out <- h.latest:
		default:
		}
	}
	h.logger.Info("ws viewer joined", "remote_addr", v.addr, "viewers", n)
}

func (h *Hub) fanOut(frame []byte) {
	var lagging []*viewer

	h.mu.Lock()
	for v := range h.viewers {
		select {
		case v.out <- frame:
			v.lag = 0
		default:
			v.lag++
			h.dropped.Add(1)
			if v.lag > h.cfg.MaxLag {
				lagging = append(lagging, v)
			}
		}
	}
	h.mu.Unlock()

	for _, v := range lagging {
		h.drop(v, "lagging")
	}
}

func (h *Hub) drop(v *viewer, reason string) {
	h.mu.Lock()
	_, ok := h.viewers[v]
	delete(h.viewers, v)
	n := len(h.viewers)
	h.mu.Unlock()

	if !ok {
		return
	}
	v.close()
	h.logger.Info("ws viewer dropped", "remote_addr", v.addr, "reason", reason, "viewers", n)
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	all := make([]*viewer, 0, len(h.viewers))
	for v := range h.viewers {
		all = append(all, v)
	}
	h.mu.Unlock()

	for _, v := range all {
		h.drop(v, "shutdown")
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// viewer is one websocket connection. conn is nil in tests.
type viewer struct {
	conn *websocket.Conn
	addr string
	out  chan []byte
	lag  int // Guarded by Hub.mu

	once sync.Once
}

func newViewer(conn *websocket.Conn, addr string, queue int) *viewer {
	return &viewer{
		conn: conn,
		addr: addr,
		out:  make(chan []byte, queue),
	}
}

// close ends the outbound queue; the writer sends a close frame and exits.
func (v *viewer) close() {
	v.once.Do(func() { close(v.out) })
}

// write sends queued frames and keepalive pings until the queue is closed
// or a write fails.
func (v *viewer) write(logger *slog.Logger) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer v.conn.Close()

	for {
		var err error
		select {
		case frame, ok := <-v.out:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			err = v.conn.WriteMessage(websocket.TextMessage, frame)
		case <-ping.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = v.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			v.logExit(logger, "write", err)
			return
		}
	}
}

// read discards inbound frames; viewers only listen. The first read error
// means the peer is gone, and the viewer leaves the hub.
func (v *viewer) read(h *Hub) {
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			v.logExit(h.logger, "read", err)
			h.leave(v)
			return
		}
	}
}

func (v *viewer) logExit(logger *slog.Logger, side string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		logger.Debug("ws viewer closed", "remote_addr", v.addr, "side", side, "code", ce.Code)
		return
	}
	logger.Debug("ws viewer error", "remote_addr", v.addr, "side", side, "error", err)
}
