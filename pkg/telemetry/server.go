package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itohio/touchamp/pkg/control"
)

// Snapshot describes the loop to newly connected clients.
type Snapshot func() (policy string, levelMax, baseline, level int)

// Server serves the live cycle stream over websocket.
type Server struct {
	logger   *slog.Logger
	hub      *Hub
	snapshot Snapshot
}

// NewServer creates a server. snapshot may be nil.
func NewServer(logger *slog.Logger, cfg HubConfig, snapshot Snapshot) *Server {
	return &Server{
		logger:   logger,
		hub:      NewHub(logger, cfg),
		snapshot: snapshot,
	}
}

// Hub returns the server's hub. Run it with Hub().Run(ctx).
func (s *Server) Hub() *Hub { return s.hub }

// Register registers the websocket handler on mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleWS)
}

// Publish hands a cycle to the hub. It never blocks; use it as a
// Driver.OnCycle callback.
func (s *Server) Publish(c control.Cycle) {
	s.hub.Publish(c)
}

// ListenAndServe runs an HTTP server with the websocket endpoint at path
// until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	s.Register(mux, path)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ws telemetry listening", "addr", addr, "path", path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	v := newViewer(conn, r.RemoteAddr, s.hub.cfg.ViewerQueue)

	// The hello frame goes first so it precedes any cycle.
	if s.snapshot != nil {
		policy, levelMax, baseline, level := s.snapshot()
		msg, err := encode(TypeHello, time.Time{}, helloData{
			Policy:   policy,
			LevelMax: levelMax,
			Baseline: baseline,
			Level:    level,
		})
		if err == nil {
			v.out <- msg
		}
	}

	s.hub.admit(v)

	// Both pumps live as long as the connection, not the request.
	go v.write(s.logger)
	go v.read(s.hub)
}
