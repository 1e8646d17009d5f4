// Package server is the UI-facing bridge: it fans per-instance state
// snapshots and Snapcast notices out to browser clients over WebSocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"multiroom-ws/internal/player"
	"multiroom-ws/internal/pool"
	"multiroom-ws/internal/snapcast"
)

// Server is the main application orchestrator.
type Server struct {
	addr          string
	httpServer    *http.Server
	hub           *Hub
	pool          *pool.Pool
	snap          *snapcast.Hub
	originChecker func(string) bool
}

// New creates a new, fully configured bridge server. snap may be nil when no
// Snapcast server is configured.
func New(addr string, allowedOrigins []string, p *pool.Pool, snap *snapcast.Hub) *Server {
	originChecker := func(origin string) bool {
		if len(allowedOrigins) == 0 {
			return true
		}
		for _, allowedOrigin := range allowedOrigins {
			if allowedOrigin == origin {
				return true
			}
		}
		return false
	}

	s := &Server{
		addr:          addr,
		pool:          p,
		snap:          snap,
		originChecker: originChecker,
	}
	s.hub = NewHub(s.snapshotEnvelopes)
	return s
}

// snapshotEnvelopes captures every player's current state for newly
// connected clients.
func (s *Server) snapshotEnvelopes() []Envelope {
	players := s.pool.Players()
	envs := make([]Envelope, 0, len(players))
	for _, pl := range players {
		st := pl.State()
		envs = append(envs, Envelope{Instance: pl.ID(), Online: pl.Online(), State: &st})
	}
	return envs
}

// Run starts the server and its components and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ws", s.newWebsocketHandler())

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()

	for _, pl := range s.pool.Players() {
		wg.Add(1)
		go func(pl *player.Player) {
			defer wg.Done()
			s.pumpPlayer(ctx, pl)
		}(pl)
	}

	if s.snap != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pumpNotices(ctx)
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
	}()

	slog.Info("http server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	wg.Wait()

	return nil
}

// pumpPlayer forwards one player's snapshot and tracklist streams to the
// hub.
func (s *Server) pumpPlayer(ctx context.Context, pl *player.Player) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-pl.Updates():
			s.hub.Broadcast(Envelope{Instance: pl.ID(), Online: pl.Online(), State: &st})
		case tracks := <-pl.TracklistUpdates():
			s.hub.Broadcast(Envelope{Instance: pl.ID(), Online: pl.Online(), Tracklist: tracks})
		}
	}
}

// pumpNotices forwards Snapcast connectivity notices to the hub.
func (s *Server) pumpNotices(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notice := <-s.snap.Notices():
			s.hub.Broadcast(Envelope{Notice: notice})
		}
	}
}
