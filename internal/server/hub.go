package server

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"

	"multiroom-ws/internal/mopidy"
	"multiroom-ws/internal/player"
)

// Envelope is the client-facing message: a per-instance state snapshot, a
// tracklist update or a standalone notice.
type Envelope struct {
	Instance  string           `json:"instance,omitempty"`
	Online    bool             `json:"online,omitempty"`
	State     *player.State    `json:"state,omitempty"`
	Tracklist []mopidy.TlTrack `json:"tracklist,omitempty"`
	Notice    string           `json:"notice,omitempty"`
}

// Hub manages the set of active UI clients and broadcasts envelopes. All
// connection writes happen on the Run goroutine.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan Envelope
	snapshot   func() []Envelope
	done       chan struct{}
}

// NewHub creates a new Hub. snapshot supplies the envelopes sent to every
// newly connected client.
func NewHub(snapshot func() []Envelope) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan Envelope, 32),
		snapshot:   snapshot,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It must be run in a separate goroutine.
// The done channel closes when the loop exits; handlers select on it so they
// never block on a channel nobody drains anymore.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("hub started")
	defer slog.Info("hub stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllConnections()
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			slog.Debug("client registered", "remoteAddr", client.RemoteAddr())
			for _, env := range h.snapshot() {
				if err := client.WriteJSON(env); err != nil {
					slog.Warn("failed to send initial state to client", "error", err, "remoteAddr", client.RemoteAddr())
					break
				}
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			slog.Debug("client unregistered", "remoteAddr", client.RemoteAddr())
		case env := <-h.broadcast:
			h.broadcastEnvelope(env)
		}
	}
}

// Broadcast queues an envelope for all connected clients.
func (h *Hub) Broadcast(env Envelope) {
	h.broadcast <- env
}

func (h *Hub) broadcastEnvelope(env Envelope) {
	for client := range h.clients {
		if err := client.WriteJSON(env); err != nil {
			slog.Warn("failed to broadcast message", "error", err, "remoteAddr", client.RemoteAddr())
			client.Close()
			delete(h.clients, client)
		}
	}
}

// closeAllConnections closes all active client connections during shutdown.
func (h *Hub) closeAllConnections() {
	for client := range h.clients {
		if err := client.Close(); err != nil {
			slog.Warn("error closing client connection during shutdown", "error", err, "remoteAddr", client.RemoteAddr())
		}
	}
}
