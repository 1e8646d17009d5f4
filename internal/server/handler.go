package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// newWebsocketHandler upgrades UI connections and parks them on the hub.
func (s *Server) newWebsocketHandler() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.originChecker(r.Header.Get("Origin"))
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err, "remoteAddr", r.RemoteAddr)
			return
		}

		// The hub can already be gone during shutdown; never block on its
		// channels once its loop has exited.
		select {
		case s.hub.register <- conn:
		case <-s.hub.done:
			conn.Close()
			return
		}
		defer func() {
			select {
			case s.hub.unregister <- conn:
			case <-s.hub.done:
			}
			if err := conn.Close(); err != nil {
				slog.Debug("error while closing websocket connection", "error", err, "remoteAddr", conn.RemoteAddr())
			}
		}()

		// Block by reading from the client to detect disconnection.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// healthHandler responds to container health checks.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Warn("failed to write health check response", "error", err)
	}
}
