package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiroom-ws/internal/player"
	"multiroom-ws/internal/pool"
)

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHubSnapshotAndBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshot := func() []Envelope {
		st := player.State{Title: "Song A", Playback: "playing"}
		return []Envelope{{Instance: "kitchen", Online: true, State: &st}}
	}
	hub := NewHub(snapshot)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.register <- conn
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Every new client receives the snapshot first.
	var env Envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "kitchen", env.Instance)
	assert.True(t, env.Online)
	require.NotNil(t, env.State)
	assert.Equal(t, "Song A", env.State.Title)

	hub.Broadcast(Envelope{Notice: "speaker c1 disconnected"})
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "speaker c1 disconnected", env.Notice)
}

func TestWebsocketHandlerOriginCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(":0", []string{"http://allowed.example"}, pool.New(), nil)
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.newWebsocketHandler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	// Disallowed origin never completes the handshake.
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	header = http.Header{"Origin": []string{"http://allowed.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHandlerExitsAfterHubStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(":0", nil, pool.New(), nil)
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.newWebsocketHandler())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Stopping the hub closes the connection; the handler's unregister must
	// not block on the dead loop.
	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	// Close waits for outstanding handlers, so a blocked handler hangs here.
	closed := make(chan struct{})
	go func() {
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("handler still blocked after hub stopped")
	}
}

func TestWebsocketHandlerAllowsAnyOriginWhenUnconfigured(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(":0", nil, pool.New(), nil)
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.newWebsocketHandler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"http://anything.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	conn.Close()
}
