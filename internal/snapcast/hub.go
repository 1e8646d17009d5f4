// Package snapcast maintains a single shared WebSocket to the Snapcast
// server, mirrors its last-known state and fans server-pushed notifications
// out to per-group subscriber channels.
//
// Mutations are fire-and-forget: each request carries a fresh random id and
// no per-call response correlation is done; the next status push reveals the
// outcome.
package snapcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"multiroom-ws/internal/jsonrpc"
)

// DefaultPort is the Snapcast JSON-RPC WebSocket port.
const DefaultPort = 1780

// ErrNotConnected is returned by mutations while the socket is down.
var ErrNotConnected = errors.New("snapcast: not connected")

// Event is a server notification routed to a group's subscribers.
type Event struct {
	Method string
	Params json.RawMessage
}

// Hub owns the shared connection and the state cache.
type Hub struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.RWMutex
	conn    *websocket.Conn
	runCtx  context.Context
	groups  []Group
	streams []Stream
	clients []Client
	subs    map[string]chan Event

	writeMu      sync.Mutex
	notices      chan string
	reconnecting atomic.Bool

	repollMu     sync.Mutex
	repollCancel context.CancelFunc
	repollCtx    context.Context

	repollInitial time.Duration
	repollMax     time.Duration
	repollBudget  time.Duration
}

func New(host string, port int) *Hub {
	if port == 0 {
		port = DefaultPort
	}
	return &Hub{
		url:     fmt.Sprintf("ws://%s:%d/jsonrpc", host, port),
		dialer:  websocket.DefaultDialer,
		subs:    make(map[string]chan Event),
		notices: make(chan string, 8),

		repollInitial: 2 * time.Second,
		repollMax:     30 * time.Second,
		repollBudget:  5 * time.Minute,
	}
}

func (h *Hub) URL() string { return h.url }

// Notices carries user-facing connectivity notices.
func (h *Hub) Notices() <-chan string { return h.notices }

// Connect dials the server if no socket is open; an open socket makes it a
// no-op. On dial failure a background redial with exponential backoff is
// scheduled and the error is returned.
func (h *Hub) Connect(ctx context.Context) error {
	if err := h.dial(ctx); err != nil {
		go h.reconnect(ctx)
		return err
	}
	return nil
}

// Connected reports whether the socket is currently open.
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

func (h *Hub) dial(ctx context.Context) error {
	h.mu.Lock()
	if h.conn != nil {
		h.mu.Unlock()
		return nil
	}
	h.runCtx = ctx
	h.mu.Unlock()

	conn, _, err := h.dialer.DialContext(ctx, h.url, nil)
	if err != nil {
		return fmt.Errorf("snapcast dial: %w", err)
	}

	h.mu.Lock()
	if h.conn != nil {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.conn = conn
	h.mu.Unlock()

	slog.Info("snapcast connected", "url", h.url)
	go h.readLoop(ctx, conn)

	if err := h.RefreshStatus(); err != nil {
		slog.Warn("initial status query failed", "url", h.url, "error", err)
	}
	return nil
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			h.mu.Lock()
			if h.conn == conn {
				h.conn = nil
			}
			h.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			slog.Warn("snapcast connection lost", "url", h.url, "error", err)
			h.notice("connection to snapcast server lost")
			go h.reconnect(ctx)
			return
		}
		h.handleFrame(raw)
	}
}

func (h *Hub) reconnect(ctx context.Context) {
	if !h.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer h.reconnecting.Store(false)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return
		}
		if err := h.dial(ctx); err != nil {
			slog.Warn("snapcast redial failed", "url", h.url, "error", err)
			continue
		}
		return
	}
}

func (h *Hub) handleFrame(raw []byte) {
	frame, err := jsonrpc.Classify(raw)
	if err != nil {
		slog.Warn("dropping unparseable snapcast frame", "url", h.url, "error", err)
		return
	}

	switch frame.Kind {
	case jsonrpc.KindResponse:
		h.handleResponse(frame.Response)
	case jsonrpc.KindNotification:
		h.handleNotification(frame.Notification)
	default:
		slog.Debug("unhandled snapcast frame", "kind", frame.Kind)
	}
}

// handleResponse only inspects full server-status replies; everything else
// was fire-and-forget and is dropped.
func (h *Hub) handleResponse(resp *jsonrpc.Response) {
	if resp.Error != nil {
		slog.Warn("snapcast request failed", "url", h.url, "error", resp.Error)
		return
	}
	var status ServerStatus
	if err := json.Unmarshal(resp.Result, &status); err != nil || status.Server.Groups == nil {
		slog.Debug("ignoring non-status snapcast response", "id", resp.ID)
		return
	}
	h.applyStatus(&status)
}

// applyStatus wholesale-replaces the cached groups, streams and clients.
// The client list is rebuilt from the group tree so repeated status fetches
// never accumulate duplicates.
func (h *Hub) applyStatus(status *ServerStatus) {
	clients := make([]Client, 0)
	for _, g := range status.Server.Groups {
		clients = append(clients, g.Clients...)
	}

	h.mu.Lock()
	h.groups = status.Server.Groups
	h.streams = status.Server.Streams
	h.clients = clients
	h.mu.Unlock()

	slog.Debug("server status applied",
		"groups", len(status.Server.Groups),
		"streams", len(status.Server.Streams),
		"clients", len(clients))
}

func (h *Hub) handleNotification(n *jsonrpc.Notification) {
	ev := Event{Method: n.Method, Params: n.Params}

	switch n.Method {
	case "Client.OnVolumeChanged":
		var params struct {
			ID     string `json:"id"`
			Volume Volume `json:"volume"`
		}
		if err := json.Unmarshal(n.Params, &params); err != nil {
			slog.Warn("bad volume notification", "error", err)
			return
		}
		h.updateClient(params.ID, func(c *Client) { c.Config.Volume = params.Volume })
		h.routeToClientGroup(params.ID, ev)
	case "Client.OnLatencyChanged":
		var params struct {
			ID      string `json:"id"`
			Latency int    `json:"latency"`
		}
		if err := json.Unmarshal(n.Params, &params); err != nil {
			slog.Warn("bad latency notification", "error", err)
			return
		}
		h.updateClient(params.ID, func(c *Client) { c.Config.Latency = params.Latency })
		h.routeToClientGroup(params.ID, ev)
	case "Client.OnNameChanged":
		var params struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(n.Params, &params); err != nil {
			slog.Warn("bad name notification", "error", err)
			return
		}
		h.updateClient(params.ID, func(c *Client) { c.Config.Name = params.Name })
		h.routeToClientGroup(params.ID, ev)
	case "Client.OnDisconnect":
		var params struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(n.Params, &params); err != nil {
			slog.Warn("bad disconnect notification", "error", err)
			return
		}
		h.updateClient(params.ID, func(c *Client) { c.Connected = false })
		h.notice(fmt.Sprintf("speaker %s disconnected", params.ID))
		h.routeToClientGroup(params.ID, ev)
		h.startRepoll()
	case "Client.OnConnect":
		h.cancelRepoll()
		if err := h.RefreshStatus(); err != nil {
			slog.Warn("status refresh after client connect failed", "error", err)
		}
	case "Server.OnUpdate":
		var params ServerStatus
		if err := json.Unmarshal(n.Params, &params); err != nil {
			slog.Warn("bad server update notification", "error", err)
			return
		}
		h.applyStatus(&params)
		h.routeToAll(ev)
	case "Stream.OnUpdate":
		var params struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(n.Params, &params); err != nil {
			slog.Warn("bad stream update notification", "error", err)
			return
		}
		h.routeToStreamGroups(params.ID, ev)
	case "Group.OnStreamChanged":
		// Not acted upon; the following Server.OnUpdate carries the state.
		slog.Debug("group stream changed", "params", string(n.Params))
	default:
		slog.Debug("unhandled snapcast notification", "method", n.Method)
	}
}

// updateClient applies fn to the client in both the flattened list and its
// group entry.
func (h *Hub) updateClient(id string, fn func(*Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.clients {
		if h.clients[i].ID == id {
			fn(&h.clients[i])
		}
	}
	for gi := range h.groups {
		for ci := range h.groups[gi].Clients {
			if h.groups[gi].Clients[ci].ID == id {
				fn(&h.groups[gi].Clients[ci])
			}
		}
	}
}

// RegisterPlayer creates the subscriber channel for a group. Events for a
// group are only deliverable after registration.
func (h *Hub) RegisterPlayer(groupID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[groupID]; ok {
		return ch
	}
	ch := make(chan Event, 16)
	h.subs[groupID] = ch
	return ch
}

// UnregisterPlayer discards a group's subscriber channel.
func (h *Hub) UnregisterPlayer(groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[groupID]; ok {
		close(ch)
		delete(h.subs, groupID)
	}
}

// route delivers an event to a group's channel. Unregistered groups drop the
// event; so do groups with no connected client.
func (h *Hub) route(groupID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.subs[groupID]
	if !ok {
		slog.Debug("no subscriber for group", "group", groupID, "method", ev.Method)
		return
	}
	if !h.groupHasConnectedClientLocked(groupID) {
		return
	}
	select {
	case ch <- ev:
	default:
		slog.Debug("group event dropped, subscriber lagging", "group", groupID, "method", ev.Method)
	}
}

func (h *Hub) routeToClientGroup(clientID string, ev Event) {
	groupID, ok := h.groupForClient(clientID)
	if !ok {
		slog.Debug("no group for client", "client", clientID, "method", ev.Method)
		return
	}
	h.route(groupID, ev)
}

func (h *Hub) routeToAll(ev Event) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.route(id, ev)
	}
}

func (h *Hub) routeToStreamGroups(streamID string, ev Event) {
	h.mu.RLock()
	ids := make([]string, 0)
	for _, g := range h.groups {
		if g.StreamID == streamID {
			ids = append(ids, g.ID)
		}
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.route(id, ev)
	}
}

func (h *Hub) groupForClient(clientID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, g := range h.groups {
		for _, c := range g.Clients {
			if c.ID == clientID {
				return g.ID, true
			}
		}
	}
	return "", false
}

func (h *Hub) groupHasConnectedClientLocked(groupID string) bool {
	for _, g := range h.groups {
		if g.ID != groupID {
			continue
		}
		for _, c := range g.Clients {
			if c.Connected {
				return true
			}
		}
	}
	return false
}

// startRepoll polls the server status with bounded exponential backoff until
// a client-connect notification cancels it or the attempt budget runs out.
func (h *Hub) startRepoll() {
	h.repollMu.Lock()
	defer h.repollMu.Unlock()
	if h.repollCancel != nil {
		return
	}

	h.mu.RLock()
	parent := h.runCtx
	h.mu.RUnlock()
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)
	h.repollCancel = cancel
	h.repollCtx = ctx

	go func() {
		// Release the slot on every exit path; a wedged slot would block
		// all future re-poll cycles.
		defer h.clearRepoll(ctx)

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = h.repollInitial
		bo.MaxInterval = h.repollMax
		bo.MaxElapsedTime = h.repollBudget

		for {
			d := bo.NextBackOff()
			if d == backoff.Stop {
				slog.Warn("giving up status re-poll", "url", h.url)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			if err := h.RefreshStatus(); err != nil {
				slog.Warn("status re-poll failed", "url", h.url, "error", err)
			}
		}
	}()
}

func (h *Hub) cancelRepoll() {
	h.repollMu.Lock()
	defer h.repollMu.Unlock()
	if h.repollCancel != nil {
		h.repollCancel()
		h.repollCancel = nil
		h.repollCtx = nil
	}
}

// clearRepoll releases the re-poll slot, but only when it still belongs to
// the cycle identified by ctx; a newer cycle must not be torn down.
func (h *Hub) clearRepoll(ctx context.Context) {
	h.repollMu.Lock()
	defer h.repollMu.Unlock()
	if h.repollCtx != ctx {
		return
	}
	h.repollCancel()
	h.repollCancel = nil
	h.repollCtx = nil
}

func (h *Hub) notice(msg string) {
	select {
	case h.notices <- msg:
	default:
		slog.Debug("notice dropped, consumer lagging", "notice", msg)
	}
}

// send fires one request over the shared socket with a fresh random id.
func (h *Hub) send(method string, params any) error {
	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	req := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      rand.Int63(),
		Method:  method,
		Params:  params,
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// RefreshStatus requests a fresh full state snapshot.
func (h *Hub) RefreshStatus() error {
	return h.send("Server.GetStatus", nil)
}

// SetVolume sets a client's volume percentage.
func (h *Hub) SetVolume(clientID string, percent int) error {
	return h.send("Client.SetVolume", map[string]any{
		"id":     clientID,
		"volume": map[string]any{"percent": percent},
	})
}

// SetMute mutes or unmutes a client.
func (h *Hub) SetMute(clientID string, muted bool) error {
	return h.send("Client.SetVolume", map[string]any{
		"id":     clientID,
		"volume": map[string]any{"muted": muted},
	})
}

// SetClientName renames a client.
func (h *Hub) SetClientName(clientID, name string) error {
	return h.send("Client.SetName", map[string]any{"id": clientID, "name": name})
}

// SetLatency adjusts a client's playback latency in milliseconds.
func (h *Hub) SetLatency(clientID string, latencyMs int) error {
	return h.send("Client.SetLatency", map[string]any{"id": clientID, "latency": latencyMs})
}

// DeleteClient removes a client from the server's configuration.
func (h *Hub) DeleteClient(clientID string) error {
	return h.send("Server.DeleteClient", map[string]any{"id": clientID})
}

// SetStream assigns a stream to a group.
func (h *Hub) SetStream(groupID, streamID string) error {
	return h.send("Group.SetStream", map[string]any{"id": groupID, "stream_id": streamID})
}

// SetGroupClients reassigns which clients belong to a group.
func (h *Hub) SetGroupClients(groupID string, clientIDs []string) error {
	return h.send("Group.SetClients", map[string]any{"id": groupID, "clients": clientIDs})
}

// Groups returns a copy of the cached group list.
func (h *Hub) Groups() []Group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Group, len(h.groups))
	copy(out, h.groups)
	return out
}

// Streams returns a copy of the cached stream list.
func (h *Hub) Streams() []Stream {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Stream, len(h.streams))
	copy(out, h.streams)
	return out
}

// Clients returns a copy of the cached client list.
func (h *Hub) Clients() []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Client, len(h.clients))
	copy(out, h.clients)
	return out
}
