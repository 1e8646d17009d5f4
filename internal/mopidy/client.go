// Package mopidy is a JSON-RPC-over-WebSocket client for one Mopidy
// instance. It keeps the connection alive with exponential backoff,
// correlates calls by id and delivers connectivity transitions and server
// events on a single typed channel.
package mopidy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"multiroom-ws/internal/jsonrpc"
)

// ErrNotConnected is returned by Call while the instance is offline.
var ErrNotConnected = errors.New("mopidy: not connected")

// State marks a connectivity transition.
type State int

const (
	StateNone State = iota
	StateOnline
	StateOffline
)

// Message is either a connectivity transition (State set, Event empty) or a
// named server event with its raw payload.
type Message struct {
	State State
	Event string
	Data  json.RawMessage
}

// Client is the RPC client for one instance. Safe for concurrent use.
type Client struct {
	url    string
	dialer *websocket.Dialer
	msgs   chan Message

	mu      sync.Mutex // guards conn and pending
	conn    *websocket.Conn
	pending map[int64]chan *jsonrpc.Response
	nextID  atomic.Int64

	writeMu sync.Mutex
}

// BuildURL constructs the WebSocket endpoint for an instance. When proxied,
// traffic is routed through the reverse proxy's per-instance path segment
// instead of directly by port.
func BuildURL(host string, port, index int, proxied bool) string {
	if proxied {
		return fmt.Sprintf("ws://%s/stream/%d/mopidy/ws", host, index)
	}
	return fmt.Sprintf("ws://%s:%d/mopidy/ws", host, port)
}

func NewClient(url string) *Client {
	return &Client{
		url:     url,
		dialer:  websocket.DefaultDialer,
		msgs:    make(chan Message, 32),
		pending: make(map[int64]chan *jsonrpc.Response),
	}
}

func (c *Client) URL() string { return c.url }

// Messages delivers connectivity transitions and server events in arrival
// order.
func (c *Client) Messages() <-chan Message { return c.msgs }

// Run maintains the connection until ctx is cancelled, redialing with
// exponential backoff after every failure. It blocks and is meant to run in
// its own goroutine.
func (c *Client) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			slog.Warn("mopidy dial failed", "url", c.url, "error", err)
			select {
			case <-time.After(bo.NextBackOff()):
				continue
			case <-ctx.Done():
				return
			}
		}
		bo.Reset()

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		slog.Info("mopidy instance online", "url", c.url)
		c.emitState(ctx, Message{State: StateOnline})
		go c.checkCapabilities(ctx)

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		c.readLoop(conn)
		close(done)
		c.teardown(conn)

		slog.Warn("mopidy instance offline", "url", c.url)
		c.emitState(ctx, Message{State: StateOffline})

		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("mopidy connection lost", "url", c.url, "error", err)
			return
		}
		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	frame, err := jsonrpc.Classify(raw)
	if err != nil {
		slog.Warn("dropping unparseable mopidy frame", "url", c.url, "error", err)
		return
	}

	switch frame.Kind {
	case jsonrpc.KindResponse:
		c.mu.Lock()
		ch, ok := c.pending[frame.Response.ID]
		delete(c.pending, frame.Response.ID)
		c.mu.Unlock()
		if !ok {
			slog.Debug("response for unknown call id", "url", c.url, "id", frame.Response.ID)
			return
		}
		ch <- frame.Response
	case jsonrpc.KindEvent:
		c.emit(Message{Event: frame.Event.Name, Data: frame.Event.Data})
	default:
		slog.Debug("unhandled mopidy frame", "url", c.url, "kind", frame.Kind)
	}
}

// teardown closes the socket and fails every in-flight call.
func (c *Client) teardown(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

// Call sends one request and waits for its correlated response. Server-side
// failures are returned as *jsonrpc.Error.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan *jsonrpc.Response, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	req := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: id, Method: method, Params: params}
	c.writeMu.Lock()
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Error != nil {
			slog.Warn("mopidy call failed", "url", c.url, "method", method, "error", resp.Error)
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	}
}

func (c *Client) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// emit delivers a server event; events are droppable under backpressure.
func (c *Client) emit(m Message) {
	select {
	case c.msgs <- m:
	default:
		slog.Debug("mopidy event dropped, consumer lagging", "url", c.url, "event", m.Event)
	}
}

// emitState delivers a connectivity transition, waiting for channel space.
// Transitions are never dropped: the consumer's Online flag tracks the last
// one exactly.
func (c *Client) emitState(ctx context.Context, m Message) {
	select {
	case c.msgs <- m:
	case <-ctx.Done():
	}
}

// checkCapabilities compares the server-reported method list against the
// methods this client uses and warns on gaps. The call surface itself stays
// fixed; a mismatch only means some operations will fail at the server.
func (c *Client) checkCapabilities(ctx context.Context) {
	raw, err := c.Call(ctx, "core.describe", nil)
	if err != nil {
		slog.Debug("core.describe unavailable", "url", c.url, "error", err)
		return
	}
	var described map[string]json.RawMessage
	if err := json.Unmarshal(raw, &described); err != nil {
		slog.Debug("core.describe returned unexpected shape", "url", c.url, "error", err)
		return
	}
	for _, m := range coreMethods {
		if _, ok := described[m]; !ok {
			slog.Warn("instance does not expose expected method", "url", c.url, "method", m)
		}
	}
}
