// Package jsonrpc holds the JSON-RPC 2.0 frame types shared by the Mopidy
// and Snapcast transports, plus the inbound frame classifier.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// Request is an outbound method call.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an inbound reply correlated by id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the error object carried by a failed response.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (code %d)", e.Message, e.Code)
}

// Notification is an unsolicited server push: a method and params, no id.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Event is Mopidy's vendor convention for pushes: an "event" key instead of
// "method", with the remaining payload fields carried alongside it.
type Event struct {
	Name string
	Data json.RawMessage
}

type Kind int

const (
	KindInvalid Kind = iota
	KindResponse
	KindNotification
	KindEvent
)

// Frame is one classified inbound message. Exactly one of the pointer fields
// is set, matching Kind.
type Frame struct {
	Kind         Kind
	Response     *Response
	Notification *Notification
	Event        *Event
}

// Classify decodes a raw text frame into a response, a notification or a
// Mopidy event. Frames that parse but match none of the three shapes are
// reported as errors so the caller can log and drop them.
func Classify(raw []byte) (*Frame, error) {
	var probe struct {
		ID     *int64 `json:"id"`
		Method string `json:"method"`
		Event  string `json:"event"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch {
	case probe.ID != nil:
		var resp Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("malformed response frame: %w", err)
		}
		return &Frame{Kind: KindResponse, Response: &resp}, nil
	case probe.Method != "":
		var n Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("malformed notification frame: %w", err)
		}
		return &Frame{Kind: KindNotification, Notification: &n}, nil
	case probe.Event != "":
		return &Frame{Kind: KindEvent, Event: &Event{Name: probe.Event, Data: raw}}, nil
	default:
		return nil, fmt.Errorf("frame matches neither response, notification nor event shape")
	}
}
