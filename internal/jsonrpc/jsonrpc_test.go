package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantErr  bool
	}{
		{
			name:     "response with result",
			raw:      `{"jsonrpc":"2.0","id":7,"result":"playing"}`,
			wantKind: KindResponse,
		},
		{
			name:     "response with error",
			raw:      `{"jsonrpc":"2.0","id":8,"error":{"code":-32601,"message":"method not found"}}`,
			wantKind: KindResponse,
		},
		{
			name:     "notification",
			raw:      `{"jsonrpc":"2.0","method":"Client.OnConnect","params":{"id":"c1"}}`,
			wantKind: KindNotification,
		},
		{
			name:     "mopidy event",
			raw:      `{"event":"track_playback_started","tl_track":{"tlid":3}}`,
			wantKind: KindEvent,
		},
		{
			name:    "not json",
			raw:     `{nope`,
			wantErr: true,
		},
		{
			name:    "json but no known shape",
			raw:     `{"foo":"bar"}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			frame, err := Classify([]byte(tc.raw))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, frame.Kind)
		})
	}
}

func TestClassifyResponseFields(t *testing.T) {
	t.Parallel()

	frame, err := Classify([]byte(`{"jsonrpc":"2.0","id":42,"error":{"code":-1,"message":"boom","data":"details"}}`))
	require.NoError(t, err)
	require.Equal(t, KindResponse, frame.Kind)
	assert.Equal(t, int64(42), frame.Response.ID)
	require.NotNil(t, frame.Response.Error)
	assert.Equal(t, -1, frame.Response.Error.Code)
	assert.EqualError(t, frame.Response.Error, "jsonrpc: boom (code -1)")
}

func TestClassifyEventKeepsPayload(t *testing.T) {
	t.Parallel()

	raw := `{"event":"stream_title_changed","title":"Radio X"}`
	frame, err := Classify([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, KindEvent, frame.Kind)
	assert.Equal(t, "stream_title_changed", frame.Event.Name)

	var payload struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(frame.Event.Data, &payload))
	assert.Equal(t, "Radio X", payload.Title)
}

func TestRequestMarshalOmitsEmptyParams(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Request{JSONRPC: Version, ID: 1, Method: "core.playback.pause"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"core.playback.pause"}`, string(data))
}
