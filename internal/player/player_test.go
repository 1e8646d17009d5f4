package player_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiroom-ws/internal/mopidy"
	"multiroom-ws/internal/player"
)

// fakeConn scripts the RPC surface and lets tests push connection messages.
type fakeConn struct {
	msgs chan mopidy.Message

	mu        sync.Mutex
	current   *mopidy.TlTrack
	playback  string
	repeat    bool
	random    bool
	tracks    []mopidy.TlTrack
	images    map[string][]mopidy.Image
	lastQuery map[string][]string

	currentTrackCalls atomic.Int32
	playbackCalls     atomic.Int32
	repeatCalls       atomic.Int32
	randomCalls       atomic.Int32
	tracklistCalls    atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:     make(chan mopidy.Message, 16),
		playback: mopidy.PlaybackStopped,
		images:   make(map[string][]mopidy.Image),
	}
}

func (f *fakeConn) URL() string                            { return "ws://fake:6680/mopidy/ws" }
func (f *fakeConn) Messages() <-chan mopidy.Message        { return f.msgs }
func (f *fakeConn) push(msg mopidy.Message)                { f.msgs <- msg }
func (f *fakeConn) setCurrent(tl *mopidy.TlTrack, pb string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = tl
	f.playback = pb
}

func (f *fakeConn) CurrentTLTrack(context.Context) (*mopidy.TlTrack, error) {
	f.currentTrackCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeConn) PlaybackState(context.Context) (string, error) {
	f.playbackCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playback, nil
}

func (f *fakeConn) GetRepeat(context.Context) (bool, error) {
	f.repeatCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repeat, nil
}

func (f *fakeConn) GetRandom(context.Context) (bool, error) {
	f.randomCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.random, nil
}

func (f *fakeConn) SetRepeat(_ context.Context, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repeat = value
	return nil
}

func (f *fakeConn) SetRandom(_ context.Context, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.random = value
	return nil
}

func (f *fakeConn) TLTracks(context.Context) ([]mopidy.TlTrack, error) {
	f.tracklistCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracks, nil
}

func (f *fakeConn) GetImages(_ context.Context, uris []string) (map[string][]mopidy.Image, error) {
	out := make(map[string][]mopidy.Image)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uri := range uris {
		out[uri] = f.images[uri]
	}
	return out, nil
}

func (f *fakeConn) Play(context.Context, *int) error { return nil }
func (f *fakeConn) Pause(context.Context) error      { return nil }
func (f *fakeConn) Resume(context.Context) error     { return nil }
func (f *fakeConn) Stop(context.Context) error       { return nil }
func (f *fakeConn) Next(context.Context) error       { return nil }
func (f *fakeConn) Previous(context.Context) error   { return nil }

func (f *fakeConn) Seek(context.Context, int) (bool, error) { return true, nil }
func (f *fakeConn) Position(context.Context) (int, error)   { return 0, nil }

func (f *fakeConn) AddURIs(_ context.Context, uris []string, _ *int) ([]mopidy.TlTrack, error) {
	added := make([]mopidy.TlTrack, 0, len(uris))
	for i, uri := range uris {
		added = append(added, mopidy.TlTrack{TLID: i + 1, Track: mopidy.Track{URI: uri}})
	}
	return added, nil
}

func (f *fakeConn) Remove(context.Context, []int) ([]mopidy.TlTrack, error) { return nil, nil }
func (f *fakeConn) Move(context.Context, int, int, int) error               { return nil }
func (f *fakeConn) Clear(context.Context) error                             { return nil }

func (f *fakeConn) CreatePlaylist(_ context.Context, name string) (*mopidy.Playlist, error) {
	return &mopidy.Playlist{URI: "m3u:" + name, Name: name}, nil
}

func (f *fakeConn) SavePlaylist(_ context.Context, pl *mopidy.Playlist) (*mopidy.Playlist, error) {
	return pl, nil
}

func (f *fakeConn) DeletePlaylist(context.Context, string) error { return nil }

func (f *fakeConn) PlaylistItems(context.Context, string) ([]mopidy.Ref, error) {
	return []mopidy.Ref{{URI: "local:track:1"}, {URI: "local:track:2"}}, nil
}

func (f *fakeConn) Search(_ context.Context, query map[string][]string) ([]mopidy.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	return nil, nil
}

var _ player.Conn = (*fakeConn)(nil)

func startPlayer(t *testing.T, f *fakeConn) *player.Player {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p := player.New("kitchen", f)
	go p.Run(ctx)
	return p
}

func waitUpdate(t *testing.T, p *player.Player) player.State {
	t.Helper()
	select {
	case st := <-p.Updates():
		return st
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for state update")
		return player.State{}
	}
}

func TestOnlineTriggersEachRefreshOnce(t *testing.T) {
	f := newFakeConn()
	p := startPlayer(t, f)

	f.push(mopidy.Message{State: mopidy.StateOnline})

	require.Eventually(t, func() bool {
		return f.playbackCalls.Load() == 1 &&
			f.repeatCalls.Load() == 1 &&
			f.randomCalls.Load() == 1 &&
			f.currentTrackCalls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, p.Online())

	// A second transition triggers each refresh exactly once more.
	f.push(mopidy.Message{State: mopidy.StateOffline})
	f.push(mopidy.Message{State: mopidy.StateOnline})

	require.Eventually(t, func() bool {
		return f.playbackCalls.Load() == 2 &&
			f.repeatCalls.Load() == 2 &&
			f.randomCalls.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDuplicateTrackDeliveryIsNotRepublished(t *testing.T) {
	f := newFakeConn()
	track := &mopidy.TlTrack{TLID: 7, Track: mopidy.Track{URI: "local:track:a", Name: "Song A"}}
	f.setCurrent(track, mopidy.PlaybackPlaying)

	p := startPlayer(t, f)
	f.push(mopidy.Message{Event: mopidy.EventTrackPlaybackStarted})

	st := waitUpdate(t, p)
	assert.Equal(t, "local:track:a", st.TrackURI)
	assert.Equal(t, "Song A", st.Title)
	assert.Equal(t, 7, st.TLID)

	// Same track again: the projector must not republish.
	calls := f.playbackCalls.Load()
	f.push(mopidy.Message{Event: mopidy.EventPlaybackStateChanged})
	require.Eventually(t, func() bool {
		return f.playbackCalls.Load() == calls+1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	select {
	case st := <-p.Updates():
		t.Fatalf("unexpected republish for duplicate track: %+v", st)
	default:
	}

	// The playback flag still lands on the snapshot.
	assert.Equal(t, mopidy.PlaybackPlaying, p.State().Playback)

	// A different track republishes exactly once.
	f.setCurrent(&mopidy.TlTrack{TLID: 8, Track: mopidy.Track{URI: "local:track:b", Name: "Song B"}}, mopidy.PlaybackPlaying)
	f.push(mopidy.Message{Event: mopidy.EventTrackPlaybackStarted})

	st = waitUpdate(t, p)
	assert.Equal(t, "local:track:b", st.TrackURI)
	assert.Equal(t, "Song B", st.Title)
}

func TestSetRepeatRoundTrip(t *testing.T) {
	f := newFakeConn()
	p := startPlayer(t, f)

	require.NoError(t, p.SetRepeat(context.Background(), true))
	f.push(mopidy.Message{Event: mopidy.EventOptionsChanged})

	st := waitUpdate(t, p)
	assert.True(t, st.Repeat)
	assert.True(t, p.State().Repeat)
}

func TestStreamTitleOverwritesOnlyTitle(t *testing.T) {
	f := newFakeConn()
	track := &mopidy.TlTrack{TLID: 3, Track: mopidy.Track{URI: "http://radio/x", Name: "Radio X"}}
	f.setCurrent(track, mopidy.PlaybackPlaying)

	p := startPlayer(t, f)
	f.push(mopidy.Message{Event: mopidy.EventTrackPlaybackStarted})
	st := waitUpdate(t, p)
	require.Equal(t, "Radio X", st.Title)

	f.push(mopidy.Message{
		Event: mopidy.EventStreamTitleChanged,
		Data:  json.RawMessage(`{"event":"stream_title_changed","title":"Now: Some Song"}`),
	})

	st = waitUpdate(t, p)
	assert.Equal(t, "Now: Some Song", st.Title)
	assert.Equal(t, "http://radio/x", st.TrackURI)
	assert.Equal(t, 3, st.TLID)
}

func TestOfflinePublishesSnapshot(t *testing.T) {
	f := newFakeConn()
	p := startPlayer(t, f)

	f.push(mopidy.Message{State: mopidy.StateOffline})
	waitUpdate(t, p)
	assert.False(t, p.Online())
}

func TestCoverArtSelection(t *testing.T) {
	f := newFakeConn()
	f.images["local:track:none"] = nil
	f.images["local:track:one"] = []mopidy.Image{{URI: "/img/one.jpg"}}
	f.images["local:track:two"] = []mopidy.Image{{URI: "/img/small.jpg"}, {URI: "/img/big.jpg"}}

	p := player.New("kitchen", f)
	ctx := context.Background()

	art, err := p.CoverArt(ctx, "local:track:none")
	require.NoError(t, err)
	assert.Equal(t, player.PlaceholderArt, art)

	art, err = p.CoverArt(ctx, "local:track:one")
	require.NoError(t, err)
	assert.Equal(t, "/img/one.jpg", art)

	// With several candidates the second entry wins.
	art, err = p.CoverArt(ctx, "local:track:two")
	require.NoError(t, err)
	assert.Equal(t, "/img/big.jpg", art)
}

func TestSearchUsesAnyCriterion(t *testing.T) {
	f := newFakeConn()
	p := player.New("kitchen", f)

	_, err := p.Search(context.Background(), `foo "bar baz" qux`)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, map[string][]string{"any": {"foo", "bar baz", "qux"}}, f.lastQuery)
}

func TestTracklistRefresh(t *testing.T) {
	f := newFakeConn()
	f.tracks = []mopidy.TlTrack{
		{TLID: 1, Track: mopidy.Track{URI: "local:track:a"}},
		{TLID: 2, Track: mopidy.Track{URI: "local:track:b"}},
	}
	p := startPlayer(t, f)

	f.push(mopidy.Message{Event: mopidy.EventTracklistChanged})

	select {
	case tracks := <-p.TracklistUpdates():
		require.Len(t, tracks, 2)
		assert.Equal(t, 1, tracks[0].TLID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for tracklist update")
	}
	assert.Len(t, p.Tracklist(), 2)
}
