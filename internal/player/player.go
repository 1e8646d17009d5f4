// Package player binds one Mopidy instance connection to a normalized
// now-playing snapshot. It reacts to server-push events by re-fetching the
// affected slice of state and republishing the whole snapshot.
package player

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"multiroom-ws/internal/mopidy"
)

// Conn is what the player needs from the instance's RPC client.
type Conn interface {
	mopidy.API
	URL() string
	Messages() <-chan mopidy.Message
}

// Player represents one controllable audio endpoint.
type Player struct {
	id   string
	conn Conn

	mu        sync.RWMutex
	online    bool
	state     State
	tracklist []mopidy.TlTrack

	updates          chan State
	tracklistUpdates chan []mopidy.TlTrack
}

func New(id string, conn Conn) *Player {
	return &Player{
		id:               id,
		conn:             conn,
		state:            emptyState(),
		updates:          make(chan State, 16),
		tracklistUpdates: make(chan []mopidy.TlTrack, 4),
	}
}

func (p *Player) ID() string  { return p.id }
func (p *Player) URL() string { return p.conn.URL() }

// Online reports the connectivity of the underlying client as of its last
// state transition.
func (p *Player) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

// State returns the current snapshot.
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Tracklist returns the most recent tracklist snapshot.
func (p *Player) Tracklist() []mopidy.TlTrack {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]mopidy.TlTrack, len(p.tracklist))
	copy(out, p.tracklist)
	return out
}

// Updates delivers the snapshot after every republish.
func (p *Player) Updates() <-chan State { return p.updates }

// TracklistUpdates delivers the tracklist after every tracklist refresh.
func (p *Player) TracklistUpdates() <-chan []mopidy.TlTrack { return p.tracklistUpdates }

// Run consumes the connection's message stream until ctx is cancelled. It
// blocks and is meant to run in its own goroutine.
func (p *Player) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.conn.Messages():
			if !ok {
				return
			}
			p.dispatch(ctx, msg)
		}
	}
}

func (p *Player) dispatch(ctx context.Context, msg mopidy.Message) {
	switch {
	case msg.State == mopidy.StateOnline:
		p.mu.Lock()
		p.online = true
		p.mu.Unlock()
		// Three independent refreshes, no ordering between them. Results
		// land in whatever order the responses arrive.
		go p.refreshTrack(ctx)
		go p.refreshOptions(ctx)
		go p.refreshPlayback(ctx)
	case msg.State == mopidy.StateOffline:
		p.mu.Lock()
		p.online = false
		st := p.state
		p.mu.Unlock()
		p.publish(st)
	default:
		p.dispatchEvent(ctx, msg)
	}
}

func (p *Player) dispatchEvent(ctx context.Context, msg mopidy.Message) {
	switch msg.Event {
	case mopidy.EventTracklistChanged:
		go p.refreshTracklist(ctx)
	case mopidy.EventTrackPlaybackEnded, mopidy.EventPlaybackStateChanged:
		go p.refreshPlayback(ctx)
	case mopidy.EventTrackPlaybackStarted:
		go p.refreshTrack(ctx)
	case mopidy.EventOptionsChanged:
		go p.refreshOptions(ctx)
	case mopidy.EventStreamTitleChanged:
		p.setStreamTitle(msg.Data)
	default:
		slog.Debug("unhandled mopidy event", "instance", p.id, "event", msg.Event)
	}
}

func (p *Player) refreshTrack(ctx context.Context) {
	tl, err := p.conn.CurrentTLTrack(ctx)
	if err != nil {
		slog.Warn("current track refresh failed", "instance", p.id, "error", err)
		return
	}
	p.applyTrack(ctx, tl, "")
}

func (p *Player) refreshPlayback(ctx context.Context) {
	state, err := p.conn.PlaybackState(ctx)
	if err != nil {
		slog.Warn("playback state refresh failed", "instance", p.id, "error", err)
		return
	}
	tl, err := p.conn.CurrentTLTrack(ctx)
	if err != nil {
		slog.Warn("current track refresh failed", "instance", p.id, "error", err)
		return
	}
	p.applyTrack(ctx, tl, state)
}

func (p *Player) refreshOptions(ctx context.Context) {
	repeat, err := p.conn.GetRepeat(ctx)
	if err != nil {
		slog.Warn("repeat refresh failed", "instance", p.id, "error", err)
		return
	}
	random, err := p.conn.GetRandom(ctx)
	if err != nil {
		slog.Warn("random refresh failed", "instance", p.id, "error", err)
		return
	}
	p.mu.Lock()
	p.state.Repeat = repeat
	p.state.Random = random
	st := p.state
	p.mu.Unlock()
	p.publish(st)
}

func (p *Player) refreshTracklist(ctx context.Context) {
	tracks, err := p.conn.TLTracks(ctx)
	if err != nil {
		slog.Warn("tracklist refresh failed", "instance", p.id, "error", err)
		return
	}
	p.mu.Lock()
	p.tracklist = tracks
	p.mu.Unlock()
	select {
	case p.tracklistUpdates <- tracks:
	default:
		slog.Debug("tracklist update dropped, consumer lagging", "instance", p.id)
	}
}

// applyTrack projects a current-track result (and, when non-empty, a
// playback state) into the snapshot. A track whose URI and title both match
// the cached snapshot is a duplicate delivery: the playback flag is still
// recorded but nothing is republished.
func (p *Player) applyTrack(ctx context.Context, tl *mopidy.TlTrack, playback string) {
	var uri, title string
	if tl != nil {
		uri = tl.Track.URI
		title = tl.Track.Name
	}

	p.mu.Lock()
	same := p.state.TrackURI == uri && p.state.Title == title
	if playback != "" {
		p.state.Playback = playback
	}
	p.mu.Unlock()
	if same {
		return
	}

	var art string
	if tl != nil {
		art = p.coverArt(ctx, uri)
	}

	p.mu.Lock()
	if tl == nil {
		repeat, random, pb := p.state.Repeat, p.state.Random, p.state.Playback
		p.state = emptyState()
		p.state.Repeat = repeat
		p.state.Random = random
		p.state.Playback = pb
	} else {
		p.state.Title = title
		p.state.TrackURI = uri
		p.state.TLID = tl.TLID
		p.state.LengthMs = tl.Track.Length
		p.state.ArtURI = art
		p.state.Album = ""
		if tl.Track.Album != nil {
			p.state.Album = tl.Track.Album.Name
		}
		p.state.Artist = artistNames(tl.Track.Artists)
	}
	st := p.state
	p.mu.Unlock()
	p.publish(st)
}

// setStreamTitle overwrites only the title field and republishes.
func (p *Player) setStreamTitle(data json.RawMessage) {
	var payload struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Warn("bad stream title payload", "instance", p.id, "error", err)
		return
	}
	p.mu.Lock()
	p.state.Title = payload.Title
	st := p.state
	p.mu.Unlock()
	p.publish(st)
}

func (p *Player) publish(st State) {
	select {
	case p.updates <- st:
	default:
		slog.Debug("state update dropped, consumer lagging", "instance", p.id)
	}
}

func (p *Player) coverArt(ctx context.Context, uri string) string {
	art, err := p.CoverArt(ctx, uri)
	if err != nil {
		slog.Warn("cover art lookup failed", "instance", p.id, "uri", uri, "error", err)
	}
	return art
}

// CoverArt resolves a track URI to a cover image URI, falling back to the
// bundled placeholder when the library reports none. When several images are
// reported the second entry is used, matching what the frontend displays.
func (p *Player) CoverArt(ctx context.Context, uri string) (string, error) {
	images, err := p.conn.GetImages(ctx, []string{uri})
	if err != nil {
		return PlaceholderArt, err
	}
	list := images[uri]
	switch {
	case len(list) == 0:
		return PlaceholderArt, nil
	case len(list) > 1:
		return list[1].URI, nil
	default:
		return list[0].URI, nil
	}
}

func artistNames(artists []mopidy.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
