package player

import (
	"context"
	"fmt"

	"multiroom-ws/internal/mopidy"
)

// Thin pass-throughs to the instance's RPC surface. Each returns the
// server's error unchanged; state convergence happens via the event-driven
// refreshes, not via these results.

func (p *Player) AddURIs(ctx context.Context, uris []string, at *int) ([]mopidy.TlTrack, error) {
	return p.conn.AddURIs(ctx, uris, at)
}

// AddAlbum queues a whole album by its URI; the server expands it.
func (p *Player) AddAlbum(ctx context.Context, albumURI string) ([]mopidy.TlTrack, error) {
	return p.conn.AddURIs(ctx, []string{albumURI}, nil)
}

func (p *Player) RemoveTrack(ctx context.Context, tlid int) ([]mopidy.TlTrack, error) {
	return p.conn.Remove(ctx, []int{tlid})
}

func (p *Player) MoveTrack(ctx context.Context, start, end, to int) error {
	return p.conn.Move(ctx, start, end, to)
}

func (p *Player) ClearTracklist(ctx context.Context) error {
	return p.conn.Clear(ctx)
}

func (p *Player) Play(ctx context.Context, tlid *int) error { return p.conn.Play(ctx, tlid) }
func (p *Player) Pause(ctx context.Context) error           { return p.conn.Pause(ctx) }
func (p *Player) Resume(ctx context.Context) error          { return p.conn.Resume(ctx) }
func (p *Player) Stop(ctx context.Context) error            { return p.conn.Stop(ctx) }
func (p *Player) Next(ctx context.Context) error            { return p.conn.Next(ctx) }
func (p *Player) Previous(ctx context.Context) error        { return p.conn.Previous(ctx) }

func (p *Player) Seek(ctx context.Context, positionMs int) (bool, error) {
	return p.conn.Seek(ctx, positionMs)
}

func (p *Player) Position(ctx context.Context) (int, error) { return p.conn.Position(ctx) }

func (p *Player) SetRepeat(ctx context.Context, value bool) error {
	return p.conn.SetRepeat(ctx, value)
}

func (p *Player) SetRandom(ctx context.Context, value bool) error {
	return p.conn.SetRandom(ctx, value)
}

// SaveAsPlaylist stores the current tracklist snapshot under the given name.
func (p *Player) SaveAsPlaylist(ctx context.Context, name string) (*mopidy.Playlist, error) {
	pl, err := p.conn.CreatePlaylist(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create playlist %q: %w", name, err)
	}

	p.mu.RLock()
	pl.Tracks = make([]mopidy.Track, 0, len(p.tracklist))
	for _, tl := range p.tracklist {
		pl.Tracks = append(pl.Tracks, tl.Track)
	}
	p.mu.RUnlock()

	saved, err := p.conn.SavePlaylist(ctx, pl)
	if err != nil {
		return nil, fmt.Errorf("save playlist %q: %w", name, err)
	}
	return saved, nil
}

func (p *Player) DeletePlaylist(ctx context.Context, uri string) error {
	return p.conn.DeletePlaylist(ctx, uri)
}

// AppendPlaylist adds a stored playlist's tracks to the end of the
// tracklist.
func (p *Player) AppendPlaylist(ctx context.Context, uri string) ([]mopidy.TlTrack, error) {
	items, err := p.conn.PlaylistItems(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("playlist items %q: %w", uri, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	uris := make([]string, 0, len(items))
	for _, item := range items {
		uris = append(uris, item.URI)
	}
	return p.conn.AddURIs(ctx, uris, nil)
}

// Search runs a free-text library search against the "any" field.
func (p *Player) Search(ctx context.Context, query string) ([]mopidy.SearchResult, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	return p.conn.Search(ctx, map[string][]string{"any": tokens})
}
