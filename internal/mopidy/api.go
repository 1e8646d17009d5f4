package mopidy

import (
	"context"
	"encoding/json"
	"fmt"
)

// API is the fixed core method surface this layer depends on. The server
// advertises its methods dynamically; rather than synthesizing calls at
// runtime, the surface is hand-written and verified against core.describe on
// connect.
type API interface {
	CurrentTLTrack(ctx context.Context) (*TlTrack, error)
	PlaybackState(ctx context.Context) (string, error)
	Play(ctx context.Context, tlid *int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) (bool, error)
	Position(ctx context.Context) (int, error)

	AddURIs(ctx context.Context, uris []string, at *int) ([]TlTrack, error)
	Remove(ctx context.Context, tlids []int) ([]TlTrack, error)
	Move(ctx context.Context, start, end, to int) error
	Clear(ctx context.Context) error
	TLTracks(ctx context.Context) ([]TlTrack, error)
	GetRepeat(ctx context.Context) (bool, error)
	GetRandom(ctx context.Context) (bool, error)
	SetRepeat(ctx context.Context, value bool) error
	SetRandom(ctx context.Context, value bool) error

	CreatePlaylist(ctx context.Context, name string) (*Playlist, error)
	SavePlaylist(ctx context.Context, playlist *Playlist) (*Playlist, error)
	DeletePlaylist(ctx context.Context, uri string) error
	PlaylistItems(ctx context.Context, uri string) ([]Ref, error)

	Search(ctx context.Context, query map[string][]string) ([]SearchResult, error)
	GetImages(ctx context.Context, uris []string) (map[string][]Image, error)
}

var _ API = (*Client)(nil)

// coreMethods is the compatibility-check list matching the API surface.
var coreMethods = []string{
	"core.playback.get_current_tl_track",
	"core.playback.get_state",
	"core.playback.play",
	"core.playback.pause",
	"core.playback.resume",
	"core.playback.stop",
	"core.playback.next",
	"core.playback.previous",
	"core.playback.seek",
	"core.playback.get_time_position",
	"core.tracklist.add",
	"core.tracklist.remove",
	"core.tracklist.move",
	"core.tracklist.clear",
	"core.tracklist.get_tl_tracks",
	"core.tracklist.get_repeat",
	"core.tracklist.get_random",
	"core.tracklist.set_repeat",
	"core.tracklist.set_random",
	"core.playlists.create",
	"core.playlists.save",
	"core.playlists.delete",
	"core.playlists.get_items",
	"core.library.search",
	"core.library.get_images",
}

// call invokes a method and decodes the result into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) CurrentTLTrack(ctx context.Context) (*TlTrack, error) {
	var tl *TlTrack
	err := c.call(ctx, "core.playback.get_current_tl_track", nil, &tl)
	return tl, err
}

func (c *Client) PlaybackState(ctx context.Context) (string, error) {
	var state string
	err := c.call(ctx, "core.playback.get_state", nil, &state)
	return state, err
}

func (c *Client) Play(ctx context.Context, tlid *int) error {
	params := map[string]any{}
	if tlid != nil {
		params["tlid"] = *tlid
	}
	return c.call(ctx, "core.playback.play", params, nil)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, "core.playback.pause", nil, nil)
}

func (c *Client) Resume(ctx context.Context) error {
	return c.call(ctx, "core.playback.resume", nil, nil)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.call(ctx, "core.playback.stop", nil, nil)
}

func (c *Client) Next(ctx context.Context) error {
	return c.call(ctx, "core.playback.next", nil, nil)
}

func (c *Client) Previous(ctx context.Context) error {
	return c.call(ctx, "core.playback.previous", nil, nil)
}

func (c *Client) Seek(ctx context.Context, positionMs int) (bool, error) {
	var ok bool
	err := c.call(ctx, "core.playback.seek", map[string]any{"time_position": positionMs}, &ok)
	return ok, err
}

func (c *Client) Position(ctx context.Context) (int, error) {
	var pos int
	err := c.call(ctx, "core.playback.get_time_position", nil, &pos)
	return pos, err
}

func (c *Client) AddURIs(ctx context.Context, uris []string, at *int) ([]TlTrack, error) {
	params := map[string]any{"uris": uris}
	if at != nil {
		params["at_position"] = *at
	}
	var added []TlTrack
	err := c.call(ctx, "core.tracklist.add", params, &added)
	return added, err
}

func (c *Client) Remove(ctx context.Context, tlids []int) ([]TlTrack, error) {
	var removed []TlTrack
	err := c.call(ctx, "core.tracklist.remove", map[string]any{"criteria": map[string]any{"tlid": tlids}}, &removed)
	return removed, err
}

func (c *Client) Move(ctx context.Context, start, end, to int) error {
	return c.call(ctx, "core.tracklist.move", map[string]any{"start": start, "end": end, "to_position": to}, nil)
}

func (c *Client) Clear(ctx context.Context) error {
	return c.call(ctx, "core.tracklist.clear", nil, nil)
}

func (c *Client) TLTracks(ctx context.Context) ([]TlTrack, error) {
	var tracks []TlTrack
	err := c.call(ctx, "core.tracklist.get_tl_tracks", nil, &tracks)
	return tracks, err
}

func (c *Client) GetRepeat(ctx context.Context) (bool, error) {
	var v bool
	err := c.call(ctx, "core.tracklist.get_repeat", nil, &v)
	return v, err
}

func (c *Client) GetRandom(ctx context.Context) (bool, error) {
	var v bool
	err := c.call(ctx, "core.tracklist.get_random", nil, &v)
	return v, err
}

func (c *Client) SetRepeat(ctx context.Context, value bool) error {
	return c.call(ctx, "core.tracklist.set_repeat", map[string]any{"value": value}, nil)
}

func (c *Client) SetRandom(ctx context.Context, value bool) error {
	return c.call(ctx, "core.tracklist.set_random", map[string]any{"value": value}, nil)
}

func (c *Client) CreatePlaylist(ctx context.Context, name string) (*Playlist, error) {
	var pl *Playlist
	err := c.call(ctx, "core.playlists.create", map[string]any{"name": name}, &pl)
	return pl, err
}

func (c *Client) SavePlaylist(ctx context.Context, playlist *Playlist) (*Playlist, error) {
	var saved *Playlist
	err := c.call(ctx, "core.playlists.save", map[string]any{"playlist": playlist}, &saved)
	return saved, err
}

func (c *Client) DeletePlaylist(ctx context.Context, uri string) error {
	return c.call(ctx, "core.playlists.delete", map[string]any{"uri": uri}, nil)
}

func (c *Client) PlaylistItems(ctx context.Context, uri string) ([]Ref, error) {
	var items []Ref
	err := c.call(ctx, "core.playlists.get_items", map[string]any{"uri": uri}, &items)
	return items, err
}

// Search queries the library across all backends. The query maps field names
// ("any", "artist", ...) to value lists.
func (c *Client) Search(ctx context.Context, query map[string][]string) ([]SearchResult, error) {
	var results []SearchResult
	err := c.call(ctx, "core.library.search", map[string]any{"query": query}, &results)
	return results, err
}

func (c *Client) GetImages(ctx context.Context, uris []string) (map[string][]Image, error) {
	var images map[string][]Image
	err := c.call(ctx, "core.library.get_images", map[string]any{"uris": uris}, &images)
	return images, err
}
