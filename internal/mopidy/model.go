package mopidy

// Artist is a track credit as reported by the library.
type Artist struct {
	URI  string `json:"uri,omitempty"`
	Name string `json:"name"`
}

// Album groups tracks and carries the album-level name used on the
// now-playing display.
type Album struct {
	URI  string `json:"uri,omitempty"`
	Name string `json:"name"`
}

// Track is the library's track model. Length is in milliseconds.
type Track struct {
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Album   *Album   `json:"album,omitempty"`
	Artists []Artist `json:"artists,omitempty"`
	Length  int      `json:"length,omitempty"`
}

// TlTrack is a tracklist entry: the track plus the tlid that disambiguates
// duplicate queue entries of the same track.
type TlTrack struct {
	TLID  int   `json:"tlid"`
	Track Track `json:"track"`
}

// Image is one cover-art candidate returned by the library.
type Image struct {
	URI    string `json:"uri"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Ref is a lightweight reference to a browsable object, as returned by
// core.playlists.get_items.
type Ref struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Playlist is a stored playlist reference.
type Playlist struct {
	URI    string  `json:"uri"`
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks,omitempty"`
}

// SearchResult is one backend's contribution to a library search.
type SearchResult struct {
	URI    string  `json:"uri"`
	Tracks []Track `json:"tracks,omitempty"`
	Albums []Album `json:"albums,omitempty"`
}

// Playback state strings as reported by core.playback.get_state.
const (
	PlaybackPlaying = "playing"
	PlaybackPaused  = "paused"
	PlaybackStopped = "stopped"
)

// Event names pushed by the server. Only the ones this layer reacts to are
// listed; anything else is delivered verbatim and ignored upstream.
const (
	EventTracklistChanged     = "tracklist_changed"
	EventTrackPlaybackStarted = "track_playback_started"
	EventTrackPlaybackEnded   = "track_playback_ended"
	EventPlaybackStateChanged = "playback_state_changed"
	EventOptionsChanged       = "options_changed"
	EventStreamTitleChanged   = "stream_title_changed"
)
