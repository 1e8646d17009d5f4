package player

import "multiroom-ws/internal/mopidy"

// PlaceholderArt is served when the library reports no cover for a track.
const PlaceholderArt = "/assets/img/cover-placeholder.png"

// State is the normalized now-playing snapshot for one instance. It is
// always a complete record: when no track is active the fields carry the
// sentinel values from emptyState, never partial data.
type State struct {
	Title    string `json:"title"`
	Album    string `json:"album"`
	Artist   string `json:"artist"`
	LengthMs int    `json:"length_ms"`
	ArtURI   string `json:"art_uri"`
	TrackURI string `json:"track_uri"`
	Playback string `json:"playback"`
	Repeat   bool   `json:"repeat"`
	Random   bool   `json:"random"`
	TLID     int    `json:"tlid"`
}

func emptyState() State {
	return State{
		Playback: mopidy.PlaybackStopped,
		ArtURI:   PlaceholderArt,
		TLID:     -1,
	}
}
