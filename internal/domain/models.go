package domain

import "strings"

// PlaybackStatus represents the current state of the media player
type PlaybackStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlaybackStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlaybackStatus = "Paused"
	// StatusStopped indicates the media is stopped or the player exited
	StatusStopped PlaybackStatus = "Stopped"
	// StatusUnknown is reported for any value the player sends that we don't recognize
	StatusUnknown PlaybackStatus = "Unknown"
)

// Fallbacks used when a metadata field is missing
const (
	UnknownArtist = "Unknown"
	UnknownTrack  = "Unknown track"
	UnknownAlbum  = "Unknown album"
)

// ParsePlaybackStatus maps a player-reported status string, ignoring case
func ParsePlaybackStatus(s string) PlaybackStatus {
	switch strings.ToLower(s) {
	case "playing":
		return StatusPlaying
	case "paused":
		return StatusPaused
	case "stopped":
		return StatusStopped
	default:
		return StatusUnknown
	}
}

// TrackInfo contains information about the currently playing track.
// Empty fields are rendered with their fallback.
type TrackInfo struct {
	// Artists in the order reported by the player
	Artists []string
	// Title of the track
	Title string
	// Album name
	Album string
}

// String renders the track as "<artists>: <title> - <album>"
func (t TrackInfo) String() string {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a != "" {
			artists = append(artists, a)
		}
	}

	artist := UnknownArtist
	if len(artists) > 0 {
		artist = strings.Join(artists, ", ")
	}

	title := t.Title
	if title == "" {
		title = UnknownTrack
	}

	album := t.Album
	if album == "" {
		album = UnknownAlbum
	}

	return artist + ": " + title + " - " + album
}
