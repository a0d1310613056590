package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlaybackStatus(t *testing.T) {
	tests := []struct {
		input string
		want  PlaybackStatus
	}{
		{"Playing", StatusPlaying},
		{"playing", StatusPlaying},
		{"PAUSED", StatusPaused},
		{"Stopped", StatusStopped},
		{"sToPpEd", StatusStopped},
		{"", StatusUnknown},
		{"Buffering", StatusUnknown},
		{" Playing", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePlaybackStatus(tt.input))
		})
	}
}

func TestTrackInfo_String(t *testing.T) {
	tests := []struct {
		name  string
		track TrackInfo
		want  string
	}{
		{
			name:  "All fields present",
			track: TrackInfo{Artists: []string{"Queen"}, Title: "Bohemian Rhapsody", Album: "A Night at the Opera"},
			want:  "Queen: Bohemian Rhapsody - A Night at the Opera",
		},
		{
			name:  "Multiple artists",
			track: TrackInfo{Artists: []string{"Daft Punk", "Pharrell Williams"}, Title: "Get Lucky", Album: "Random Access Memories"},
			want:  "Daft Punk, Pharrell Williams: Get Lucky - Random Access Memories",
		},
		{
			name:  "Nothing known",
			track: TrackInfo{},
			want:  "Unknown: Unknown track - Unknown album",
		},
		{
			name:  "Blank artist entries are skipped",
			track: TrackInfo{Artists: []string{"", "Nina Simone"}, Title: "Sinnerman"},
			want:  "Nina Simone: Sinnerman - Unknown album",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.track.String())
		})
	}
}

// Every combination of present/absent fields renders three non-empty segments.
func TestTrackInfo_String_NoEmptySegments(t *testing.T) {
	artistOptions := [][]string{nil, {}, {""}, {"Artist"}}
	titleOptions := []string{"", "Title"}
	albumOptions := []string{"", "Album"}

	for _, artists := range artistOptions {
		for _, title := range titleOptions {
			for _, album := range albumOptions {
				s := TrackInfo{Artists: artists, Title: title, Album: album}.String()

				artistPart, rest, ok := strings.Cut(s, ": ")
				assert.True(t, ok, s)
				titlePart, albumPart, ok := strings.Cut(rest, " - ")
				assert.True(t, ok, s)

				assert.NotEmpty(t, artistPart, s)
				assert.NotEmpty(t, titlePart, s)
				assert.NotEmpty(t, albumPart, s)
			}
		}
	}
}
