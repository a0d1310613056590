package mpris

import (
	"testing"

	"github.com/genricoloni/spotbar/internal/domain"
	"github.com/godbus/dbus/v5"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name        string
		variant     dbus.Variant
		expectError bool
		expected    domain.TrackInfo
	}{
		{
			name: "All fields",
			variant: dbus.MakeVariant(map[string]dbus.Variant{
				"xesam:title":  dbus.MakeVariant("Bohemian Rhapsody"),
				"xesam:artist": dbus.MakeVariant([]string{"Queen"}),
				"xesam:album":  dbus.MakeVariant("A Night at the Opera"),
			}),
			expected: domain.TrackInfo{Artists: []string{"Queen"}, Title: "Bohemian Rhapsody", Album: "A Night at the Opera"},
		},
		{
			name:     "Empty map",
			variant:  dbus.MakeVariant(map[string]dbus.Variant{}),
			expected: domain.TrackInfo{},
		},
		{
			name: "Artist as String (Non-compliant)",
			variant: dbus.MakeVariant(map[string]dbus.Variant{
				"xesam:artist": dbus.MakeVariant("Single Artist"),
			}),
			expected: domain.TrackInfo{Artists: []string{"Single Artist"}},
		},
		{
			name: "Extra keys ignored",
			variant: dbus.MakeVariant(map[string]dbus.Variant{
				"mpris:artUrl": dbus.MakeVariant("https://example.com/cover.jpg"),
				"mpris:length": dbus.MakeVariant(int64(354000000)),
				"xesam:title":  dbus.MakeVariant("Song"),
			}),
			expected: domain.TrackInfo{Title: "Song"},
		},
		{
			name:        "Metadata is Int not Map",
			variant:     dbus.MakeVariant(12345),
			expectError: true,
		},
		{
			name: "Title has wrong type",
			variant: dbus.MakeVariant(map[string]dbus.Variant{
				"xesam:title": dbus.MakeVariant(42),
			}),
			expectError: true,
		},
		{
			name: "Album has wrong type",
			variant: dbus.MakeVariant(map[string]dbus.Variant{
				"xesam:album": dbus.MakeVariant([]string{"A", "B"}),
			}),
			expectError: true,
		},
		{
			name: "Artist has wrong type",
			variant: dbus.MakeVariant(map[string]dbus.Variant{
				"xesam:artist": dbus.MakeVariant(int32(7)),
			}),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMetadata(tt.variant)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.String() != tt.expected.String() {
				t.Errorf("Track mismatch: want %q, got %q", tt.expected.String(), got.String())
			}
		})
	}
}
