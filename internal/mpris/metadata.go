package mpris

import (
	"errors"
	"fmt"

	"github.com/genricoloni/spotbar/internal/domain"
	"github.com/godbus/dbus/v5"
)

// ErrMalformedMetadata is returned when the player reports metadata we can't read
var ErrMalformedMetadata = errors.New("malformed metadata")

// xesam keys read from the Metadata map
const (
	keyArtist = "xesam:artist"
	keyTitle  = "xesam:title"
	keyAlbum  = "xesam:album"
)

// parseMetadata converts the MPRIS Metadata property to a TrackInfo.
// Missing keys are left empty; keys present with an unexpected type fail.
func parseMetadata(v dbus.Variant) (domain.TrackInfo, error) {
	var track domain.TrackInfo

	metadata, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return track, fmt.Errorf("%w: metadata is %T, not a map", ErrMalformedMetadata, v.Value())
	}

	if artistVar, ok := metadata[keyArtist]; ok {
		switch artists := artistVar.Value().(type) {
		case []string:
			track.Artists = artists
		case string:
			// Some non-compliant players send a single string
			track.Artists = []string{artists}
		default:
			return track, fmt.Errorf("%w: %s is %T", ErrMalformedMetadata, keyArtist, artistVar.Value())
		}
	}

	title, err := stringField(metadata, keyTitle)
	if err != nil {
		return track, err
	}
	track.Title = title

	album, err := stringField(metadata, keyAlbum)
	if err != nil {
		return track, err
	}
	track.Album = album

	return track, nil
}

func stringField(metadata map[string]dbus.Variant, key string) (string, error) {
	v, ok := metadata[key]
	if !ok {
		return "", nil
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrMalformedMetadata, key, v.Value())
	}
	return s, nil
}
