package spotify

import (
	"errors"
	"testing"

	"github.com/zmb3/spotify/v2"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		typ     string
		id      spotify.ID
		wantErr bool
	}{
		{in: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", typ: "track", id: "4uLU6hMCjMI75M1A2tKUQC"},
		{in: "https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3?si=abc", typ: "album", id: "1DFixLWuPkv3KT3TnV35m3"},
		{in: "https://open.spotify.com/intl-de/playlist/37i9dQZF1DXcBWIGoYBM5M", typ: "playlist", id: "37i9dQZF1DXcBWIGoYBM5M"},
		{in: "https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF", typ: "artist", id: "0OdUWJ0sBjDrqHygGUXeCF"},
		{in: "https://open.spotify.com/show/abc", wantErr: true},
		{in: "https://youtu.be/abc", wantErr: true},
		{in: "spotify:track", wantErr: true},
		{in: "blue train coltrane", wantErr: true},
	}
	for _, tt := range tests {
		typ, id, err := ParseID(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrNotSpotify) {
				t.Errorf("ParseID(%q) err = %v, want ErrNotSpotify", tt.in, err)
			}
			continue
		}
		if err != nil || typ != tt.typ || id != tt.id {
			t.Errorf("ParseID(%q) = %q, %q, %v", tt.in, typ, id, err)
		}
	}
}

func TestSearchTerm(t *testing.T) {
	if got := (Track{Name: "Naima", Artist: "John Coltrane"}).SearchTerm(); got != "Naima John Coltrane" {
		t.Errorf("SearchTerm = %q", got)
	}
	if got := (Track{Name: "Untitled"}).SearchTerm(); got != "Untitled" {
		t.Errorf("SearchTerm without artist = %q", got)
	}
}
