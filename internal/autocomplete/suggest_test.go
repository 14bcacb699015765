package autocomplete

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/subsonic"
)

type fakeLibrary struct {
	res      subsonic.SearchResult
	lists    []subsonic.Playlist
	err      error
	searches int
}

func (f *fakeLibrary) Search(_ context.Context, _ string, n subsonic.SearchCounts) (*subsonic.SearchResult, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	res := f.res
	if len(res.Song) > n.Songs {
		res.Song = res.Song[:n.Songs]
	}
	if len(res.Album) > n.Albums {
		res.Album = res.Album[:n.Albums]
	}
	return &res, nil
}

func (f *fakeLibrary) GetPlaylists(context.Context) ([]subsonic.Playlist, error) {
	return f.lists, f.err
}

func TestSuggestSongs(t *testing.T) {
	lib := &fakeLibrary{res: subsonic.SearchResult{Song: []subsonic.Song{
		{ID: "1", Title: "Naima", Artist: "John Coltrane"},
		{ID: "2", Title: strings.Repeat("long", 40)},
	}}}
	got, err := Suggest(context.Background(), lib, "naima", media.KindSong, 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d choices", len(got))
	}
	if got[0].Name != "🎵 Naima - John Coltrane" || got[0].Value != "Naima John Coltrane" {
		t.Errorf("choice = %+v", got[0])
	}
	if n := len([]rune(got[1].Name)); n > maxChoiceLen {
		t.Errorf("name has %d runes", n)
	}
	if v := got[1].Value.(string); len([]rune(v)) > maxChoiceLen {
		t.Errorf("value has %d runes", len([]rune(v)))
	}
}

func TestSuggestAlbumsAndPlaylists(t *testing.T) {
	lib := &fakeLibrary{
		res:   subsonic.SearchResult{Album: []subsonic.Album{{ID: "a", Name: "Giant Steps", Artist: "John Coltrane"}}},
		lists: []subsonic.Playlist{{ID: "p1", Name: "Late Night Jazz"}, {ID: "p2", Name: "Gym"}},
	}
	albums, _ := Suggest(context.Background(), lib, "giant", media.KindAlbum, 5)
	if len(albums) != 1 || albums[0].Value != "Giant Steps" {
		t.Errorf("albums = %+v", albums)
	}
	lists, _ := Suggest(context.Background(), lib, "JAZZ", media.KindPlaylist, 5)
	if len(lists) != 1 || lists[0].Value != "Late Night Jazz" {
		t.Errorf("playlists = %+v", lists)
	}
}

func TestSuggestSkipsLinksAndBlank(t *testing.T) {
	lib := &fakeLibrary{}
	for _, q := range []string{"", "   ", "https://youtu.be/x", "spotify:track:abc"} {
		got, err := Suggest(context.Background(), lib, q, media.KindSong, 5)
		if err != nil || len(got) != 0 {
			t.Errorf("Suggest(%q) = %v, %v", q, got, err)
		}
	}
	if lib.searches != 0 {
		t.Errorf("library searched %d times", lib.searches)
	}
}

func TestSuggestError(t *testing.T) {
	boom := errors.New("down")
	got, err := Suggest(context.Background(), &fakeLibrary{err: boom}, "x", media.KindSong, 5)
	if !errors.Is(err, boom) || got == nil {
		t.Errorf("Suggest = %v, %v", got, err)
	}
}
