package catalog

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

type fakeBackend struct {
	name      string
	results   map[string][]media.TrackRef
	downloads []string
	prefix    string
}

func (b *fakeBackend) Download(_ context.Context, id string) (io.ReadCloser, error) {
	b.downloads = append(b.downloads, id)
	return io.NopCloser(strings.NewReader(b.name)), nil
}

func (b *fakeBackend) Find(_ context.Context, q string, _ media.Kind, _ int) ([]media.TrackRef, error) {
	if r, ok := b.results[q]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func (b *fakeBackend) Handles(q string) bool { return b.prefix != "" && strings.HasPrefix(q, b.prefix) }

type fakeLinks struct{ terms []string }

func (l fakeLinks) IsLink(s string) bool { return strings.HasPrefix(s, "https://open.spotify.com/") }

func (l fakeLinks) SearchTerms(context.Context, string, int) ([]string, error) { return l.terms, nil }

func ids(ts []media.TrackRef) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestRouterDownload(t *testing.T) {
	lib := &fakeBackend{name: "lib"}
	yt := &fakeBackend{name: "yt"}
	r := NewRouter(lib, WithYouTube(yt))
	ctx := context.Background()

	r.Download(ctx, "abc")
	r.Download(ctx, "yt:dQw4w9WgXcQ")
	if !reflect.DeepEqual(lib.downloads, []string{"abc"}) || !reflect.DeepEqual(yt.downloads, []string{"yt:dQw4w9WgXcQ"}) {
		t.Errorf("library=%v youtube=%v", lib.downloads, yt.downloads)
	}

	bare := NewRouter(lib)
	if _, err := bare.Download(ctx, "yt:x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestRouterFind(t *testing.T) {
	lib := &fakeBackend{results: map[string][]media.TrackRef{
		"song a":       {{ID: "1"}, {ID: "2"}},
		"Song B Band":  {{ID: "b"}},
		"Song C Group": {{ID: "c"}},
	}}
	yt := &fakeBackend{prefix: "https://youtu.be/", results: map[string][]media.TrackRef{
		"https://youtu.be/x": {{ID: "yt:x"}},
		"obscure":            {{ID: "yt:o"}},
	}}
	links := fakeLinks{terms: []string{"Song B Band", "missing", "Song C Group"}}

	tests := []struct {
		name    string
		router  *Router
		query   string
		kind    media.Kind
		want    []string
		wantErr error
	}{
		{"library", NewRouter(lib), "song a", media.KindSong, []string{"1", "2"}, nil},
		{"miss without youtube", NewRouter(lib), "obscure", media.KindSong, nil, ErrNotFound},
		{"empty query", NewRouter(lib), "  ", media.KindSong, nil, ErrNotFound},
		{"youtube url", NewRouter(lib, WithYouTube(yt)), "https://youtu.be/x", media.KindSong, []string{"yt:x"}, nil},
		{"youtube fallback", NewRouter(lib, WithYouTube(yt)), "obscure", media.KindSong, []string{"yt:o"}, nil},
		{"no fallback for albums", NewRouter(lib, WithYouTube(yt)), "obscure", media.KindAlbum, nil, ErrNotFound},
		{"spotify link", NewRouter(lib, WithLinkExpander(links)), "https://open.spotify.com/album/1", media.KindSong, []string{"b", "c"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.router.Find(context.Background(), tt.query, tt.kind, 10)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("got %v, want %v", ids(got), tt.want)
			}
		})
	}
}
