package youtube

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/sonroyaalmerol/kumasonic/internal/config"
)

func ptr[T any](v T) *T { return &v }

func TestHandles(t *testing.T) {
	c := New(&config.Config{CacheDir: t.TempDir()})
	tests := map[string]bool{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":   true,
		"https://youtu.be/dQw4w9WgXcQ":                  true,
		"https://music.youtube.com/playlist?list=PL123": true,
		"https://open.spotify.com/track/abc":            false,
		"never gonna give you up":                       false,
		"":                                              false,
	}
	for q, want := range tests {
		if got := c.Handles(q); got != want {
			t.Errorf("Handles(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestIsPlaylistURL(t *testing.T) {
	tests := map[string]bool{
		"https://www.youtube.com/playlist?list=PL1":    true,
		"https://www.youtube.com/watch?list=PL1":       true,
		"https://www.youtube.com/watch?v=abc&list=PL1": false,
		"https://www.youtube.com/watch?v=abc":          false,
	}
	for q, want := range tests {
		if got := isPlaylistURL(q); got != want {
			t.Errorf("isPlaylistURL(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestAppendInfo(t *testing.T) {
	info := &ytdlp.ExtractedInfo{
		Entries: []*ytdlp.ExtractedInfo{
			{ID: "a", Title: ptr("First"), Uploader: ptr("Chan"), Duration: ptr(61.7)},
			nil,
			{ID: "live", IsLive: ptr(true)},
			{ID: "b"},
		},
	}
	got := appendInfo(nil, info)
	var ids []string
	for _, tr := range got {
		ids = append(ids, tr.ID)
	}
	if !reflect.DeepEqual(ids, []string{"yt:a", "yt:b"}) {
		t.Fatalf("ids = %v", ids)
	}
	if got[0].Title != "First" || got[0].Artist != "Chan" || got[0].Duration != 61 {
		t.Errorf("first = %+v", got[0])
	}
}

func TestScratchFileRemovedOnClose(t *testing.T) {
	dir := t.TempDir()
	base := "yt-test"
	for _, name := range []string{base + ".webm.part", base + ".webm"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	path, err := findOutput(dir, base)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != base+".webm" {
		t.Fatalf("findOutput = %s", path)
	}
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	sf := &scratchFile{File: fh}
	if err := sf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("scratch file still exists: %v", err)
	}

	removeMatching(dir, base)
	if left, _ := filepath.Glob(filepath.Join(dir, base+".*")); len(left) != 0 {
		t.Errorf("removeMatching left %v", left)
	}
}
