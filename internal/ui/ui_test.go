package ui

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/player"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		elapsed, total int
		knob           int
	}{
		{0, 200, 0},
		{110, 200, 5},
		{200, 200, 9},
		{900, 200, 9},
		{-3, 200, 0},
		{45, 0, 0},
	}
	for _, tt := range tests {
		bar := []rune(progressBar(10, tt.elapsed, tt.total))
		if len(bar) != 10 {
			t.Fatalf("progressBar(10, %d, %d) has %d runes", tt.elapsed, tt.total, len(bar))
		}
		if bar[tt.knob] != '🔘' {
			t.Errorf("progressBar(10, %d, %d) = %q, want knob at %d", tt.elapsed, tt.total, string(bar), tt.knob)
		}
	}
	if progressBar(0, 1, 2) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		total, page, size int
		begin, end, max   int
		err               error
	}{
		{total: 0, page: 1, size: 10, begin: 0, end: 0, max: 1},
		{total: 25, page: 1, size: 10, begin: 0, end: 10, max: 3},
		{total: 25, page: 3, size: 10, begin: 20, end: 25, max: 3},
		{total: 25, page: 4, size: 10, max: 3, err: ErrPageOutOfRange},
		{total: 5, page: 0, size: 10, max: 1, err: ErrPageOutOfRange},
		{total: 3, page: 2, size: 0, begin: 1, end: 2, max: 3},
	}
	for _, tt := range tests {
		b, e, m, err := PageBounds(tt.total, tt.page, tt.size)
		if !errors.Is(err, tt.err) || m != tt.max || (tt.err == nil && (b != tt.begin || e != tt.end)) {
			t.Errorf("PageBounds(%d,%d,%d) = %d,%d,%d,%v", tt.total, tt.page, tt.size, b, e, m, err)
		}
	}
}

func TestQueueEmbed(t *testing.T) {
	cur := media.TrackRef{ID: "1", Title: "Blue Train", Artist: "John Coltrane", Duration: 643}
	snap := player.Snapshot{
		GuildID:    "g",
		NowPlaying: &cur,
		Status:     player.StatusPlaying,
		Queue: []media.TrackRef{
			{ID: "2", Title: "Moment's Notice", Duration: 550},
			{ID: "3", Title: "Locomotion", Duration: 434},
			{ID: "4", Title: "I'm Old Fashioned", Duration: 479},
		},
		VolumePercent: 100,
	}

	embed, err := QueueEmbed(snap, 30, 2, 2)
	if err != nil {
		t.Fatalf("QueueEmbed: %v", err)
	}
	if !strings.Contains(embed.Description, "Blue Train") {
		t.Errorf("description misses current track: %q", embed.Description)
	}
	if !strings.Contains(embed.Description, "`3.` **I'm Old Fashioned**") {
		t.Errorf("page 2 should list the third queued track: %q", embed.Description)
	}
	if strings.Contains(embed.Description, "Locomotion") {
		t.Errorf("page 2 lists a page 1 track: %q", embed.Description)
	}
	if got := embed.Fields[0].Value; got != "3 songs" {
		t.Errorf("In queue = %q", got)
	}
	if got := embed.Fields[1].Value; got != "24:23" {
		t.Errorf("Total length = %q", got)
	}

	if _, err := QueueEmbed(player.Snapshot{}, 0, 1, 10); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("empty queue err = %v", err)
	}
	if _, err := QueueEmbed(snap, 0, 9, 10); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("out of range err = %v", err)
	}
}

func TestNowPlayingEmbed(t *testing.T) {
	if e := NowPlayingEmbed(player.Snapshot{}, 0); e.Title != "Nothing Playing" {
		t.Errorf("idle title = %q", e.Title)
	}
	cur := media.TrackRef{ID: "yt:abc", Title: "Clip", Duration: 100}
	e := NowPlayingEmbed(player.Snapshot{NowPlaying: &cur, Status: player.StatusPaused, VolumePercent: 40}, 50)
	if e.Title != "Paused" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Description, "0:50/1:40") {
		t.Errorf("description = %q", e.Description)
	}
	if !strings.Contains(e.Footer.Text, "YouTube") || !strings.Contains(e.Footer.Text, "40%") {
		t.Errorf("footer = %q", e.Footer.Text)
	}
}

func TestSearchEmbedTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	e := SearchEmbed(long, nil)
	if n := utf8.RuneCountInString(e.Title); n > len("Results for ")+200 {
		t.Errorf("title has %d runes", n)
	}
	if !strings.Contains(e.Description, "no results") {
		t.Errorf("description = %q", e.Description)
	}
}
