package media

import "strings"

// YouTubePrefix marks track ids served by yt-dlp instead of the Subsonic server.
const YouTubePrefix = "yt:"

// TrackRef identifies a playable unit in the catalog. Two refs are the same
// track when their IDs match.
type TrackRef struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration int // seconds, 0 when unknown
}

func (t TrackRef) Same(o TrackRef) bool { return t.ID == o.ID }

func (t TrackRef) IsYouTube() bool { return strings.HasPrefix(t.ID, YouTubePrefix) }

// Display is the human readable "Title - Artist" form used in replies and logs.
func (t TrackRef) Display() string {
	title := t.Title
	if title == "" {
		title = t.ID
	}
	if t.Artist == "" {
		return title
	}
	return title + " - " + t.Artist
}

// Resource is a cached, ready-to-stream file for one track id.
type Resource struct {
	TrackID string
	Path    string
	Size    int64
}

type Kind string

const (
	KindSong     Kind = "song"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
)

func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAlbum:
		return KindAlbum
	case KindPlaylist:
		return KindPlaylist
	default:
		return KindSong
	}
}
