package subsonic

import (
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

const (
	apiVersion = "1.16.1"

	codeNotFound = 70
)

// APIError is a failed subsonic-response.
type APIError struct {
	Code    int    `json:"code" xml:"code,attr"`
	Message string `json:"message" xml:"message,attr"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("subsonic error %d: %s", e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == catalog.ErrNotFound && e.Code == codeNotFound
}

var ErrBadResponse = errors.New("malformed subsonic response")

type envelope struct {
	Response response `json:"subsonic-response"`
}

type response struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	Type          string        `json:"type"`
	ServerVersion string        `json:"serverVersion"`
	Error         *APIError     `json:"error"`
	SearchResult3 *SearchResult `json:"searchResult3"`
	Album         *Album        `json:"album"`
	Playlists     *struct {
		Playlist []Playlist `json:"playlist"`
	} `json:"playlists"`
	Playlist *Playlist `json:"playlist"`
}

// xmlResponse decodes the XML error bodies some servers send from media
// endpoints even when f=json is requested.
type xmlResponse struct {
	Status string    `xml:"status,attr"`
	Error  *APIError `xml:"error"`
}

type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
	Suffix   string `json:"suffix"`
	Size     int64  `json:"size"`
}

func (s Song) TrackRef() media.TrackRef {
	return media.TrackRef{ID: s.ID, Title: s.Title, Artist: s.Artist, Album: s.Album, Duration: s.Duration}
}

type Album struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	SongCount int    `json:"songCount"`
	Song      []Song `json:"song"`
}

type Artist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
}

type Playlist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	SongCount int    `json:"songCount"`
	Entry     []Song `json:"entry"`
}

type SearchResult struct {
	Artist []Artist `json:"artist"`
	Album  []Album  `json:"album"`
	Song   []Song   `json:"song"`
}

// SearchCounts limits each result kind of a search3 call.
type SearchCounts struct {
	Songs, Albums, Artists int
}
