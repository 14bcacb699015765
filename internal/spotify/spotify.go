package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNotSpotify = errors.New("not a spotify link")

type Track struct {
	Name   string
	Artist string
}

// SearchTerm is the "name artist" string used to find the track in the library.
func (t Track) SearchTerm() string {
	return strings.TrimSpace(t.Name + " " + t.Artist)
}

// Client expands Spotify links into track names. It only reads public
// catalog data, so client credentials are enough.
type Client struct {
	raw    *spotify.Client
	market string
}

func NewClientCredentials(clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("spotify client id and secret required")
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(context.Background())
	cl := spotify.New(httpClient, spotify.WithRetry(true))
	return &Client{raw: cl, market: "US"}, nil
}

func ParseID(raw string) (typ string, id spotify.ID, err error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", fmt.Errorf("invalid spotify URI: %w", ErrNotSpotify)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", ErrNotSpotify
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", ErrNotSpotify
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// localized links look like /intl-de/track/<id>
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid spotify URL path: %w", ErrNotSpotify)
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type %q: %w", parts[0], ErrNotSpotify)
}

func (c *Client) IsLink(s string) bool {
	_, _, err := ParseID(s)
	return err == nil
}

// SearchTerms implements catalog.LinkExpander.
func (c *Client) SearchTerms(ctx context.Context, link string, limit int) ([]string, error) {
	tracks, err := c.Tracks(ctx, link, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.SearchTerm())
	}
	return out, nil
}

// Tracks lists the tracks behind a track, album, playlist or artist link.
// Artist links give the artist's top tracks.
func (c *Client) Tracks(ctx context.Context, link string, limit int) ([]Track, error) {
	typ, id, err := ParseID(link)
	if err != nil {
		return nil, err
	}
	var out []Track
	switch typ {
	case "track":
		t, err := c.raw.GetTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		out = []Track{{Name: t.Name, Artist: firstArtist(t.Artists)}}
	case "album":
		out, err = c.albumTracks(ctx, id, limit)
	case "playlist":
		out, err = c.playlistTracks(ctx, id, limit)
	case "artist":
		out, err = c.artistTop(ctx, id, limit)
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("expanded spotify link", "type", typ, "id", id, "tracks", len(out))
	return out, nil
}

func (c *Client) albumTracks(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Track, 0, page.Total)
	for {
		for _, t := range page.Tracks {
			if full(out, limit) {
				return out, nil
			}
			out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
		}
		if page.Next == "" || full(out, limit) {
			return out, nil
		}
		if err := c.raw.NextPage(ctx, page); err != nil {
			return out, nil
		}
	}
}

func (c *Client) playlistTracks(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Track, 0, page.Total)
	for {
		for _, it := range page.Items {
			t := it.Track.Track
			if t == nil {
				continue
			}
			if full(out, limit) {
				return out, nil
			}
			out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
		}
		if page.Next == "" || full(out, limit) {
			return out, nil
		}
		if err := c.raw.NextPage(ctx, page); err != nil {
			return out, nil
		}
	}
}

func (c *Client) artistTop(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	top, err := c.raw.GetArtistsTopTracks(ctx, id, c.market)
	if err != nil {
		return nil, err
	}
	out := make([]Track, 0, len(top))
	for _, t := range top {
		if full(out, limit) {
			break
		}
		out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
	}
	return out, nil
}

func full(out []Track, limit int) bool { return limit > 0 && len(out) >= limit }

func firstArtist(as []spotify.SimpleArtist) string {
	if len(as) == 0 {
		return ""
	}
	return as[0].Name
}
