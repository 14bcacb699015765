package subsonic

import (
	"context"
	"fmt"
	"strings"

	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

// Find implements catalog.Searcher. Playlists are matched by case-insensitive
// substring on their name since search3 does not cover them.
func (c *Client) Find(ctx context.Context, query string, kind media.Kind, limit int) ([]media.TrackRef, error) {
	if limit <= 0 {
		limit = 10
	}
	switch kind {
	case media.KindAlbum:
		res, err := c.Search(ctx, query, SearchCounts{Albums: 1})
		if err != nil {
			return nil, err
		}
		if len(res.Album) == 0 {
			return nil, fmt.Errorf("album %q: %w", query, catalog.ErrNotFound)
		}
		album, err := c.GetAlbum(ctx, res.Album[0].ID)
		if err != nil {
			return nil, err
		}
		return songRefs(album.Song, limit), nil

	case media.KindPlaylist:
		lists, err := c.GetPlaylists(ctx)
		if err != nil {
			return nil, err
		}
		want := strings.ToLower(query)
		for _, pl := range lists {
			if !strings.Contains(strings.ToLower(pl.Name), want) {
				continue
			}
			full, err := c.GetPlaylist(ctx, pl.ID)
			if err != nil {
				return nil, err
			}
			return songRefs(full.Entry, limit), nil
		}
		return nil, fmt.Errorf("playlist %q: %w", query, catalog.ErrNotFound)

	default:
		res, err := c.Search(ctx, query, SearchCounts{Songs: limit})
		if err != nil {
			return nil, err
		}
		if len(res.Song) == 0 {
			return nil, fmt.Errorf("song %q: %w", query, catalog.ErrNotFound)
		}
		return songRefs(res.Song, limit), nil
	}
}

func songRefs(songs []Song, limit int) []media.TrackRef {
	if limit > 0 && len(songs) > limit {
		songs = songs[:limit]
	}
	out := make([]media.TrackRef, 0, len(songs))
	for _, s := range songs {
		if s.ID == "" {
			continue
		}
		out = append(out, s.TrackRef())
	}
	return out
}
