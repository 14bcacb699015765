package autocomplete

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/subsonic"
	"github.com/sonroyaalmerol/kumasonic/internal/utils"
)

// Discord rejects choice names and values longer than this.
const maxChoiceLen = 100

type Library interface {
	Search(ctx context.Context, query string, n subsonic.SearchCounts) (*subsonic.SearchResult, error)
	GetPlaylists(ctx context.Context) ([]subsonic.Playlist, error)
}

// Suggest builds /play choices from the library. The choice value is a query
// that finds the suggested item again.
func Suggest(ctx context.Context, lib Library, query string, kind media.Kind, limit int) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if limit <= 0 || limit > 25 {
		limit = 25
	}
	query = strings.TrimSpace(query)
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	if query == "" || looksLikeLink(query) {
		return out, nil
	}

	switch kind {
	case media.KindPlaylist:
		lists, err := lib.GetPlaylists(ctx)
		if err != nil {
			return out, err
		}
		want := strings.ToLower(query)
		for _, pl := range lists {
			if len(out) == limit {
				break
			}
			if strings.Contains(strings.ToLower(pl.Name), want) {
				out = append(out, choice("📜 "+pl.Name, pl.Name))
			}
		}
	case media.KindAlbum:
		res, err := lib.Search(ctx, query, subsonic.SearchCounts{Albums: limit})
		if err != nil {
			return out, err
		}
		for _, a := range res.Album {
			out = append(out, choice("💿 "+joinArtist(a.Name, a.Artist), a.Name))
		}
	default:
		res, err := lib.Search(ctx, query, subsonic.SearchCounts{Songs: limit})
		if err != nil {
			return out, err
		}
		for _, s := range res.Song {
			out = append(out, choice("🎵 "+joinArtist(s.Title, s.Artist), strings.TrimSpace(s.Title+" "+s.Artist)))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func choice(name, value string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{
		Name:  utils.Truncate(name, maxChoiceLen),
		Value: utils.Truncate(value, maxChoiceLen),
	}
}

func joinArtist(name, artist string) string {
	if artist == "" {
		return name
	}
	return name + " - " + artist
}

func looksLikeLink(q string) bool {
	return strings.Contains(q, "://") || strings.HasPrefix(q, "spotify:")
}
