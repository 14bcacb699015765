package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (o options) str(name, def string) string {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionString {
		return v.StringValue()
	}
	return def
}

func (o options) integer(name string, def int) int {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionInteger {
		return int(v.IntValue())
	}
	return def
}

func (o options) boolean(name string, def bool) bool {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionBoolean {
		return v.BoolValue()
	}
	return def
}

func (o options) kind() media.Kind { return media.ParseKind(o.str("kind", "")) }

// focused is the option the user is typing in during autocomplete.
func focused(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range opts {
		if o.Focused {
			return o
		}
	}
	return nil
}

// findLimit is how many tracks a /play query may add. A plain song search
// plays its best match only; albums, playlists and links are capped by the
// guild's playlist limit.
func findLimit(query string, kind media.Kind, playlistLimit int) int {
	if playlistLimit < 1 {
		playlistLimit = 1
	}
	q := strings.TrimSpace(query)
	isLink := strings.Contains(q, "://") || strings.HasPrefix(q, "spotify:")
	if kind == media.KindSong && !isLink {
		return 1
	}
	return playlistLimit
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
