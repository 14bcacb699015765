package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/autocomplete"
	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/config"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/player"
	"github.com/sonroyaalmerol/kumasonic/internal/repository"
	"github.com/sonroyaalmerol/kumasonic/internal/voice"
)

const autocompleteTimeout = 2500 * time.Millisecond

type CommandHandler struct {
	cfg     *config.Config
	repo    *repository.Repo
	favs    *repository.FavoritesService
	ctrl    *player.Controller
	finder  catalog.Searcher
	library autocomplete.Library

	// set by Bot.Run once the gateway session exists
	session *discordgo.Session
	voice   *voice.Manager

	mu           sync.Mutex
	textChannels map[string]string // guild -> channel of the last /play
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, finder catalog.Searcher, library autocomplete.Library) *CommandHandler {
	return &CommandHandler{
		cfg:          cfg,
		repo:         repo,
		favs:         repository.NewFavoritesService(repo),
		finder:       finder,
		library:      library,
		textChannels: make(map[string]string),
	}
}

var (
	minZero = 0.0
	minOne  = 1.0

	kindChoices = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "song", Value: string(media.KindSong)},
		{Name: "album", Value: string(media.KindAlbum)},
		{Name: "playlist", Value: string(media.KindPlaylist)},
	}
)

func commandList() []*discordgo.ApplicationCommand {
	boolSetting := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: []*discordgo.ApplicationCommandOption{
			{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
		}}
	}
	intSetting := func(name, desc, opt, optDesc string, minValue *float64) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: []*discordgo.ApplicationCommandOption{
			{Name: opt, Description: optDesc, Type: discordgo.ApplicationCommandOptionInteger, Required: true, MinValue: minValue},
		}}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song, album or playlist from the library (or a link)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "search terms or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				{Name: "kind", Description: "what to look for [default: song]", Type: discordgo.ApplicationCommandOptionString, Choices: kindChoices},
			},
		},
		{
			Name:        "search",
			Description: "Search the library without queueing anything",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "search terms", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				{Name: "kind", Description: "what to look for [default: song]", Type: discordgo.ApplicationCommandOptionString, Choices: kindChoices},
			},
		},
		{Name: "pause", Description: "pause the current song"},
		{Name: "resume", Description: "resume playback, or start the queue"},
		{Name: "stop", Description: "stop playback and keep the queue"},
		{Name: "skip", Description: "skip to the next song"},
		{
			Name:        "volume",
			Description: "set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "level", Description: "percent, 100 is unchanged", Type: discordgo.ApplicationCommandOptionInteger, Required: true, MinValue: &minZero},
			},
		},
		{
			Name:        "queue",
			Description: "show the current queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of queue to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger, MinValue: &minOne},
				{Name: "page-size", Description: "how many items per page [default: 10, max: 30]", Type: discordgo.ApplicationCommandOptionInteger, MinValue: &minOne},
			},
		},
		{Name: "now-playing", Description: "Show currently playing"},
		{Name: "clear", Description: "Clear queue except current"},
		{
			Name:        "remove",
			Description: "remove a song from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position of the song to remove", Type: discordgo.ApplicationCommandOptionInteger, Required: true, MinValue: &minOne},
			},
		},
		{Name: "disconnect", Description: "Stop and leave the voice channel"},
		{Name: "ping", Description: "Show gateway latency and library server status"},
		{
			Name:        "favorites",
			Description: "Manage favorites",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "use",
					Description: "use a favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "favorite name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "list favorites"},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "create favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "query", Description: "query", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "kind", Description: "what the query finds [default: song]", Type: discordgo.ApplicationCommandOptionString, Choices: kindChoices},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "remove favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
			},
		},
		{
			Name:        "config",
			Description: "Configure bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "get", Description: "show settings"},
				intSetting("set-playlist-limit", "set max playlist add", "limit", "max tracks", &minOne),
				intSetting("set-wait-after-queue-empties", "time to wait before leaving VC", "delay", "seconds (0 never leave)", &minZero),
				boolSetting("set-leave-if-no-listeners", "leave when no listeners"),
				boolSetting("set-queue-add-response-hidden", "ephemeral queue add responses"),
				boolSetting("set-auto-announce-next-song", "auto announce next"),
				intSetting("set-default-volume", "default volume", "level", "percent, 100 is unchanged", &minZero),
				intSetting("set-default-queue-page-size", "queue page size", "page_size", "1-30", &minOne),
			},
		},
	}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	cmds := commandList()
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
		slog.Error("failed to register application commands", "guildID", guildID, "err", err)
		return err
	}
	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		if i.GuildID == "" {
			h.reply(s, i, "commands only work in servers", true)
			return
		}
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	choices := []*discordgo.ApplicationCommandOptionChoice{}

	if f := focused(data.Options); f != nil && f.Name == "query" && h.library != nil {
		ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
		defer cancel()
		got, err := autocomplete.Suggest(ctx, h.library, f.StringValue(), optionMap(data.Options).kind(), 10)
		if err != nil {
			slog.Warn("autocomplete suggestions error", "guildID", i.GuildID, "err", err)
		}
		choices = append(choices, got...)
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "search":
		h.cmdSearch(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "resume":
		h.cmdResume(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "volume":
		h.cmdVolume(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "clear":
		h.cmdClear(s, i)
	case "remove":
		h.cmdRemove(s, i)
	case "disconnect":
		h.cmdDisconnect(s, i)
	case "ping":
		h.cmdPing(s, i)
	case "favorites":
		h.cmdFavorites(s, i)
	case "config":
		h.cmdConfig(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}
