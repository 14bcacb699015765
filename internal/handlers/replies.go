package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/player"
	"github.com/sonroyaalmerol/kumasonic/internal/repository"
	"github.com/sonroyaalmerol/kumasonic/internal/utils"
)

// userMessage turns an error from the playback or catalog layers into the
// text shown in Discord. Internal details only go to the log.
func userMessage(err error) string {
	var sinkErr *player.SinkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, player.ErrNotPlaying):
		return "not currently playing"
	case errors.Is(err, player.ErrAlreadyPlaying):
		return "already playing, give me a song name"
	case errors.Is(err, player.ErrInvalidVolume):
		return "volume must be 0 or more"
	case errors.Is(err, player.ErrNoSink):
		return "not connected to a voice channel"
	case errors.Is(err, player.ErrOutOfRange):
		return "there's no song at that position"
	case errors.Is(err, player.ErrTrackUnavailable):
		return "couldn't fetch that track from the library"
	case errors.Is(err, catalog.ErrNotFound):
		return "no songs found"
	case errors.Is(err, catalog.ErrUnsupported):
		return "that source isn't enabled on this bot"
	case errors.Is(err, repository.ErrFavoriteExists),
		errors.Is(err, repository.ErrFavoriteNotFound),
		errors.Is(err, repository.ErrFavoriteName):
		return err.Error()
	case errors.As(err, &sinkErr):
		return "playback failed"
	}
	return "internal error"
}

func describeOutcome(t media.TrackRef, out player.Outcome) string {
	name := "**" + utils.EscapeMd(t.Display()) + "**"
	switch {
	case out.Started:
		return "now playing " + name
	case out.Superseded:
		return name + " was stopped before it started"
	}
	return fmt.Sprintf("%s added to the queue at position %d", name, out.Position)
}

func describeBatch(started bool, queued int) string {
	switch {
	case started && queued == 0:
		return "started playing"
	case started:
		return fmt.Sprintf("started playing, %d more added to the queue", queued)
	case queued == 1:
		return "1 song added to the queue"
	}
	return fmt.Sprintf("%d songs added to the queue", queued)
}

func ephemeralFlags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   ephemeralFlags(ephemeral),
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  ephemeralFlags(ephemeral),
		},
	}); err != nil {
		slog.Warn("embed reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: ephemeralFlags(ephemeral)},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReplyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

// fail logs err and replies with its user facing text.
func (h *CommandHandler) fail(s *discordgo.Session, i *discordgo.InteractionCreate, cmd string, err error) {
	slog.Debug("command failed", "command", cmd, "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	h.reply(s, i, userMessage(err), true)
}

func userIDOf(i *discordgo.InteractionCreate) string {
	switch {
	case i == nil:
		return ""
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
