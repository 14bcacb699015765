package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/repository"
)

func settingsText(set *repository.Settings) string {
	wait := "never leave"
	if set.SecondsWaitAfterEmpty > 0 {
		wait = fmt.Sprintf("%ds", set.SecondsWaitAfterEmpty)
	}
	return fmt.Sprintf(
		"Config\n- Playlist Limit: %d\n- Wait before leaving after queue empty: %s\n- Leave if no listeners: %t\n- Auto announce next song: %t\n- Add to queue responses ephemeral: %t\n- Default volume: %d\n- Default queue page size: %d",
		set.PlaylistLimit, wait, set.LeaveIfNoListeners, set.AutoAnnounceNext,
		set.QAddEphemeral, set.DefaultVolume, set.DefaultQueuePageSize,
	)
}

// applySetting changes one field of set for a config subcommand. It reports
// the reply text, or an error for an invalid value.
func applySetting(set *repository.Settings, sub string, opts options) (string, error) {
	switch sub {
	case "set-playlist-limit":
		limit := opts.integer("limit", 0)
		if limit < 1 {
			return "", fmt.Errorf("invalid limit")
		}
		set.PlaylistLimit = limit
		return "👍 limit updated", nil
	case "set-wait-after-queue-empties":
		delay := opts.integer("delay", -1)
		if delay < 0 {
			return "", fmt.Errorf("delay can't be negative")
		}
		set.SecondsWaitAfterEmpty = delay
		return "👍 wait delay updated", nil
	case "set-leave-if-no-listeners":
		set.LeaveIfNoListeners = opts.boolean("value", set.LeaveIfNoListeners)
		return "👍 leave setting updated", nil
	case "set-queue-add-response-hidden":
		set.QAddEphemeral = opts.boolean("value", set.QAddEphemeral)
		return "👍 queue add notification setting updated", nil
	case "set-auto-announce-next-song":
		set.AutoAnnounceNext = opts.boolean("value", set.AutoAnnounceNext)
		return "👍 auto announce setting updated", nil
	case "set-default-volume":
		level := opts.integer("level", -1)
		if level < 0 {
			return "", fmt.Errorf("volume must be 0 or more")
		}
		set.DefaultVolume = level
		return "👍 volume setting updated", nil
	case "set-default-queue-page-size":
		size := opts.integer("page_size", 0)
		if size < 1 || size > 30 {
			return "", fmt.Errorf("page size must be between 1 and 30")
		}
		set.DefaultQueuePageSize = size
		return "👍 default queue page size updated", nil
	}
	return "", fmt.Errorf("unknown setting %q", sub)
}

func (h *CommandHandler) cmdConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	sub := i.ApplicationCommandData().Options[0]

	set, err := h.repo.UpsertSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("get settings failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "failed to fetch config", true)
		return
	}
	if sub.Name == "get" {
		h.reply(s, i, settingsText(set), false)
		return
	}

	msg, err := applySetting(set, sub.Name, optionMap(sub.Options))
	if err != nil {
		h.reply(s, i, err.Error(), true)
		return
	}
	if err := h.repo.UpdateSettings(ctx, set); err != nil {
		slog.Error("update settings failed", "guildID", i.GuildID, "key", sub.Name, "err", err)
		h.reply(s, i, "failed to save config", true)
		return
	}
	slog.Info("config updated", "guildID", i.GuildID, "userID", userIDOf(i), "key", sub.Name)
	h.reply(s, i, msg, false)
}
