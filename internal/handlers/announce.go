package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/player"
	"github.com/sonroyaalmerol/kumasonic/internal/ui"
	"github.com/sonroyaalmerol/kumasonic/internal/utils"
)

func (h *CommandHandler) announce(guildID string, msg *discordgo.MessageSend) {
	ch := h.textChannel(guildID)
	if ch == "" || h.session == nil {
		return
	}
	if _, err := h.session.ChannelMessageSendComplex(ch, msg); err != nil {
		slog.Debug("announce failed", "guildID", guildID, "channelID", ch, "err", err)
	}
}

func (h *CommandHandler) onTrackStart(guildID string, _ media.TrackRef) {
	if h.voice != nil {
		h.voice.CancelIdleDisconnect(guildID)
	}
	if !h.settings(context.Background(), guildID).AutoAnnounceNext {
		return
	}
	h.announce(guildID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{ui.NowPlayingEmbed(h.ctrl.Snapshot(guildID), 0)},
	})
}

func (h *CommandHandler) onTrackError(guildID string, t media.TrackRef, err error) {
	h.announce(guildID, &discordgo.MessageSend{
		Content: "⚠️ skipped **" + utils.EscapeMd(t.Display()) + "**: " + userMessage(err),
	})
}

// onIdle arms the guild's idle disconnect timer.
func (h *CommandHandler) onIdle(guildID string) {
	if h.voice == nil {
		return
	}
	set := h.settings(context.Background(), guildID)
	wait := time.Duration(set.SecondsWaitAfterEmpty) * time.Second
	busy := func() bool {
		return h.ctrl.Snapshot(guildID).Status != player.StatusIdle
	}
	h.voice.ScheduleIdleDisconnect(guildID, wait, busy, func() { h.leave(guildID) })
}
