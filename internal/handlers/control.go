package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/ui"
	"github.com/sonroyaalmerol/kumasonic/internal/utils"
)

func (h *CommandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.ctrl.Pause(i.GuildID); err != nil {
		h.fail(s, i, "pause", err)
		return
	}
	slog.Info("cmd pause", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "the stop-and-go light is now red", false)
}

// cmdResume may have to fetch the next queued track, so the reply is deferred.
func (h *CommandHandler) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	h.deferReply(s, i, false)

	if h.voice.Sink(i.GuildID) == nil {
		chID, ok := userInVoice(s, i.GuildID, userIDOf(i))
		if !ok {
			h.editReply(s, i, "gotta be in a voice channel")
			return
		}
		if err := h.join(ctx, i.GuildID, chID); err != nil {
			slog.Warn("voice connect failed", "guildID", i.GuildID, "channelID", chID, "err", err)
			h.editReply(s, i, "couldn't connect to channel")
			return
		}
		h.rememberChannel(i.GuildID, i.ChannelID)
		// joining restarts a waiting queue by itself
		if snap := h.ctrl.Snapshot(i.GuildID); snap.NowPlaying != nil {
			h.editReply(s, i, "the stop-and-go light is now green")
			return
		}
	}

	rctx, cancel := context.WithTimeout(ctx, h.resolveTimeout())
	defer cancel()
	if err := h.ctrl.Resume(rctx, i.GuildID); err != nil {
		slog.Debug("resume failed", "guildID", i.GuildID, "err", err)
		h.editReply(s, i, userMessage(err))
		return
	}
	slog.Info("cmd resume", "guildID", i.GuildID, "userID", userIDOf(i))
	h.editReply(s, i, "the stop-and-go light is now green")
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.ctrl.Stop(i.GuildID); err != nil {
		h.fail(s, i, "stop", err)
		return
	}
	slog.Info("cmd stop", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "u betcha, stopped", false)
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.deferReply(s, i, false)
	rctx, cancel := context.WithTimeout(context.Background(), h.resolveTimeout())
	defer cancel()

	skipped, err := h.ctrl.Skip(rctx, i.GuildID)
	if err != nil && skipped.ID == "" {
		h.editReply(s, i, "no song to skip")
		return
	}
	slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i), "trackID", skipped.ID)
	msg := "skipped **" + utils.EscapeMd(skipped.Display()) + "**"
	switch {
	case err != nil:
		msg += ", but " + userMessage(err)
	default:
		if cur := h.ctrl.Snapshot(i.GuildID).NowPlaying; cur != nil {
			msg += ", now playing **" + utils.EscapeMd(cur.Display()) + "**"
		}
	}
	h.editReply(s, i, msg)
}

func (h *CommandHandler) cmdVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	level := optionMap(i.ApplicationCommandData().Options).integer("level", -1)
	if err := h.ctrl.SetVolume(i.GuildID, level); err != nil {
		h.fail(s, i, "volume", err)
		return
	}
	slog.Info("cmd volume", "guildID", i.GuildID, "userID", userIDOf(i), "level", level)
	h.reply(s, i, fmt.Sprintf("🔊 volume set to %d%%", level), false)
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	set := h.settings(context.Background(), i.GuildID)
	opts := optionMap(i.ApplicationCommandData().Options)
	page := opts.integer("page", 1)
	pageSize := clamp(opts.integer("page-size", set.DefaultQueuePageSize), 1, 30)

	embed, err := ui.QueueEmbed(h.ctrl.Snapshot(i.GuildID), h.elapsed(i.GuildID), page, pageSize)
	if err != nil {
		slog.Debug("build queue embed failed", "guildID", i.GuildID, "page", page, "pageSize", pageSize, "err", err)
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Debug("cmd queue", "guildID", i.GuildID, "userID", userIDOf(i), "page", page, "pageSize", pageSize)
	h.replyEmbed(s, i, embed, true)
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	snap := h.ctrl.Snapshot(i.GuildID)
	if snap.NowPlaying == nil {
		h.reply(s, i, "nothing is currently playing", true)
		return
	}
	h.replyEmbed(s, i, ui.NowPlayingEmbed(snap, h.elapsed(i.GuildID)), false)
}

func (h *CommandHandler) cmdClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	n := h.ctrl.Clear(i.GuildID)
	slog.Info("cmd clear queue", "guildID", i.GuildID, "userID", userIDOf(i), "removed", n)
	h.reply(s, i, "clearer than a field after a fresh harvest", false)
}

func (h *CommandHandler) cmdRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	pos := optionMap(i.ApplicationCommandData().Options).integer("position", 0)
	t, err := h.ctrl.Remove(i.GuildID, pos)
	if err != nil {
		h.fail(s, i, "remove", err)
		return
	}
	slog.Info("cmd remove", "guildID", i.GuildID, "userID", userIDOf(i), "pos", pos, "trackID", t.ID)
	h.reply(s, i, ":wastebasket: removed **"+utils.EscapeMd(t.Display())+"**", false)
}

func (h *CommandHandler) cmdDisconnect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h.voice.ChannelID(i.GuildID) == "" {
		h.reply(s, i, "not connected", true)
		return
	}
	h.leave(i.GuildID)
	slog.Info("cmd disconnect", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "u betcha, disconnected", false)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *CommandHandler) cmdPing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.deferReply(s, i, true)
	status := "not checked"
	if p, ok := h.library.(pinger); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := p.Ping(ctx)
		cancel()
		status = libraryStatus(err)
		if err != nil {
			slog.Warn("subsonic ping failed", "guildID", i.GuildID, "err", err)
		}
	}
	h.editReply(s, i, pingText(s.HeartbeatLatency(), status))
}

func libraryStatus(err error) string {
	if err != nil {
		return "❌ failed"
	}
	return "✅ ok"
}

func pingText(latency time.Duration, status string) string {
	return fmt.Sprintf("🏓 pong\nGateway latency: **%dms**\nSubsonic status: **%s**", latency.Milliseconds(), status)
}
