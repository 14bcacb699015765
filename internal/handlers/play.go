package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/repository"
	"github.com/sonroyaalmerol/kumasonic/internal/ui"
	"github.com/sonroyaalmerol/kumasonic/internal/utils"
)

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		g, _ = s.Guild(guildID)
	}
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

// join connects to channelID and binds the sink to the guild's session. When
// the bot moves channels the interrupted track is requeued and restarted on
// the new connection.
func (h *CommandHandler) join(ctx context.Context, guildID, channelID string) error {
	if cur := h.voice.ChannelID(guildID); cur != "" && cur != channelID {
		h.ctrl.Detach(guildID)
	}
	sink, changed, err := h.voice.Connect(ctx, guildID, channelID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	h.ctrl.Attach(guildID, sink)
	if snap := h.ctrl.Snapshot(guildID); snap.NowPlaying == nil && len(snap.Queue) > 0 {
		if err := h.ctrl.Resume(ctx, guildID); err != nil {
			slog.Warn("restart queue after join failed", "guildID", guildID, "err", err)
		}
	}
	return nil
}

// leave unbinds the sink and disconnects. The queue is kept.
func (h *CommandHandler) leave(guildID string) {
	h.ctrl.Detach(guildID)
	h.voice.Disconnect(guildID)
}

func (h *CommandHandler) rememberChannel(guildID, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.textChannels[guildID] = channelID
}

func (h *CommandHandler) textChannel(guildID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.textChannels[guildID]
}

// settings returns the guild's settings, creating the row on first use. A
// broken database falls back to defaults so playback keeps working.
func (h *CommandHandler) settings(ctx context.Context, guildID string) *repository.Settings {
	set, err := h.repo.UpsertSettings(ctx, guildID)
	if err == nil && set != nil {
		return set
	}
	slog.Warn("load settings failed, using defaults", "guildID", guildID, "err", err)
	return &repository.Settings{
		GuildID:               guildID,
		PlaylistLimit:         50,
		SecondsWaitAfterEmpty: 30,
		LeaveIfNoListeners:    true,
		DefaultVolume:         h.cfg.DefaultVolume,
		DefaultQueuePageSize:  10,
	}
}

// elapsed is the play position of the guild's sink in seconds.
func (h *CommandHandler) elapsed(guildID string) int {
	if sink := h.voice.Sink(guildID); sink != nil {
		return int(sink.Elapsed() / time.Second)
	}
	return 0
}

func (h *CommandHandler) resolveTimeout() time.Duration {
	if h.cfg.DownloadTimeout > 0 {
		return h.cfg.DownloadTimeout
	}
	return 5 * time.Minute
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	query := opts.str("query", "")
	kind := opts.kind()
	slog.Info("cmd play", "guildID", i.GuildID, "userID", userIDOf(i), "query", query, "kind", kind)
	h.enqueueQuery(s, i, query, kind)
}

func (h *CommandHandler) enqueueQuery(s *discordgo.Session, i *discordgo.InteractionCreate, query string, kind media.Kind) {
	guildID := i.GuildID
	userID := userIDOf(i)

	chID, ok := userInVoice(s, guildID, userID)
	if !ok {
		slog.Debug("user not in voice", "guildID", guildID, "userID", userID)
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}

	ctx := context.Background()
	set := h.settings(ctx, guildID)
	h.deferReply(s, i, set.QAddEphemeral)

	if err := h.join(ctx, guildID, chID); err != nil {
		slog.Warn("voice connect failed", "guildID", guildID, "channelID", chID, "err", err)
		h.editReply(s, i, "couldn't connect to channel")
		return
	}
	h.rememberChannel(guildID, i.ChannelID)

	tracks, err := h.finder.Find(ctx, query, kind, findLimit(query, kind, set.PlaylistLimit))
	if err != nil {
		slog.Debug("resolve query failed", "guildID", guildID, "query", query, "kind", kind, "err", err)
		h.editReply(s, i, userMessage(err))
		return
	}

	rctx, cancel := context.WithTimeout(ctx, h.resolveTimeout())
	defer cancel()

	if len(tracks) == 1 {
		out, err := h.ctrl.Enqueue(rctx, guildID, tracks[0])
		if err != nil {
			slog.Warn("enqueue failed", "guildID", guildID, "trackID", tracks[0].ID, "err", err)
			h.editReply(s, i, userMessage(err))
			return
		}
		h.editReply(s, i, describeOutcome(tracks[0], out))
		return
	}

	started, queued, err := h.ctrl.EnqueueAll(rctx, guildID, tracks)
	if err != nil {
		slog.Warn("enqueue batch failed", "guildID", guildID, "query", query, "err", err)
		h.editReply(s, i, userMessage(err))
		return
	}
	slog.Debug("enqueued batch", "guildID", guildID, "found", len(tracks), "started", started, "queued", queued)
	h.editReply(s, i, describeBatch(started, queued))
}

func (h *CommandHandler) cmdSearch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	query := opts.str("query", "")
	kind := opts.kind()

	h.deferReply(s, i, true)
	tracks, err := h.finder.Find(context.Background(), query, kind, 10)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		slog.Debug("search failed", "guildID", i.GuildID, "query", query, "err", err)
		h.editReply(s, i, userMessage(err))
		return
	}
	h.editReplyEmbed(s, i, ui.SearchEmbed(query, tracks))
}

func (h *CommandHandler) cmdFavorites(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)
	ctx := context.Background()
	name := opts.str("name", "")

	switch sub.Name {
	case "create":
		if err := h.favs.Create(ctx, i.GuildID, userIDOf(i), name, opts.str("query", ""), opts.kind()); err != nil {
			slog.Warn("favorite create failed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name, "err", err)
			h.reply(s, i, userMessage(err), true)
			return
		}
		slog.Info("favorite created", "guildID", i.GuildID, "userID", userIDOf(i), "name", name)
		h.reply(s, i, "👍 favorite created", false)
	case "remove":
		f, err := h.favs.Use(ctx, i.GuildID, name)
		if err != nil {
			h.reply(s, i, userMessage(err), true)
			return
		}
		if f.Author != userIDOf(i) {
			h.reply(s, i, "you can only remove your own favorites", true)
			return
		}
		if err := h.favs.Remove(ctx, i.GuildID, name); err != nil {
			slog.Warn("favorite remove failed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name, "err", err)
			h.reply(s, i, userMessage(err), true)
			return
		}
		slog.Info("favorite removed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name)
		h.reply(s, i, "👍 favorite removed", false)
	case "list":
		items, err := h.favs.List(ctx, i.GuildID)
		if err != nil {
			slog.Warn("favorite list failed", "guildID", i.GuildID, "err", err)
		}
		if len(items) == 0 {
			h.reply(s, i, "there aren't any favorites yet", false)
			return
		}
		h.reply(s, i, favoriteList(items), true)
	case "use":
		f, err := h.favs.Use(ctx, i.GuildID, name)
		if err != nil {
			h.reply(s, i, userMessage(err), true)
			return
		}
		slog.Info("favorite used", "guildID", i.GuildID, "userID", userIDOf(i), "name", name)
		h.enqueueQuery(s, i, f.Query, f.Kind)
	}
}

func favoriteList(items []repository.Favorite) string {
	var b strings.Builder
	for _, f := range items {
		fmt.Fprintf(&b, "• **%s** (%s): %s (<@%s>)\n", utils.EscapeMd(f.Name), f.Kind, utils.EscapeMd(f.Query), f.Author)
	}
	return b.String()
}
