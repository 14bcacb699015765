package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/autocomplete"
	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/config"
	"github.com/sonroyaalmerol/kumasonic/internal/player"
	"github.com/sonroyaalmerol/kumasonic/internal/repository"
	"github.com/sonroyaalmerol/kumasonic/internal/voice"
)

type Bot struct {
	cfg  *config.Config
	repo *repository.Repo
	ctrl *player.Controller
	cmd  *CommandHandler
}

// NewBot wires the playback controller to the command surface. finder turns
// queries into tracks, resolver turns tracks into cached files, library feeds
// autocomplete and may be nil.
func NewBot(cfg *config.Config, repo *repository.Repo, finder catalog.Searcher, resolver player.Resolver, library autocomplete.Library) *Bot {
	cmd := NewCommandHandler(cfg, repo, finder, library)
	pm := player.NewPlayerManager(player.WithDefaultVolume(func(guildID string) int {
		return repo.DefaultVolume(context.Background(), guildID, cfg.DefaultVolume)
	}))
	ctrl := player.NewController(pm, resolver,
		player.WithTrackStartHook(cmd.onTrackStart),
		player.WithTrackErrorHook(cmd.onTrackError),
		player.WithIdleHook(cmd.onIdle),
		player.WithAutoSkipOnFailure(cfg.AutoSkipOnFailure),
		player.WithPrefetch(cfg.PrefetchNext),
	)
	cmd.ctrl = ctrl
	return &Bot{cfg: cfg, repo: repo, ctrl: ctrl, cmd: cmd}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b.cmd.session = dg
	b.cmd.voice = voice.NewManager(dg, voice.WithBitrate(b.cfg.OpusBitrate))

	// On ready: register commands depending on configuration
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username, "guilds", len(r.Guilds))
		b.updateStatus(s)
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			} else {
				slog.Info("registered global application commands")
			}
			return
		}

		var wg sync.WaitGroup
		for _, g := range s.State.Guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
					slog.Error("register guild commands", "guild", guildID, "err", err)
				}
			}(g.ID)
		}
		wg.Wait()

		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		} else {
			slog.Info("cleared global application commands")
		}
		slog.Info("registered commands on all guilds")
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		if err := b.cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		}
	})

	// removed from a guild (or the guild went away): drop its session
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildDelete) {
		if g.Unavailable {
			return
		}
		slog.Info("left guild", "guildID", g.ID)
		b.cmd.leave(g.ID)
		b.ctrl.Forget(g.ID)
	})

	dg.AddHandler(b.cmd.HandleInteraction)
	dg.AddHandler(b.onVoiceState)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	slog.Info("shutting down")
	b.cmd.voice.Close()
	b.ctrl.Wait()
	return nil
}

func (b *Bot) updateStatus(s *discordgo.Session) {
	err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: b.cfg.BotStatus,
		Activities: []*discordgo.Activity{
			{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
		},
	})
	if err != nil {
		slog.Warn("update status failed", "err", err)
	}
}

// onVoiceState handles the bot being kicked from voice and, when the guild
// enables it, leaves channels where nobody but bots is listening.
func (b *Bot) onVoiceState(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	gid := vs.GuildID
	chID := b.cmd.voice.ChannelID(gid)
	if chID == "" {
		return
	}
	if s.State.User != nil && vs.UserID == s.State.User.ID && vs.ChannelID == "" {
		slog.Info("disconnected from voice externally", "guildID", gid)
		b.cmd.leave(gid)
		return
	}
	if !b.cmd.settings(context.Background(), gid).LeaveIfNoListeners {
		return
	}
	if getNonBotSize(s, gid, chID) == 0 {
		slog.Info("no listeners left, leaving", "guildID", gid, "channelID", chID)
		b.cmd.leave(gid)
	}
}

func getNonBotSize(s *discordgo.Session, guildID, channelID string) int {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		m, _ := s.State.Member(guildID, vs.UserID)
		if m != nil && m.User != nil && !m.User.Bot {
			n++
		}
	}
	return n
}
