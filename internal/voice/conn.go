package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const joinTimeout = 10 * time.Second

// gatewayConn adapts a discordgo voice connection to Transport.
type gatewayConn struct {
	vc *discordgo.VoiceConnection
}

func (g gatewayConn) Speaking(on bool) error { return g.vc.Speaking(on) }

func (g gatewayConn) Send(ctx context.Context, pkt []byte) error {
	select {
	case g.vc.OpusSend <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensureChannels initializes the opus channels discordgo closes in Kill.
// Closing a nil channel there panics.
func ensureChannels(vc *discordgo.VoiceConnection) {
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
}

type link struct {
	vc        *discordgo.VoiceConnection
	channelID string
	sink      *Sink
	idle      *time.Timer
}

// Manager owns the bot's voice connections, at most one per guild.
type Manager struct {
	s        *discordgo.Session
	sinkOpts []SinkOption

	mu    sync.Mutex
	links map[string]*link
}

func NewManager(s *discordgo.Session, opts ...SinkOption) *Manager {
	return &Manager{s: s, sinkOpts: opts, links: make(map[string]*link)}
}

// Connect joins channelID and returns the guild's sink. changed is true when
// a new connection (and so a new sink) was made.
func (m *Manager) Connect(ctx context.Context, guildID, channelID string) (sink *Sink, changed bool, err error) {
	m.mu.Lock()
	old := m.links[guildID]
	if old != nil && old.channelID == channelID {
		m.cancelIdleLocked(old)
		m.mu.Unlock()
		return old.sink, false, nil
	}
	delete(m.links, guildID)
	if old != nil {
		m.cancelIdleLocked(old)
	}
	m.mu.Unlock()

	// no network work under lock
	if old != nil {
		_ = old.sink.Stop()
		safeDisconnect(guildID, old.vc)
	}

	jctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	vc, err := m.s.ChannelVoiceJoin(jctx, guildID, channelID, false, true)
	if err != nil {
		return nil, false, err
	}
	ensureChannels(vc)

	l := &link{vc: vc, channelID: channelID}
	l.sink = NewSink(guildID, gatewayConn{vc: vc}, m.sinkOpts...)

	m.mu.Lock()
	m.links[guildID] = l
	m.mu.Unlock()
	slog.Info("joined voice", "guildID", guildID, "channelID", channelID)
	return l.sink, true, nil
}

// Sink returns the guild's sink, nil when not connected.
func (m *Manager) Sink(guildID string) *Sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.links[guildID]; l != nil {
		return l.sink
	}
	return nil
}

// ChannelID is the voice channel the bot sits in for guildID, if any.
func (m *Manager) ChannelID(guildID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.links[guildID]; l != nil {
		return l.channelID
	}
	return ""
}

func (m *Manager) Disconnect(guildID string) {
	m.mu.Lock()
	l := m.links[guildID]
	delete(m.links, guildID)
	if l != nil {
		m.cancelIdleLocked(l)
	}
	m.mu.Unlock()
	if l == nil {
		return
	}
	_ = l.sink.Stop()
	safeDisconnect(guildID, l.vc)
	slog.Info("left voice", "guildID", guildID)
}

// ScheduleIdleDisconnect leaves the channel after wait unless the guild is
// busy again by then. leave runs instead of a plain Disconnect so the caller
// can unbind the sink first.
func (m *Manager) ScheduleIdleDisconnect(guildID string, wait time.Duration, busy func() bool, leave func()) {
	if wait <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.links[guildID]
	if l == nil {
		return
	}
	m.cancelIdleLocked(l)
	l.idle = time.AfterFunc(wait, func() {
		m.mu.Lock()
		current := m.links[guildID] == l
		m.mu.Unlock()
		if !current || busy() {
			return
		}
		slog.Debug("idle disconnect", "guildID", guildID, "after", wait)
		leave()
	})
}

func (m *Manager) CancelIdleDisconnect(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.links[guildID]; l != nil {
		m.cancelIdleLocked(l)
	}
}

func (m *Manager) cancelIdleLocked(l *link) {
	if l.idle != nil {
		l.idle.Stop()
		l.idle = nil
	}
}

// Close leaves every voice channel.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.links))
	for id := range m.links {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Disconnect(id)
	}
}

func safeDisconnect(guildID string, vc *discordgo.VoiceConnection) {
	if vc == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", guildID)
		}
	}()
	ensureChannels(vc)
	_ = vc.Speaking(false)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := vc.Disconnect(ctx); err != nil {
		slog.Warn("voice disconnect failed", "guildID", guildID, "err", err)
	}
}
