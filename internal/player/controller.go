package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

// errSuperseded is returned by startLocked when a stop, skip or detach replaced
// the track while it was being resolved. The resolved file stays cached.
var errSuperseded = errors.New("start superseded")

const prefetchTimeout = 10 * time.Minute

type TrackHook func(guildID string, track media.TrackRef)

type TrackErrorHook func(guildID string, track media.TrackRef, err error)

// Controller drives every guild's Session. It is the only code that mutates
// session state or talks to the sinks and the resolver. Operations on one guild
// are serialized by that guild's lock; guilds never share a lock.
type Controller struct {
	pm       *PlayerManager
	resolver Resolver

	onStart           TrackHook
	onError           TrackErrorHook
	onIdle            func(guildID string)
	autoSkipOnFailure bool
	prefetch          bool

	// bg tracks completion handlers, prefetches and hook calls.
	bg sync.WaitGroup
}

type Option func(*Controller)

func WithTrackStartHook(h TrackHook) Option { return func(c *Controller) { c.onStart = h } }

func WithTrackErrorHook(h TrackErrorHook) Option { return func(c *Controller) { c.onError = h } }

// WithIdleHook is called when a guild runs out of things to play, either
// because the queue drained or because playback was stopped.
func WithIdleHook(h func(guildID string)) Option { return func(c *Controller) { c.onIdle = h } }

// WithAutoSkipOnFailure advances the queue after a sink failure instead of
// stopping on the broken track.
func WithAutoSkipOnFailure(on bool) Option { return func(c *Controller) { c.autoSkipOnFailure = on } }

// WithPrefetch warms the cache for the next queued track once a track starts.
func WithPrefetch(on bool) Option { return func(c *Controller) { c.prefetch = on } }

func NewController(pm *PlayerManager, resolver Resolver, opts ...Option) *Controller {
	c := &Controller{pm: pm, resolver: resolver}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Sessions() *PlayerManager { return c.pm }

// Wait blocks until queued completion handlers, prefetches and hooks are done.
func (c *Controller) Wait() { c.bg.Wait() }

// Attach binds the guild's voice sink. A source still playing on a previous
// sink is stopped first.
func (c *Controller) Attach(guildID string, sink AudioSink) {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.sink != nil && sess.sink != sink {
		c.detachLocked(sess)
	}
	sess.sink = sink
}

// Detach unbinds the sink, stopping playback. The interrupted track goes back
// to the front of the queue so a later Resume picks it up again.
func (c *Controller) Detach(guildID string) {
	sess := c.pm.Peek(guildID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	c.detachLocked(sess)
	sess.sink = nil
}

func (c *Controller) detachLocked(sess *Session) {
	if sess.nowPlaying == nil {
		return
	}
	cur := *sess.nowPlaying
	if sess.started && sess.sink != nil {
		sess.suppressLocked()
		if err := sess.sink.Stop(); err != nil {
			slog.Warn("sink stop on detach failed", "guildID", sess.guildID, "err", err)
		}
	}
	sess.idleLocked()
	sess.pushFrontLocked(cur)
}

// Forget stops the guild and drops its session, used when the bot leaves a guild.
func (c *Controller) Forget(guildID string) {
	c.Detach(guildID)
	c.pm.Remove(guildID)
}

// Enqueue appends track to the guild's queue and starts it right away when the
// session was idle with nothing queued. If that start cannot resolve the track
// the call fails with ErrTrackUnavailable and the track is not kept; tracks
// queued behind it in the meantime are started instead.
func (c *Controller) Enqueue(ctx context.Context, guildID string, track media.TrackRef) (Outcome, error) {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.sink == nil && sess.wouldStartLocked() {
		return Outcome{}, ErrNoSink
	}

	pos, start := sess.enqueueLocked(track)
	if !start {
		slog.Debug("queued track", "guildID", guildID, "trackID", track.ID, "position", pos)
		return Outcome{Position: pos}, nil
	}

	err := c.startLocked(ctx, sess, track)
	switch {
	case err == nil:
		return Outcome{Started: true}, nil
	case errors.Is(err, errSuperseded):
		return Outcome{Superseded: true}, nil
	}

	// tracks queued while this one was resolving must not be stranded
	if !errors.Is(err, ErrNoSink) && sess.nowPlaying == nil && len(sess.queue) > 0 {
		if aerr := c.advanceLocked(ctx, sess); aerr != nil {
			slog.Warn("advance after failed start", "guildID", guildID, "err", aerr)
		}
	}
	return Outcome{}, err
}

// EnqueueAll queues tracks in order, starting the first one when idle. Tracks
// that cannot be started are reported through the error hook and skipped.
func (c *Controller) EnqueueAll(ctx context.Context, guildID string, tracks []media.TrackRef) (started bool, queued int, err error) {
	for _, t := range tracks {
		out, e := c.Enqueue(ctx, guildID, t)
		if e != nil {
			if errors.Is(e, ErrNoSink) {
				return started, queued, e
			}
			c.report(guildID, t, e)
			err = e
			continue
		}
		switch {
		case out.Started:
			started = true
		case !out.Superseded:
			queued++
		}
	}
	if started || queued > 0 {
		err = nil
	}
	return started, queued, err
}

func (c *Controller) Pause(guildID string) error {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status != StatusPlaying {
		return ErrNotPlaying
	}
	if sess.started && sess.sink != nil {
		if err := sess.sink.Pause(); err != nil {
			return &SinkError{Op: "pause", Err: err}
		}
	}
	sess.status = StatusPaused
	slog.Debug("paused", "guildID", guildID)
	return nil
}

// Resume continues a paused source. An idle session with queued tracks starts
// the next one; an idle session with an empty queue has nothing to resume.
func (c *Controller) Resume(ctx context.Context, guildID string) error {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.status {
	case StatusPlaying:
		return ErrAlreadyPlaying
	case StatusPaused:
		if sess.started && sess.sink != nil {
			if err := sess.sink.Resume(); err != nil {
				return &SinkError{Op: "resume", Err: err}
			}
		}
		sess.status = StatusPlaying
		slog.Debug("resumed", "guildID", guildID)
		return nil
	}

	if len(sess.queue) == 0 {
		return ErrNotPlaying
	}
	if sess.sink == nil {
		return ErrNoSink
	}
	return c.advanceLocked(ctx, sess)
}

// Stop ends the current track and leaves the session idle. The queue is kept.
// The sink's completion for the stopped source is swallowed.
func (c *Controller) Stop(guildID string) error {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status == StatusIdle {
		return ErrNotPlaying
	}
	var stopErr error
	if sess.started && sess.sink != nil {
		sess.suppressLocked()
		if err := sess.sink.Stop(); err != nil {
			stopErr = &SinkError{Op: "stop", Err: err}
		}
	}
	sess.idleLocked()
	slog.Debug("stopped", "guildID", guildID)
	c.emitIdle(guildID)
	return stopErr
}

// Skip ends the current track and moves on to the next queued one, or to idle
// when the queue is empty.
func (c *Controller) Skip(ctx context.Context, guildID string) (media.TrackRef, error) {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status == StatusIdle || sess.nowPlaying == nil {
		return media.TrackRef{}, ErrNotPlaying
	}
	skipped := *sess.nowPlaying
	if sess.started && sess.sink != nil {
		// no suppression: the completion of this source is stale once gen moves on
		if err := sess.sink.Stop(); err != nil {
			slog.Warn("sink stop on skip failed", "guildID", guildID, "err", err)
		}
	}
	sess.idleLocked()
	slog.Debug("skipped", "guildID", guildID, "trackID", skipped.ID)
	return skipped, c.advanceLocked(ctx, sess)
}

func (c *Controller) SetVolume(guildID string, level int) error {
	if level < 0 {
		return ErrInvalidVolume
	}
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.volume = level
	if sess.started && sess.sink != nil {
		if err := sess.sink.SetVolume(level); err != nil {
			return &SinkError{Op: "volume", Err: err}
		}
	}
	return nil
}

func (c *Controller) Snapshot(guildID string) Snapshot {
	return c.pm.Get(guildID).Snapshot()
}

// Clear drops every queued track but leaves the current one alone.
func (c *Controller) Clear(guildID string) int {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.clearLocked()
}

// Remove drops the queued track at 1-based position pos.
func (c *Controller) Remove(guildID string, pos int) (media.TrackRef, error) {
	sess := c.pm.Get(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.removeLocked(pos)
}

// startLocked makes track current and starts it on the sink. Caller must hold
// sess.mu. The lock is released while the track is resolved, so other commands
// for the guild (enqueue, stop, snapshot) are not held up by the download; if
// one of them moved the session on in the meantime errSuperseded is returned.
func (c *Controller) startLocked(ctx context.Context, sess *Session, track media.TrackRef) error {
	gen := sess.beginLocked(track)

	sess.mu.Unlock()
	res, err := c.resolver.Resolve(ctx, track)
	sess.mu.Lock()

	if sess.gen != gen {
		slog.Debug("start superseded while resolving", "guildID", sess.guildID, "trackID", track.ID, "resolveErr", err)
		return errSuperseded
	}
	if err != nil {
		sess.idleLocked()
		return fmt.Errorf("%w: %s: %w", ErrTrackUnavailable, track.Display(), err)
	}
	sink := sess.sink
	if sink == nil {
		sess.idleLocked()
		return ErrNoSink
	}
	if err := sink.Start(res, sess.volume, c.completionFor(sess.guildID, gen)); err != nil {
		sess.idleLocked()
		return &SinkError{Op: "start", Err: err}
	}
	sess.started = true

	// paused while loading: hold the fresh source
	if sess.status == StatusPaused {
		if err := sink.Pause(); err != nil {
			slog.Warn("pause after start failed", "guildID", sess.guildID, "err", err)
		}
	}

	slog.Info("playing", "guildID", sess.guildID, "trackID", track.ID, "title", track.Title, "volume", sess.volume)
	c.emitStart(sess.guildID, track)
	c.prefetchLocked(sess)
	return nil
}

// advanceLocked starts the next queued track. Tracks that fail to start are
// reported and dropped; the last such error is returned when the session ends
// up idle because of them. Caller must hold sess.mu.
func (c *Controller) advanceLocked(ctx context.Context, sess *Session) error {
	var lastErr error
	for {
		next, ok := sess.dequeueLocked()
		if !ok {
			if sess.nowPlaying == nil {
				sess.status = StatusIdle
				slog.Debug("queue drained", "guildID", sess.guildID)
				c.emitIdle(sess.guildID)
			}
			return lastErr
		}
		err := c.startLocked(ctx, sess, next)
		switch {
		case err == nil, errors.Is(err, errSuperseded):
			return nil
		case errors.Is(err, ErrNoSink):
			sess.pushFrontLocked(next)
			return err
		}
		c.report(sess.guildID, next, err)
		lastErr = err
	}
}

func (c *Controller) completionFor(guildID string, gen uint64) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			c.bg.Add(1)
			go func() {
				defer c.bg.Done()
				c.complete(guildID, gen, err)
			}()
		})
	}
}

// complete handles the sink's end-of-source notification for generation gen.
func (c *Controller) complete(guildID string, gen uint64, playErr error) {
	sess := c.pm.Peek(guildID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.consumeSuppressionLocked(gen) {
		slog.Debug("completion suppressed", "guildID", guildID, "gen", gen)
		return
	}
	if gen != sess.gen || !sess.started || sess.nowPlaying == nil {
		slog.Debug("stale completion ignored", "guildID", guildID, "gen", gen, "current", sess.gen)
		return
	}

	finished := *sess.nowPlaying
	sess.idleLocked()

	if playErr != nil {
		c.report(guildID, finished, &SinkError{Op: "playback", Err: playErr})
		if !c.autoSkipOnFailure {
			return
		}
	}

	if err := c.advanceLocked(context.Background(), sess); err != nil {
		slog.Warn("autoplay advance failed", "guildID", guildID, "err", err)
	}
}

func (c *Controller) prefetchLocked(sess *Session) {
	if !c.prefetch || len(sess.queue) == 0 {
		return
	}
	next := sess.queue[0]
	guildID := sess.guildID
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), prefetchTimeout)
		defer cancel()
		if _, err := c.resolver.Resolve(ctx, next); err != nil {
			slog.Debug("prefetch failed", "guildID", guildID, "trackID", next.ID, "err", err)
		}
	}()
}

func (c *Controller) emitStart(guildID string, track media.TrackRef) {
	if c.onStart == nil {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		c.onStart(guildID, track)
	}()
}

func (c *Controller) emitIdle(guildID string) {
	if c.onIdle == nil {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		c.onIdle(guildID)
	}()
}

func (c *Controller) report(guildID string, track media.TrackRef, err error) {
	slog.Error("track failed", "guildID", guildID, "trackID", track.ID, "title", track.Title, "err", err)
	if c.onError == nil {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		c.onError(guildID, track, err)
	}()
}
