package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/stream"
)

const (
	stopWait    = 2 * time.Second
	sendTimeout = 200 * time.Millisecond
	// maxDropped consecutive send timeouts mean the gateway is gone.
	maxDropped = 25
)

var ErrStalled = errors.New("voice connection stalled")

// Transport is the outgoing half of a voice connection.
type Transport interface {
	Speaking(bool) error
	// Send hands one Opus packet to the connection. It returns
	// context.DeadlineExceeded when the packet could not be queued in time.
	Send(ctx context.Context, pkt []byte) error
}

// FrameReader yields fixed size PCM frames, see stream.Decoder.
type FrameReader interface {
	ReadFrame(buf []byte) error
	Close()
}

// FrameEncoder turns PCM frames into Opus packets, see stream.Encoder.
type FrameEncoder interface {
	EncodeFrame(pcm []byte, onPacket stream.PacketFunc) error
	Flush(onPacket stream.PacketFunc) error
	Close()
}

type SinkOption func(*Sink)

// WithCodec replaces the ffmpeg decoder and encoder.
func WithCodec(open func(path string) (FrameReader, error), encoder func() (FrameEncoder, error)) SinkOption {
	return func(s *Sink) {
		s.open = open
		s.encoder = encoder
	}
}

func WithBitrate(bps int64) SinkOption { return func(s *Sink) { s.bitrate = bps } }

// Sink plays cached audio files into one guild's voice connection.
type Sink struct {
	guildID string
	conn    Transport
	bitrate int64

	open    func(path string) (FrameReader, error)
	encoder func() (FrameEncoder, error)

	volume atomic.Int32
	frames atomic.Int64

	mu  sync.Mutex
	cur *playback
}

type playback struct {
	trackID string
	cancel  context.CancelFunc
	done    chan struct{}
	// resume is non-nil while paused and closed on resume.
	resume chan struct{}
}

func NewSink(guildID string, conn Transport, opts ...SinkOption) *Sink {
	s := &Sink{guildID: guildID, conn: conn}
	s.volume.Store(100)
	s.open = func(path string) (FrameReader, error) { return stream.OpenFile(path) }
	s.encoder = func() (FrameEncoder, error) { return stream.NewEncoder(s.bitrate) }
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins playing res. The file is opened before Start returns so a
// corrupt cache entry is reported to the caller. onComplete is called once
// when the source ends: nil after the last frame or after Stop, the error
// when playback breaks.
func (s *Sink) Start(res media.Resource, volume int, onComplete func(error)) error {
	s.stopCurrent()

	dec, err := s.open(res.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", res.TrackID, err)
	}
	enc, err := s.encoder()
	if err != nil {
		dec.Close()
		return err
	}
	s.storeVolume(volume)
	s.frames.Store(0)

	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{trackID: res.TrackID, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.cur = pb
	s.mu.Unlock()

	go s.run(ctx, pb, dec, enc, onComplete)
	return nil
}

func (s *Sink) run(ctx context.Context, pb *playback, dec FrameReader, enc FrameEncoder, onComplete func(error)) {
	err := s.play(ctx, pb, dec, enc)
	dec.Close()
	enc.Close()
	pb.cancel()

	s.mu.Lock()
	if s.cur == pb {
		s.cur = nil
	}
	s.mu.Unlock()
	close(pb.done)

	if err != nil {
		slog.Warn("playback failed", "guildID", s.guildID, "trackID", pb.trackID, "err", err)
	} else {
		slog.Debug("playback finished", "guildID", s.guildID, "trackID", pb.trackID)
	}
	if onComplete != nil {
		onComplete(err)
	}
}

// play returns nil when the source ran out or was stopped.
func (s *Sink) play(ctx context.Context, pb *playback, dec FrameReader, enc FrameEncoder) error {
	_ = s.conn.Speaking(true)
	defer s.conn.Speaking(false)

	dropped := 0
	send := func(pkt []byte) error {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		err := s.conn.Send(sctx, pkt)
		switch {
		case err == nil:
			dropped = 0
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			dropped++
			slog.Debug("dropped packet", "guildID", s.guildID, "consecutive", dropped)
			if dropped >= maxDropped {
				return ErrStalled
			}
			return nil
		}
		return err
	}

	buf := make([]byte, stream.FrameBytes)
	for {
		if !s.waitPaused(ctx, pb) {
			return nil
		}
		err := dec.ReadFrame(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		stream.ApplyGain(buf, int(s.volume.Load()))
		if err := enc.EncodeFrame(buf, send); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.frames.Add(1)
	}
	if err := enc.Flush(send); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// waitPaused blocks while pb is paused. It reports false once pb is stopped.
func (s *Sink) waitPaused(ctx context.Context, pb *playback) bool {
	s.mu.Lock()
	resume := pb.resume
	s.mu.Unlock()
	if resume == nil {
		return ctx.Err() == nil
	}
	_ = s.conn.Speaking(false)
	select {
	case <-resume:
		_ = s.conn.Speaking(true)
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Sink) stopCurrent() {
	s.mu.Lock()
	pb := s.cur
	s.cur = nil
	s.mu.Unlock()
	if pb == nil {
		return
	}
	pb.cancel()
	select {
	case <-pb.done:
	case <-time.After(stopWait):
		slog.Warn("playback did not stop in time", "guildID", s.guildID, "trackID", pb.trackID)
	}
}

// Stop ends the current source. Its completion fires with nil.
func (s *Sink) Stop() error {
	s.stopCurrent()
	return nil
}

func (s *Sink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return errors.New("nothing playing")
	}
	if s.cur.resume == nil {
		s.cur.resume = make(chan struct{})
	}
	return nil
}

func (s *Sink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return errors.New("nothing playing")
	}
	if s.cur.resume != nil {
		close(s.cur.resume)
		s.cur.resume = nil
	}
	return nil
}

// SetVolume takes effect from the next frame.
func (s *Sink) SetVolume(level int) error {
	if level < 0 {
		return fmt.Errorf("volume %d below zero", level)
	}
	s.storeVolume(level)
	return nil
}

// storeVolume keeps levels above stream.MaxGain from wrapping in the int32.
func (s *Sink) storeVolume(level int) {
	level = max(0, min(level, stream.MaxGain))
	s.volume.Store(int32(level))
}

// Elapsed is how much of the current source has been sent.
func (s *Sink) Elapsed() time.Duration {
	return time.Duration(s.frames.Load()) * stream.FrameSamples * time.Second / stream.SampleRate
}

func (s *Sink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.resume == nil
}
