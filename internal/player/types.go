package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

type PlayerStatus int

const (
	StatusIdle PlayerStatus = iota
	StatusPlaying
	StatusPaused
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

const DefaultVolume = 100

var (
	ErrNotPlaying       = errors.New("not playing")
	ErrAlreadyPlaying   = errors.New("already playing")
	ErrInvalidVolume    = errors.New("volume must be at least 0")
	ErrTrackUnavailable = errors.New("track unavailable")
	ErrNoSink           = errors.New("not connected to a voice channel")
	ErrOutOfRange       = errors.New("position out of range")
)

// SinkError wraps a failure reported by the audio sink, either when starting a
// source or through the completion callback.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink %s: %v", e.Op, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }

// AudioSink is the voice transport attached to one guild. Control calls are
// expected to return quickly. onComplete must be invoked exactly once per
// successful Start, from any goroutine, with nil when the source ended or was
// stopped and an error when playback broke.
type AudioSink interface {
	Start(res media.Resource, volumePercent int, onComplete func(error)) error
	Stop() error
	Pause() error
	Resume() error
	SetVolume(level int) error
	IsPlaying() bool
}

// Resolver turns a track into a local resource, downloading it if needed.
type Resolver interface {
	Resolve(ctx context.Context, track media.TrackRef) (media.Resource, error)
}

// Snapshot is a consistent copy of a session taken under its lock.
type Snapshot struct {
	GuildID       string
	NowPlaying    *media.TrackRef
	Queue         []media.TrackRef
	Status        PlayerStatus
	VolumePercent int
}

// Outcome tells the caller of Enqueue what happened to the track.
type Outcome struct {
	Started bool
	// Superseded is set when a stop, skip or detach replaced the track
	// before it began playing.
	Superseded bool
	Position   int // 1-based queue position when not started
}
