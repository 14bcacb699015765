package player

import (
	"sync"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

// Session is the playback state of one guild. All fields are guarded by mu and
// are only mutated by Controller; the *Locked helpers below are the pure state
// transitions and must be called with mu held.
type Session struct {
	guildID string

	mu         sync.Mutex
	sink       AudioSink
	queue      []media.TrackRef
	nowPlaying *media.TrackRef
	status     PlayerStatus
	volume     int

	// gen identifies the source currently attached to nowPlaying. Every
	// transition away from it bumps gen so late completions and loads that
	// finish after a stop/skip can be recognised as stale.
	gen uint64
	// started is false while nowPlaying is still being resolved.
	started bool

	suppressNextAutoAdvance bool
	suppressedGen           uint64
}

func newSession(guildID string, volume int) *Session {
	if volume < 0 {
		volume = DefaultVolume
	}
	return &Session{guildID: guildID, status: StatusIdle, volume: volume}
}

func (s *Session) GuildID() string { return s.guildID }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		GuildID:       s.guildID,
		Queue:         make([]media.TrackRef, len(s.queue)),
		Status:        s.status,
		VolumePercent: s.volume,
	}
	copy(snap.Queue, s.queue)
	if s.nowPlaying != nil {
		cur := *s.nowPlaying
		snap.NowPlaying = &cur
	}
	return snap
}

// wouldStartLocked reports whether an enqueue right now would begin playback.
func (s *Session) wouldStartLocked() bool {
	return s.status == StatusIdle && s.nowPlaying == nil && len(s.queue) == 0
}

// enqueueLocked appends track. When the session is idle with nothing queued the
// track is handed back for immediate start instead of being left in the queue.
func (s *Session) enqueueLocked(track media.TrackRef) (position int, start bool) {
	if s.wouldStartLocked() {
		return 0, true
	}
	s.queue = append(s.queue, track)
	return len(s.queue), false
}

func (s *Session) dequeueLocked() (media.TrackRef, bool) {
	if len(s.queue) == 0 {
		return media.TrackRef{}, false
	}
	next := s.queue[0]
	s.queue[0] = media.TrackRef{}
	s.queue = s.queue[1:]
	return next, true
}

func (s *Session) pushFrontLocked(track media.TrackRef) {
	s.queue = append([]media.TrackRef{track}, s.queue...)
}

// beginLocked makes track the current one in the Playing state and returns the
// generation the eventual sink source will be bound to.
func (s *Session) beginLocked(track media.TrackRef) uint64 {
	cur := track
	s.nowPlaying = &cur
	s.status = StatusPlaying
	s.started = false
	s.gen++
	return s.gen
}

func (s *Session) idleLocked() {
	s.nowPlaying = nil
	s.status = StatusIdle
	s.started = false
	s.gen++
}

func (s *Session) suppressLocked() {
	s.suppressNextAutoAdvance = true
	s.suppressedGen = s.gen
}

// consumeSuppressionLocked reads and clears the single-shot suppression flag
// for the completion of source gen.
func (s *Session) consumeSuppressionLocked(gen uint64) bool {
	if !s.suppressNextAutoAdvance || s.suppressedGen != gen {
		return false
	}
	s.suppressNextAutoAdvance = false
	s.suppressedGen = 0
	return true
}

func (s *Session) clearLocked() int {
	n := len(s.queue)
	s.queue = nil
	return n
}

func (s *Session) removeLocked(pos int) (media.TrackRef, error) {
	if pos < 1 || pos > len(s.queue) {
		return media.TrackRef{}, ErrOutOfRange
	}
	t := s.queue[pos-1]
	s.queue = append(s.queue[:pos-1], s.queue[pos:]...)
	return t, nil
}
