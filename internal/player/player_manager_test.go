package player

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetCreatesOneSessionPerGuild(t *testing.T) {
	pm := NewPlayerManager()

	const n = 32
	got := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = pm.Get("guild")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("Get returned different sessions for the same guild")
		}
	}
	if pm.Len() != 1 {
		t.Errorf("Len = %d, want 1", pm.Len())
	}
	if s := got[0].Snapshot(); s.Status != StatusIdle || s.VolumePercent != DefaultVolume {
		t.Errorf("new session = %+v, want idle at default volume", s)
	}
}

func TestDefaultVolumeLookup(t *testing.T) {
	var calls atomic.Int32
	pm := NewPlayerManager(WithDefaultVolume(func(guildID string) int {
		calls.Add(1)
		if guildID == "quiet" {
			return 25
		}
		return -1
	}))

	if v := pm.Get("quiet").Snapshot().VolumePercent; v != 25 {
		t.Errorf("quiet volume = %d, want 25", v)
	}
	pm.Get("quiet")
	if calls.Load() != 1 {
		t.Errorf("lookup calls = %d, want 1", calls.Load())
	}
	// a negative lookup result falls back to the default
	if v := pm.Get("loud").Snapshot().VolumePercent; v != DefaultVolume {
		t.Errorf("loud volume = %d, want %d", v, DefaultVolume)
	}
}

func TestRemove(t *testing.T) {
	pm := NewPlayerManager()
	first := pm.Get("g")
	if pm.Peek("missing") != nil {
		t.Errorf("Peek created a session")
	}
	if pm.Remove("g") != first {
		t.Errorf("Remove returned the wrong session")
	}
	if pm.Peek("g") != nil || pm.Len() != 0 {
		t.Errorf("session still registered after Remove")
	}
	if pm.Get("g") == first {
		t.Errorf("Get after Remove returned the old session")
	}
}

func TestSessionTransitions(t *testing.T) {
	s := newSession("g", 50)
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, start := s.enqueueLocked(track("a"))
	if !start || pos != 0 || len(s.queue) != 0 {
		t.Fatalf("enqueue on empty idle: pos=%d start=%v queue=%d", pos, start, len(s.queue))
	}
	g1 := s.beginLocked(track("a"))
	if s.status != StatusPlaying || s.nowPlaying.ID != "a" {
		t.Fatalf("begin did not make a current")
	}
	if pos, start := s.enqueueLocked(track("b")); start || pos != 1 {
		t.Errorf("enqueue while playing: pos=%d start=%v", pos, start)
	}

	s.suppressLocked()
	s.idleLocked()
	if s.gen == g1 {
		t.Errorf("idle did not move the generation")
	}
	if s.consumeSuppressionLocked(s.gen) {
		t.Errorf("suppression consumed for the wrong generation")
	}
	if !s.consumeSuppressionLocked(g1) {
		t.Errorf("suppression not consumed for the stopped generation")
	}
	if s.consumeSuppressionLocked(g1) {
		t.Errorf("suppression consumed twice")
	}

	next, ok := s.dequeueLocked()
	if !ok || next.ID != "b" {
		t.Errorf("dequeue = %+v %v, want b", next, ok)
	}
	if _, ok := s.dequeueLocked(); ok {
		t.Errorf("dequeue on empty queue succeeded")
	}
}
