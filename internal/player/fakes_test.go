package player

import (
	"context"
	"errors"
	"sync"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

type fakeSink struct {
	mu sync.Mutex

	started   []string
	stops     int
	pauses    int
	resumes   int
	volumes   []int
	playing   bool
	startErr  error
	callbacks []func(error)

	// completeOnStop makes Stop deliver the completion synchronously, the way
	// the voice sink does when its send loop unwinds.
	completeOnStop bool
}

func (s *fakeSink) Start(res media.Resource, vol int, onComplete func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = append(s.started, res.TrackID)
	s.volumes = append(s.volumes, vol)
	s.callbacks = append(s.callbacks, onComplete)
	s.playing = true
	return nil
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	s.stops++
	s.playing = false
	var cb func(error)
	if s.completeOnStop && len(s.callbacks) > 0 {
		cb = s.callbacks[len(s.callbacks)-1]
	}
	s.mu.Unlock()
	if cb != nil {
		cb(nil)
	}
	return nil
}

func (s *fakeSink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
	return nil
}

func (s *fakeSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	return nil
}

func (s *fakeSink) SetVolume(level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes = append(s.volumes, level)
	return nil
}

func (s *fakeSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// finish completes the most recently started source.
func (s *fakeSink) finish(err error) {
	s.mu.Lock()
	cb := s.callbacks[len(s.callbacks)-1]
	s.playing = false
	s.mu.Unlock()
	cb(err)
}

func (s *fakeSink) startedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

func (s *fakeSink) counts() (stops, pauses, resumes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops, s.pauses, s.resumes
}

var errNotFound = errors.New("not found")

type fakeResolver struct {
	mu      sync.Mutex
	calls   map[string]int
	missing map[string]bool
	gates   map[string]chan struct{}
	entered chan string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		calls:   map[string]int{},
		missing: map[string]bool{},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 16),
	}
}

// block makes Resolve for id wait until the returned func is called.
func (r *fakeResolver) block(id string) func() {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[id] = ch
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (r *fakeResolver) Resolve(ctx context.Context, t media.TrackRef) (media.Resource, error) {
	r.mu.Lock()
	r.calls[t.ID]++
	gate := r.gates[t.ID]
	missing := r.missing[t.ID]
	r.mu.Unlock()

	select {
	case r.entered <- t.ID:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return media.Resource{}, ctx.Err()
		}
	}
	if missing {
		return media.Resource{}, errNotFound
	}
	return media.Resource{TrackID: t.ID, Path: "/cache/" + t.ID, Size: 1}, nil
}

func (r *fakeResolver) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func track(id string) media.TrackRef {
	return media.TrackRef{ID: id, Title: "Song" + id}
}

func queueIDs(q []media.TrackRef) []string {
	ids := make([]string, len(q))
	for i, t := range q {
		ids[i] = t.ID
	}
	return ids
}
