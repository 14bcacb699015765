package voice

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/stream"
)

type fakeConn struct {
	mu       sync.Mutex
	packets  [][]byte
	speaking []bool
	// gate, when set, blocks every Send until it receives.
	gate chan struct{}
	fail error
}

func (c *fakeConn) Speaking(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = append(c.speaking, on)
	return nil
}

func (c *fakeConn) Send(ctx context.Context, pkt []byte) error {
	if c.fail != nil {
		return c.fail
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, pkt)
	return nil
}

func (c *fakeConn) sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

// fakeReader yields frames frames whose first sample is 1000.
type fakeReader struct {
	frames int
	err    error
	closed bool
}

func (r *fakeReader) ReadFrame(buf []byte) error {
	if r.frames == 0 {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	r.frames--
	clear(buf)
	buf[0], buf[1] = 0xe8, 0x03
	return nil
}

func (r *fakeReader) Close() { r.closed = true }

// fakeEncoder emits the first two PCM bytes as the packet.
type fakeEncoder struct{}

func (fakeEncoder) EncodeFrame(pcm []byte, on stream.PacketFunc) error {
	return on([]byte{pcm[0], pcm[1]})
}
func (fakeEncoder) Flush(stream.PacketFunc) error { return nil }
func (fakeEncoder) Close()                        {}

func newTestSink(conn *fakeConn, r *fakeReader) *Sink {
	return NewSink("g1", conn, WithCodec(
		func(string) (FrameReader, error) { return r, nil },
		func() (FrameEncoder, error) { return fakeEncoder{}, nil },
	))
}

func waitDone(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("completion not delivered")
		return nil
	}
}

func TestSinkPlaysToEnd(t *testing.T) {
	conn := &fakeConn{}
	r := &fakeReader{frames: 5}
	s := newTestSink(conn, r)

	done := make(chan error, 1)
	if err := s.Start(media.Resource{TrackID: "t", Path: "x"}, 100, func(err error) { done <- err }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("completion err = %v", err)
	}
	if got := conn.sent(); got != 5 {
		t.Errorf("sent %d packets, want 5", got)
	}
	if got := s.Elapsed(); got != 100*time.Millisecond {
		t.Errorf("Elapsed = %v, want 100ms", got)
	}
	if !r.closed {
		t.Error("decoder not closed")
	}
	if s.IsPlaying() {
		t.Error("IsPlaying after end")
	}
}

func TestSinkAppliesVolume(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSink(conn, &fakeReader{frames: 1})
	done := make(chan error, 1)
	s.Start(media.Resource{TrackID: "t"}, 50, func(err error) { done <- err })
	waitDone(t, done)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.packets) != 1 {
		t.Fatalf("sent %d packets", len(conn.packets))
	}
	// 1000 at 50% is 500 = 0x01f4
	if p := conn.packets[0]; p[0] != 0xf4 || p[1] != 0x01 {
		t.Errorf("packet = %x, want f401", p)
	}
}

func TestSinkHugeVolumeSaturates(t *testing.T) {
	conn := &fakeConn{}
	s := newTestSink(conn, &fakeReader{frames: 2})
	done := make(chan error, 1)
	s.Start(media.Resource{TrackID: "t"}, math.MaxInt, func(err error) { done <- err })
	waitDone(t, done)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	// 1000 clipped to 32767 = 0x7fff, not muted by an int32 wrap
	for i, p := range conn.packets {
		if p[0] != 0xff || p[1] != 0x7f {
			t.Errorf("packet %d = %x, want ff7f", i, p)
		}
	}
	if len(conn.packets) != 2 {
		t.Errorf("sent %d packets, want 2", len(conn.packets))
	}
}

func TestSinkStopCompletesWithNil(t *testing.T) {
	conn := &fakeConn{gate: make(chan struct{})}
	s := newTestSink(conn, &fakeReader{frames: 1000})
	done := make(chan error, 1)
	s.Start(media.Resource{TrackID: "t"}, 100, func(err error) { done <- err })

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Errorf("completion after stop = %v, want nil", err)
	}
	if s.IsPlaying() {
		t.Error("IsPlaying after stop")
	}
}

func TestSinkReportsDecodeError(t *testing.T) {
	boom := errors.New("corrupt frame")
	s := newTestSink(&fakeConn{}, &fakeReader{frames: 2, err: boom})
	done := make(chan error, 1)
	s.Start(media.Resource{TrackID: "t"}, 100, func(err error) { done <- err })
	if err := waitDone(t, done); !errors.Is(err, boom) {
		t.Errorf("completion = %v, want %v", err, boom)
	}
}

func TestSinkReportsSendError(t *testing.T) {
	closed := errors.New("connection closed")
	s := newTestSink(&fakeConn{fail: closed}, &fakeReader{frames: 2})
	done := make(chan error, 1)
	s.Start(media.Resource{TrackID: "t"}, 100, func(err error) { done <- err })
	if err := waitDone(t, done); !errors.Is(err, closed) {
		t.Errorf("completion = %v, want %v", err, closed)
	}
}

func TestSinkStartOpenError(t *testing.T) {
	bad := errors.New("not audio")
	s := NewSink("g1", &fakeConn{}, WithCodec(
		func(string) (FrameReader, error) { return nil, bad },
		func() (FrameEncoder, error) { return fakeEncoder{}, nil },
	))
	called := false
	err := s.Start(media.Resource{TrackID: "t"}, 100, func(error) { called = true })
	if !errors.Is(err, bad) {
		t.Fatalf("Start err = %v, want %v", err, bad)
	}
	if called || s.IsPlaying() {
		t.Error("failed start must not play or complete")
	}
}

func TestSinkPauseResume(t *testing.T) {
	conn := &fakeConn{gate: make(chan struct{})}
	s := newTestSink(conn, &fakeReader{frames: 3})
	done := make(chan error, 1)
	s.Start(media.Resource{TrackID: "t"}, 100, func(err error) { done <- err })

	// let exactly one packet through, then hold the source
	conn.gate <- struct{}{}
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if s.IsPlaying() {
		t.Error("IsPlaying while paused")
	}
	time.Sleep(50 * time.Millisecond)
	if got := conn.sent(); got != 1 {
		t.Fatalf("sent %d packets while paused, want 1", got)
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	close(conn.gate)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("completion = %v", err)
	}
	if got := conn.sent(); got != 3 {
		t.Errorf("sent %d packets, want 3", got)
	}
}

func TestSinkPauseWithoutSource(t *testing.T) {
	s := newTestSink(&fakeConn{}, &fakeReader{})
	if err := s.Pause(); err == nil {
		t.Error("Pause with nothing playing should fail")
	}
	if err := s.Resume(); err == nil {
		t.Error("Resume with nothing playing should fail")
	}
	if err := s.SetVolume(-1); err == nil {
		t.Error("SetVolume(-1) should fail")
	}
}

func TestSinkStartReplacesSource(t *testing.T) {
	conn := &fakeConn{gate: make(chan struct{})}
	first := &fakeReader{frames: 1000}
	second := &fakeReader{frames: 1}
	readers := []*fakeReader{first, second}
	s := NewSink("g1", conn, WithCodec(
		func(string) (FrameReader, error) {
			r := readers[0]
			readers = readers[1:]
			return r, nil
		},
		func() (FrameEncoder, error) { return fakeEncoder{}, nil },
	))

	firstDone := make(chan error, 1)
	s.Start(media.Resource{TrackID: "a"}, 100, func(err error) { firstDone <- err })
	secondDone := make(chan error, 1)
	close(conn.gate)
	s.Start(media.Resource{TrackID: "b"}, 100, func(err error) { secondDone <- err })

	if err := waitDone(t, firstDone); err != nil {
		t.Errorf("first completion = %v", err)
	}
	if err := waitDone(t, secondDone); err != nil {
		t.Errorf("second completion = %v", err)
	}
	if !first.closed || !second.closed {
		t.Error("readers not closed")
	}
}
