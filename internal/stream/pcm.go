package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
)

const (
	SampleRate = 48000
	Channels   = 2
	// FrameSamples is 20 ms at 48 kHz, the frame size the voice gateway expects.
	FrameSamples = 960
	FrameBytes   = FrameSamples * Channels * 2
)

func init() {
	astiav.SetLogLevel(astiav.LogLevelFatal)
}

// Decoder turns a local audio file into 20 ms frames of 48 kHz stereo s16le PCM.
type Decoder struct {
	fc          *astiav.FormatContext
	dec         *astiav.CodecContext
	swr         *astiav.SoftwareResampleContext
	pkt         *astiav.Packet
	frame       *astiav.Frame
	out         *astiav.Frame
	streamIndex int

	pending []byte
	eof     bool
}

// OpenFile opens path and prepares a decoder for its first audio stream.
func OpenFile(path string) (*Decoder, error) {
	d := &Decoder{streamIndex: -1}

	d.fc = astiav.AllocFormatContext()
	if d.fc == nil {
		return nil, errors.New("alloc format context")
	}
	if err := d.fc.OpenInput(path, nil, nil); err != nil {
		d.fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := d.fc.FindStreamInfo(nil); err != nil {
		d.Close()
		return nil, fmt.Errorf("find stream info: %w", err)
	}
	for _, s := range d.fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			d.streamIndex = s.Index()
			break
		}
	}
	if d.streamIndex < 0 {
		d.Close()
		return nil, errors.New("no audio stream")
	}

	params := d.fc.Streams()[d.streamIndex].CodecParameters()
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		d.Close()
		return nil, fmt.Errorf("no decoder for %s", params.CodecID())
	}
	d.dec = astiav.AllocCodecContext(codec)
	if d.dec == nil {
		d.Close()
		return nil, errors.New("alloc decoder context")
	}
	if err := params.ToCodecContext(d.dec); err != nil {
		d.Close()
		return nil, fmt.Errorf("copy codec params: %w", err)
	}
	if err := d.dec.Open(codec, nil); err != nil {
		d.Close()
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	d.swr = astiav.AllocSoftwareResampleContext()
	d.pkt = astiav.AllocPacket()
	d.frame = astiav.AllocFrame()
	d.out = astiav.AllocFrame()
	if d.swr == nil || d.pkt == nil || d.frame == nil || d.out == nil {
		d.Close()
		return nil, errors.New("alloc resampler")
	}
	return d, nil
}

// ReadFrame fills buf with the next FrameBytes of PCM. The last frame is
// padded with silence. It returns io.EOF once the input is exhausted.
func (d *Decoder) ReadFrame(buf []byte) error {
	if len(buf) != FrameBytes {
		return fmt.Errorf("frame buffer is %d bytes, want %d", len(buf), FrameBytes)
	}
	for len(d.pending) < FrameBytes && !d.eof {
		if err := d.decodeMore(); err != nil {
			return err
		}
	}
	if len(d.pending) == 0 {
		return io.EOF
	}
	n := copy(buf, d.pending)
	clear(buf[n:])
	d.pending = d.pending[:copy(d.pending, d.pending[n:])]
	return nil
}

func (d *Decoder) decodeMore() error {
	d.pkt.Unref()
	if err := d.fc.ReadFrame(d.pkt); err != nil {
		if !errors.Is(err, astiav.ErrEof) {
			return fmt.Errorf("read packet: %w", err)
		}
		d.eof = true
		if err := d.dec.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
			return fmt.Errorf("flush decoder: %w", err)
		}
		return d.drain()
	}
	if d.pkt.StreamIndex() != d.streamIndex {
		return nil
	}
	if err := d.dec.SendPacket(d.pkt); err != nil {
		return fmt.Errorf("send packet: %w", err)
	}
	return d.drain()
}

func (d *Decoder) drain() error {
	for {
		if err := d.dec.ReceiveFrame(d.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("decode: %w", err)
		}
		err := d.resample()
		d.frame.Unref()
		if err != nil {
			return err
		}
	}
}

func (d *Decoder) resample() error {
	nb := int(astiav.RescaleQ(int64(d.frame.NbSamples()),
		astiav.NewRational(1, d.frame.SampleRate()), astiav.NewRational(1, SampleRate)))
	if nb <= 0 {
		return nil
	}
	d.out.Unref()
	d.out.SetChannelLayout(astiav.ChannelLayoutStereo)
	d.out.SetSampleFormat(astiav.SampleFormatS16)
	d.out.SetSampleRate(SampleRate)
	d.out.SetNbSamples(nb)
	if err := d.out.AllocBuffer(0); err != nil {
		return fmt.Errorf("alloc pcm buffer: %w", err)
	}
	if err := d.swr.ConvertFrame(d.frame, d.out); err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	// align 1 so the slice holds exactly nb_samples, not a padded plane
	b, err := d.out.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("read pcm: %w", err)
	}
	d.pending = append(d.pending, b...)
	return nil
}

func (d *Decoder) Close() {
	if d.out != nil {
		d.out.Free()
	}
	if d.frame != nil {
		d.frame.Free()
	}
	if d.pkt != nil {
		d.pkt.Free()
	}
	if d.swr != nil {
		d.swr.Free()
	}
	if d.dec != nil {
		d.dec.Free()
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
	}
	*d = Decoder{}
}
