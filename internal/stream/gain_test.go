package stream

import (
	"encoding/binary"
	"math"
	"testing"
)

func samples(vals ...int16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func decode(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func TestApplyGain(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		in      []int16
		want    []int16
	}{
		{"unity", 100, []int16{1000, -1000, 32767}, []int16{1000, -1000, 32767}},
		{"half", 50, []int16{1000, -1000, 3}, []int16{500, -500, 1}},
		{"mute", 0, []int16{1000, -32768}, []int16{0, 0}},
		{"negative treated as mute", -10, []int16{1000}, []int16{0}},
		{"boost clips high", 200, []int16{20000, 100}, []int16{32767, 200}},
		{"boost clips low", 150, []int16{-30000}, []int16{-32768}},
		{"huge level saturates", math.MaxInt, []int16{1, -1, 0}, []int16{32767, -32768, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := samples(tt.in...)
			ApplyGain(buf, tt.percent)
			got := decode(buf)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("sample %d = %d, want %d (all %v)", i, got[i], tt.want[i], got)
				}
			}
		})
	}
}

func TestApplyGainOddLength(t *testing.T) {
	buf := append(samples(400), 0x7f)
	ApplyGain(buf, 50)
	if got := decode(buf[:2])[0]; got != 200 {
		t.Fatalf("sample = %d, want 200", got)
	}
	if buf[2] != 0x7f {
		t.Fatalf("trailing byte changed to %#x", buf[2])
	}
}
