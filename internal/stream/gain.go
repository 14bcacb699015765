package stream

// MaxGain is the highest percent that still changes anything: at this level
// every non-zero sample already clips.
const MaxGain = 32768 * 100

// ApplyGain scales interleaved s16le samples in place by percent/100,
// clipping at the int16 range. 100 leaves the buffer untouched.
func ApplyGain(pcm []byte, percent int) {
	if percent == 100 {
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > MaxGain {
		percent = MaxGain
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		scaled := int64(sample) * int64(percent) / 100
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		pcm[i] = byte(scaled)
		pcm[i+1] = byte(scaled >> 8)
	}
}
