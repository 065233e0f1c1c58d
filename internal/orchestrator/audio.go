package orchestrator

// AudioSink is the playback queue the orchestrator pushes converted
// samples into. Capacity and Available are expressed in frames
// (stereo pairs), Available being the free room; Write takes packed 24-bit little-endian interleaved
// stereo bytes and returns how many bytes were actually accepted.
type AudioSink interface {
	Capacity() int
	Available() int
	Write(samples []byte) (int, error)
}

// Log receives a message when the audio task writes short to the
// sink (§4.M "log on short write"); nil in tests that don't care.
type Log func(msg string)

// clipScale converts a [-1,1] float sample to a 24-bit signed integer
// range, per §4.M's `clip(x * (2^23 - 1))`.
const clipScale = (1 << 23) - 1

// RenderAudio runs one audio task iteration: size the render to the
// sink's free capacity, render float32 frames from the active synth,
// convert to 24-bit with the reversed-stereo swap applied, and submit
// to sink (§4.M "Audio task loop").
func (c *Core) RenderAudio(sink AudioSink, log Log) {
	frames := sink.Available()
	if frames <= 0 {
		return
	}

	floatBuf := make([]float32, frames*2)

	if p := c.active(); p != nil {
		p.RenderF32(floatBuf, frames)
	}

	packed := make([]byte, frames*2*3)

	for i := 0; i < frames; i++ {
		left := floatBuf[i*2]
		right := floatBuf[i*2+1]

		if c.ReversedStereo {
			left, right = right, left
		}

		putSample24(packed[i*6:], left)
		putSample24(packed[i*6+3:], right)
	}

	n, err := sink.Write(packed)
	if err != nil || n < len(packed) {
		if log != nil {
			log("orchestrator: short audio write")
		}
	}
}

// putSample24 writes one clipped, little-endian 24-bit signed sample
// into buf[0:3].
func putSample24(buf []byte, x float32) {
	v := int32(float64(x) * clipScale)

	if v > clipScale {
		v = clipScale
	}

	if v < -clipScale-1 {
		v = -clipScale - 1
	}

	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
}
