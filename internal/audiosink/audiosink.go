// Package audiosink implements orchestrator.AudioSink over PortAudio
// (github.com/gordonklaus/portaudio), grounded on the buffered
// capture/playback stream pattern used for audio I/O in the example
// pack (client-audio.go). The render loop (internal/orchestrator)
// writes packed 24-bit stereo frames into a ring.Buffer[byte]; Write
// itself drains every complete chunk from it into the PortAudio
// stream's int32 buffer and writes that chunk to the stream.
package audiosink

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/sbcsynth/core/internal/ring"
)

// stream is the subset of *portaudio.Stream the sink depends on, so
// tests can substitute a fake.
type stream interface {
	Start() error
	Stop() error
	Close() error
	Write() error
}

// Sink is a PortAudio-backed implementation of orchestrator.AudioSink.
// Capacity/Available are expressed in frames (one stereo pair); Write
// accepts packed 24-bit little-endian interleaved stereo bytes and
// unpacks them into the int32 buffer PortAudio writes from.
type Sink struct {
	stream      stream
	deviceBuf   []int32
	frameBuf    int
	pending     *ring.Buffer[byte]
}

// Open opens the named output device (empty string for the system
// default) at sampleRate with framesPerBuffer frames of latency.
func Open(deviceName string, sampleRate float64, framesPerBuffer int) (*Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audiosink: initialize: %w", err)
	}

	dev, err := resolveOutputDevice(deviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	deviceBuf := make([]int32, framesPerBuffer*2)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 2,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	s, err := portaudio.OpenStream(params, deviceBuf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("audiosink: open stream: %w", err)
	}

	if err := s.Start(); err != nil {
		_ = s.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("audiosink: start stream: %w", err)
	}

	return &Sink{
		stream:    s,
		deviceBuf: deviceBuf,
		frameBuf:  framesPerBuffer,
		pending:   ring.New[byte](nextPow2(framesPerBuffer * 2 * 3 * 4)),
	}, nil
}

// nextPow2 rounds n up to the nearest power of two, satisfying
// ring.New's capacity requirement for an arbitrary buffer size.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

func resolveOutputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		return portaudio.DefaultOutputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audiosink: enumerate devices: %w", err)
	}

	for _, d := range devices {
		if d.Name == name && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}

	return nil, fmt.Errorf("audiosink: output device %q not found", name)
}

// Capacity reports the sink's buffer size in frames.
func (s *Sink) Capacity() int { return s.pending.Cap() / 6 }

// Available reports free frame slots in the sink's buffer.
func (s *Sink) Available() int { return s.pending.Available() / 6 }

// Write accepts packed 24-bit stereo bytes (6 bytes/frame) and queues
// them for the PortAudio stream, converting to int32 on the way out.
func (s *Sink) Write(samples []byte) (int, error) {
	n := s.pending.EnqueueBulk(samples)

	chunkBytes := len(s.deviceBuf) * 3
	scratch := make([]byte, chunkBytes)

	for s.pending.Len() >= chunkBytes {
		chunk := s.pending.DequeueBulk(scratch)

		for i := range s.deviceBuf {
			s.deviceBuf[i] = unpack24([3]byte{chunk[i*3], chunk[i*3+1], chunk[i*3+2]})
		}

		if err := s.stream.Write(); err != nil {
			return n, fmt.Errorf("audiosink: write: %w", err)
		}
	}

	return n, nil
}

func unpack24(b [3]byte) int32 {
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if v&0x800000 != 0 {
		v |= ^int32(0xffffff)
	}

	return v << 8
}

// Close stops and tears down the underlying stream.
func (s *Sink) Close() error {
	_ = s.stream.Stop()
	err := s.stream.Close()
	_ = portaudio.Terminate()

	return err
}
