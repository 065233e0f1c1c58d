// Package opl adapts an OPL3 FM synthesis engine to the synth.Port
// contract (§4.G "FM adapters"), grounded on mt32-pi's approach to its
// alternate synth backends in src/mt32synth.cpp, generalised to a
// stateless library wrapper. The vendor OPL3 emulation library is out
// of scope; the adapter talks to the small Engine interface below.
package opl

import (
	"sync"

	"github.com/sbcsynth/core/internal/midi"
	"github.com/sbcsynth/core/internal/synth"
)

// Engine is the vendor OPL3 library's MIDI-driven API.
type Engine interface {
	HandleShort(msg uint32)
	HandleSysEx(data []byte)
	Render(out []float32, frames int)
}

// masterVolumeSysEx is the GM "master volume" universal real-time
// SysEx (F0 7F <dev> 04 01 <lsb> <msb> F7); the adapter re-sends it on
// every volume change (§4.G, "forwarded via a GM master volume SysEx
// on each change").
func masterVolumeSysEx(vol int) []byte {
	v14 := int(float64(vol) / 100.0 * 16383.0)
	lsb := byte(v14 & 0x7F)
	msb := byte((v14 >> 7) & 0x7F)

	return []byte{0xF0, 0x7F, 0x7F, 0x04, 0x01, lsb, msb, 0xF7}
}

// Adapter is a stateless wrapper over Engine: it has no synth-level
// state of its own beyond what synth.Base tracks for monitoring and
// volume.
type Adapter struct {
	mu sync.Mutex

	synth.Base

	engine Engine
}

// New returns an Adapter bound to engine.
func New(engine Engine, initialGain float64) *Adapter {
	return &Adapter{
		Base:   synth.NewBase(initialGain),
		engine: engine,
	}
}

// Initialize marks the adapter active; the OPL3 library needs no
// asset loading.
func (a *Adapter) Initialize() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Active = true

	return true
}

// IsActive reports whether Initialize has run.
func (a *Adapter) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.Active
}

// SetMasterVolume stores vol and forwards the GM master-volume SysEx.
func (a *Adapter) SetMasterVolume(vol int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Base.SetMasterVolume(vol)
	a.engine.HandleSysEx(masterVolumeSysEx(a.MasterVolumePct))
}

// HandleShort forwards a short message to the engine and the monitor.
func (a *Adapter) HandleShort(msg midi.ShortMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.engine.HandleShort(uint32(msg))
	a.Monitor.HandleMessage(msg, a.Clock())
}

// HandleSysEx intercepts the common table (§4.G) before forwarding.
func (a *Adapter) HandleSysEx(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := synth.InterceptSysEx(data)

	if r.ResetMonitor {
		a.ResetMonitor()
	}

	if r.PercussionChange {
		a.SetPercussionChannel(r.PercussionChan, r.Percussion)
	}

	if !r.Consumed {
		a.engine.HandleSysEx(data)
	}
}

// AllSoundOff silences every channel and resets the monitor.
func (a *Adapter) AllSoundOff() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for ch := 0; ch < 16; ch++ {
		a.engine.HandleShort(uint32(midi.Pack(byte(0xB0|ch), 0x7B, 0)))
	}

	a.ResetMonitor()
}

// RenderF32 renders frames of interleaved stereo float32 samples.
func (a *Adapter) RenderF32(out []float32, frames int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.engine.Render(out, frames)
}

// RenderS16 renders via the float path and converts to 16-bit PCM.
func (a *Adapter) RenderS16(out []int16, frames int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f32 := make([]float32, len(out))
	a.engine.Render(f32, frames)

	for i, s := range f32 {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		}

		if v < -32768 {
			v = -32768
		}

		out[i] = int16(v)
	}
}

// ReportStatus returns a human-readable identity string.
func (a *Adapter) ReportStatus() string {
	return "OPL3 FM"
}

// UpdateLCD draws the synth-specific overlay.
func (a *Adapter) UpdateLCD(lcd synth.LCD, ticksMs float64) {
	lcd.SetCursor(0, 0)
	lcd.Print(a.ReportStatus())
}

// GetChannelVelocities fills out with current per-channel monitor
// levels.
func (a *Adapter) GetChannelVelocities(out []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Base.GetChannelVelocities(out)
}
