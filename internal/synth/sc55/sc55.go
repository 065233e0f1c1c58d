// Package sc55 adapts an SC-55-compatible synth engine to the
// synth.Port contract (§4.G "FM adapters" family, supplemented per
// SPEC_FULL §6 with its own display SysEx table), grounded on
// mt32-pi's CSC55Synth (original_source/include/synth/sc55synth.h,
// src/synth/sc55synth.cpp). The vendor SC-55 emulation library
// (EmuSC) is out of scope; the adapter talks to the small Engine
// interface below. Unlike mt32 and soundfont, the original doesn't yet
// intercept any SysEx into the library itself ("Not implemented in
// EmuSC yet") — only the display messages are recognised, to drive the
// UI the same way the general Roland table does for other synths.
package sc55

import (
	"sync"

	"github.com/sbcsynth/core/internal/midi"
	"github.com/sbcsynth/core/internal/synth"
)

// Engine is the vendor SC-55 library's MIDI-driven API.
type Engine interface {
	HandleShort(msg uint32)
	Render(out []float32, frames int)
}

// Adapter is a stateless wrapper over Engine: it has no synth-level
// state of its own beyond what synth.Base tracks for monitoring and
// volume.
type Adapter struct {
	mu sync.Mutex

	synth.Base

	engine Engine

	// OnDisplay is called when a display-text or display-dots SysEx is
	// recognised, so the caller can drive the UI the way orchestrator's
	// handleRawSysEx does for the shared table. Nil is a valid no-op.
	OnDisplay func(kind DisplayKind, data []byte)
}

// New returns an Adapter bound to engine.
func New(engine Engine, initialGain float64) *Adapter {
	return &Adapter{
		Base:   synth.NewBase(initialGain),
		engine: engine,
	}
}

// Initialize marks the adapter active; like the original, the SC-55
// adapter has no asset loading step of its own.
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

// SetMasterVolume stores vol; the original's SC-55 adapter doesn't
// forward master volume to the engine at all (CSC55Synth::SetMasterVolume
// is empty), so this only updates the monitored value.
func (a *Adapter) SetMasterVolume(vol int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Base.SetMasterVolume(vol)
}

// HandleShort forwards a short message to the engine and the monitor.
func (a *Adapter) HandleShort(msg midi.ShortMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.engine.HandleShort(uint32(msg))
	a.Monitor.HandleMessage(msg, a.Clock())
}

// HandleSysEx recognises the SC-55's own display table; every other
// SysEx is dropped, matching CSC55Synth::HandleMIDISysExMessage.
func (a *Adapter) HandleSysEx(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := InterceptDisplaySysEx(data)
	if r.Display == DisplayNone {
		return
	}

	if a.OnDisplay != nil {
		a.OnDisplay(r.Display, r.Data)
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
	return "SC-55"
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
