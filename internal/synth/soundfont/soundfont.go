// Package soundfont adapts a SoundFont-playback engine (FluidSynth in
// the source) to the synth.Port contract (§4.G "SoundFont"), grounded
// on mt32-pi's CSoundFontSynth
// (original_source/include/soundfontsynth.h,
// src/soundfontsynth.cpp).
package soundfont

import (
	"fmt"
	"sync"

	"github.com/sbcsynth/core/internal/midi"
	sfmgr "github.com/sbcsynth/core/internal/soundfont"
	"github.com/sbcsynth/core/internal/synth"
)

// Engine is the vendor SoundFont synthesis library's role.
type Engine interface {
	Open(soundfontData []byte, profile sfmgr.FxProfile) error
	Close()
	HandleShort(msg uint32)
	HandleSysEx(data []byte)
	Render(out []float32, frames int)
	SetOutputGain(gain float64)
}

// Loader reads a catalogued entry's bytes and FxProfile; the
// orchestrator supplies one bound to the active mount set.
type Loader interface {
	Load(entry sfmgr.Entry) (data []byte, profile sfmgr.FxProfile, err error)
}

// Adapter is the SoundFont synth port.
type Adapter struct {
	mu sync.Mutex

	synth.Base

	manager *sfmgr.Manager
	loader  Loader
	engine  Engine

	currentIndex int
	currentEntry sfmgr.Entry

	defaultGain float64
}

// New returns an Adapter bound to manager, loader and engine.
// defaultGain is config.default_gain, used when a profile's gain
// field is absent (§4.G).
func New(manager *sfmgr.Manager, loader Loader, engine Engine, defaultGain float64) *Adapter {
	return &Adapter{
		Base:         synth.NewBase(defaultGain),
		manager:      manager,
		loader:       loader,
		engine:       engine,
		currentIndex: -1,
		defaultGain:  defaultGain,
	}
}

// Initialize loads the first catalogued SoundFont, if any.
func (a *Adapter) Initialize() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := a.manager.Entries()
	if len(entries) == 0 {
		a.Active = false
		return false
	}

	return a.switchLocked(0)
}

// IsActive reports whether a SoundFont is currently loaded.
func (a *Adapter) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.Active
}

// SwitchSoundFont performs a full reinitialize: destroy current
// engine, rebuild with current settings, load new font file (§4.G).
// If i equals the currently active index, it reports "already
// selected" and returns false without touching state (§8 invariant
// 10).
func (a *Adapter) SwitchSoundFont(i int) (alreadyActive bool, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i == a.currentIndex && a.Active {
		return true, false
	}

	return false, a.switchLocked(i)
}

func (a *Adapter) switchLocked(i int) bool {
	entries := a.manager.Entries()
	if i < 0 || i >= len(entries) {
		a.Active = false
		return false
	}

	entry := entries[i]

	data, profile, err := a.loader.Load(entry)
	if err != nil {
		a.Active = false
		return false
	}

	a.engine.Close()

	if err := a.engine.Open(data, profile); err != nil {
		a.Active = false
		return false
	}

	gain := a.defaultGain
	if profile.Gain != nil {
		gain = *profile.Gain
	}

	a.InitialGain = gain
	a.engine.SetOutputGain(a.EffectiveGain())

	a.currentIndex = i
	a.currentEntry = entry
	a.Active = true

	return true
}

// SetMasterVolume stores vol and reapplies gain to the engine.
func (a *Adapter) SetMasterVolume(vol int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Base.SetMasterVolume(vol)
	a.engine.SetOutputGain(a.EffectiveGain())
}

// HandleShort forwards a short message to the engine and the monitor.
func (a *Adapter) HandleShort(msg midi.ShortMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.engine.HandleShort(uint32(msg))
	a.Monitor.HandleMessage(msg, a.Clock())
}

// HandleSysEx intercepts the common table (§4.G), including the
// Roland "use for rhythm part" percussion-bitmask updates this
// adapter maintains for its own channel metering.
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

// AllSoundOff silences the engine and resets the monitor.
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
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Active {
		return "SoundFont: none"
	}

	return fmt.Sprintf("SoundFont: %s", a.currentEntry.DisplayName)
}

// UpdateLCD draws the synth-specific overlay.
func (a *Adapter) UpdateLCD(lcd synth.LCD, ticksMs float64) {
	status := a.ReportStatus()

	lcd.SetCursor(0, 0)
	lcd.Print(status)
}

// GetChannelVelocities fills out with current per-channel monitor
// levels.
func (a *Adapter) GetChannelVelocities(out []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Base.GetChannelVelocities(out)
}
