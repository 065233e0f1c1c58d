// Package mt32 adapts the LA (MT-32-family) synth engine to the
// synth.Port contract (§4.G "LA (Mt32)"), grounded on mt32-pi's
// CMT32Synth (original_source/include/mt32synth.h,
// src/mt32synth.cpp). The actual LA DSP library is out of scope; the
// adapter talks to the small Engine interface below, with a fake
// implementation for tests.
package mt32

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sbcsynth/core/internal/midi"
	"github.com/sbcsynth/core/internal/rom"
	"github.com/sbcsynth/core/internal/synth"
)

// MidiChannels selects the MT-32 channel mapping (§4.G
// "set_midi_channels").
type MidiChannels int

const (
	ChannelsStandard MidiChannels = iota
	ChannelsAlternate
)

// Engine is the vendor LA synthesis library's role, reduced to what
// the adapter needs.
type Engine interface {
	Open(control, pcm []byte) error
	Close()
	HandleShort(msg uint32)
	HandleSysEx(data []byte)
	Render(out []float32, frames int)
	SetOutputGain(gain float64)
}

// Adapter is the LA synth port. Every exported method takes mu for
// its whole body, matching §4.F's "render_* acquires it, as do state
// mutations visible from any task."
type Adapter struct {
	mu sync.Mutex

	synth.Base

	roms    *rom.Manager
	engine  Engine
	current rom.Set
}

// New returns an Adapter bound to roms and engine. initialGain matches
// the profile/config gain resolved before construction (§4.G).
func New(roms *rom.Manager, engine Engine, initialGain float64) *Adapter {
	return &Adapter{
		Base:   synth.NewBase(initialGain),
		roms:   roms,
		engine: engine,
	}
}

// Initialize picks the preferred or fallback ROM set and opens the
// engine (the RomManager itself is populated by the orchestrator's
// startup scan).
func (a *Adapter) Initialize() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	set, control, pcm, ok := a.roms.Get(rom.Any)
	if !ok {
		a.Active = false
		return false
	}

	if err := a.engine.Open(control.Data, pcm.Data); err != nil {
		a.Active = false
		return false
	}

	a.current = set
	a.engine.SetOutputGain(a.EffectiveGain())
	a.Active = true

	return true
}

// IsActive reports whether the adapter has completed Initialize and
// not since been torn down.
func (a *Adapter) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.Active
}

// SwitchRomSet atomically closes and reopens under the mutex. If set
// equals the currently active set it reports "already selected" and
// returns false without touching state (§8 invariant 10, idempotent
// switch).
func (a *Adapter) SwitchRomSet(set rom.Set) (alreadyActive bool, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if set == a.current && a.Active {
		return true, false
	}

	chosen, control, pcm, present := a.roms.Get(set)
	if !present {
		return false, false
	}

	a.engine.Close()

	if err := a.engine.Open(control.Data, pcm.Data); err != nil {
		a.Active = false
		return false, false
	}

	a.current = chosen
	a.engine.SetOutputGain(a.EffectiveGain())
	a.Active = true

	return false, true
}

// SetMidiChannels sends the SysEx selecting standard or alternate
// MIDI channel assignment (§4.G).
func (a *Adapter) SetMidiChannels(ch MidiChannels) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sysex []byte
	if ch == ChannelsAlternate {
		sysex = []byte{0xF0, 0x41, 0x10, 0x16, 0x12, 0x10, 0x00, 0x0D, 0x00, 0x01, 0x00, 0x00, 0xF7}
	} else {
		sysex = []byte{0xF0, 0x41, 0x10, 0x16, 0x12, 0x10, 0x00, 0x0D, 0x00, 0x00, 0x00, 0x00, 0xF7}
	}

	a.engine.HandleSysEx(sysex)
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

// HandleSysEx intercepts the common table (§4.G) before forwarding
// whatever isn't consumed.
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

// AllSoundOff silences the engine and resets the monitor (§4.F).
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
		out[i] = floatToS16(s)
	}
}

func floatToS16(s float32) int16 {
	v := s * 32767.0
	if v > 32767 {
		v = 32767
	}

	if v < -32768 {
		v = -32768
	}

	return int16(v)
}

// ReportStatus returns a human-readable identity string (§4.F).
func (a *Adapter) ReportStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return fmt.Sprintf("MT-32: %s", romSetName(a.current))
}

func romSetName(s rom.Set) string {
	switch s {
	case rom.Mt32Old:
		return "MT-32 (old)"
	case rom.Mt32New:
		return "MT-32 (new)"
	case rom.CmL:
		return "CM-32L"
	default:
		return "none"
	}
}

// UpdateLCD draws the synth-specific overlay (§4.F).
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

// Control ROM version-string offsets (original_source/src/synth/
// mt32synth.cpp:33-35), keyed by which control ROM family produced
// the image: the "new" family (CM-32L and MT-32 firmware 2.04/2.06/
// 2.07), the 1.07/"bluer" revision, and everything else (the old
// family).
const (
	romOffsetVersionStringOld  = 0x4015
	romOffsetVersionString107  = 0x4011
	romOffsetVersionStringNew  = 0x2206
)

// VersionString extracts the control ROM's version string at the
// offset implied by its short name, the same family classification
// CMT32Synth::GetControlROMName performs via strstr on the ROM info's
// short name (with its "ctrl_" prefix already stripped).
func VersionString(img *rom.Image) string {
	if img == nil {
		return ""
	}

	name := strings.TrimPrefix(img.ShortName, "ctrl_")

	var offset int

	switch {
	case strings.Contains(name, "cm32l"), strings.Contains(name, "2_04"),
		strings.Contains(name, "2_06"), strings.Contains(name, "2_07"):
		offset = romOffsetVersionStringNew
	case strings.Contains(name, "1_07"), strings.Contains(name, "bluer"):
		offset = romOffsetVersionString107
	default:
		offset = romOffsetVersionStringOld
	}

	const versionLen = 20

	if offset+versionLen > len(img.Data) {
		return ""
	}

	return string(img.Data[offset : offset+versionLen])
}
