// Package synth defines the polymorphic contract every synth adapter
// implements (§4.F) and the shared plumbing — the monitor and the
// SysEx interception table common to every adapter (§4.G) — grounded
// on mt32-pi's CSynthBase (original_source/include/synthbase.h,
// src/synthbase.cpp).
package synth

import (
	"time"

	"github.com/sbcsynth/core/internal/midi"
	"github.com/sbcsynth/core/internal/monitor"
)

// Quality selects the sample-rate converter quality used by adapters
// that resample (the LA adapter, per §4.G).
type Quality int

const (
	QualityNone Quality = iota
	QualityFastest
	QualityFast
	QualityGood
	QualityBest
)

// LCD is the minimal drawing surface an adapter's update_lcd overlay
// needs; both character and graphical backends (§4.I) implement it.
type LCD interface {
	SetCursor(col, row int)
	Print(s string)
	Clear()
}

// Port is the contract every synth adapter exposes (§4.F). render_f32
// and render_s16 are split by output width since Go has no generic
// numeric render signature that stays branch-free in the hot path.
type Port interface {
	Initialize() bool
	HandleShort(msg midi.ShortMessage)
	HandleSysEx(data []byte)
	IsActive() bool
	AllSoundOff()
	SetMasterVolume(vol int)
	RenderF32(out []float32, frames int)
	RenderS16(out []int16, frames int)
	ReportStatus() string
	UpdateLCD(lcd LCD, ticksMs float64)
	GetChannelVelocities(out []float64)
}

// Base holds the state every adapter shares: the monitor, master
// volume, initial gain and percussion bitmask (§4.F, §4.G). It carries
// no lock of its own — every adapter embeds its own sync.Mutex and
// guards a whole operation (render, switch, SysEx handling) with it,
// per "between acquisitions the synth is a black box" (§4.F); Base's
// accessors assume that lock is already held by the caller.
type Base struct {
	Monitor *monitor.Monitor

	// Clock returns the current monotonic time in milliseconds, the
	// timebase the envelope math in internal/monitor runs on. Tests
	// substitute a deterministic stand-in.
	Clock func() float64

	Active          bool
	MasterVolumePct int // 0..100
	InitialGain     float64
	PercMask        uint16
}

// NewBase returns a Base with default master volume (100%), a fresh
// Monitor, a wall-clock-backed Clock, and channel 10 (0-based 9)
// marked percussion per the GM default.
func NewBase(initialGain float64) Base {
	return Base{
		Monitor:         monitor.New(),
		Clock:           wallClockMs,
		MasterVolumePct: 100,
		InitialGain:     initialGain,
		PercMask:        1 << 9,
	}
}

func wallClockMs() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}

// SetMasterVolume stores vol (0..100), clamped.
func (b *Base) SetMasterVolume(vol int) {
	if vol < 0 {
		vol = 0
	}

	if vol > 100 {
		vol = 100
	}

	b.MasterVolumePct = vol
}

// EffectiveGain returns the adapter's initial gain scaled by the
// current master volume percentage (§4.G, "interpreted relative to
// the adapter's initial gain").
func (b *Base) EffectiveGain() float64 {
	return b.InitialGain * float64(b.MasterVolumePct) / 100.0
}

// SetPercussionChannel updates the Roland "use for rhythm part"
// bitmask maintained from SysEx (§4.G).
func (b *Base) SetPercussionChannel(ch int, percussion bool) {
	if percussion {
		b.PercMask |= 1 << uint(ch)
	} else {
		b.PercMask &^= 1 << uint(ch)
	}
}

// ResetMonitor replaces Monitor with a fresh one (§4.G, GM/GS/XG reset
// messages).
func (b *Base) ResetMonitor() {
	b.Monitor = monitor.New()
}

// GetChannelVelocities fills out with the current per-channel monitor
// levels, used by the UI meter when the adapter has no more
// authoritative source (§4.F).
func (b *Base) GetChannelVelocities(out []float64) {
	levels, _ := b.Monitor.GetChannelLevels(b.Clock(), b.PercMask)
	n := len(out)

	if n > len(levels) {
		n = len(levels)
	}

	copy(out[:n], levels[:n])
}
