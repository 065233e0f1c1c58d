// Package engine provides silent stand-ins for the vendor DSP engines
// the synth adapters wrap (LA, SoundFont, OPL3, OPN2) — all explicitly
// out of scope (§1) since they're third-party C synthesis libraries
// with no Go binding anywhere in the example pack. cmd/appliance wires
// these so the binary links and runs end-to-end; a real deployment
// would substitute a genuine cgo binding behind the same small Engine
// interfaces without touching any adapter code.
package engine

import (
	"strings"

	"github.com/sbcsynth/core/internal/rom"
	"github.com/sbcsynth/core/internal/soundfont"
)

// Silent implements every adapter's Engine interface by doing
// nothing: Render leaves its output buffer at zero, and every MIDI
// call is a no-op. It satisfies mt32.Engine, opl.Engine, and
// opn.Engine directly (its method set covers each of them), and
// soundfont.Engine via SilentSoundFont below.
type Silent struct{}

func (Silent) Open(_, _ []byte) error        { return nil }
func (Silent) Close()                        {}
func (Silent) HandleShort(_ uint32)          {}
func (Silent) HandleSysEx(_ []byte)          {}
func (Silent) Render(out []float32, _ int)   { zero(out) }
func (Silent) SetOutputGain(_ float64)       {}

// SilentSoundFont implements soundfont.Engine, whose Open signature
// takes a profile argument the LA engine's doesn't.
type SilentSoundFont struct{}

func (SilentSoundFont) Open(_ []byte, _ soundfont.FxProfile) error { return nil }
func (SilentSoundFont) Close()                                     {}
func (SilentSoundFont) HandleShort(_ uint32)                       {}
func (SilentSoundFont) HandleSysEx(_ []byte)                       {}
func (SilentSoundFont) Render(out []float32, _ int)                { zero(out) }
func (SilentSoundFont) SetOutputGain(_ float64)                    {}

// SizeHeuristicRomValidator sorts candidate ROM files by their known
// image size rather than the vendor checksum database (out of scope
// per §1, which identifies exact ROM revisions by MD5): control ROMs
// are 32KiB (old) or 64KiB (new/L), PCM ROMs are 512KiB. This accepts
// any file of a recognised size without verifying its contents. The
// short names it returns follow the "ctrl_..." naming convention
// internal/synth/mt32.VersionString's family classification expects
// (with the "ctrl_" prefix it strips before matching).
type SizeHeuristicRomValidator struct{}

func (SizeHeuristicRomValidator) Validate(data []byte) (rom.Category, string, bool) {
	switch len(data) {
	case 32 * 1024:
		return rom.OldControl, "ctrl_mt32_1_0", true
	case 64 * 1024:
		return rom.LControl, "ctrl_cm32l_1_0", true
	case 512 * 1024:
		return rom.Mt32PCM, "pcm_mt32", true
	default:
		return 0, "", false
	}
}

func zero(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
