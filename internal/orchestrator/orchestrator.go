// Package orchestrator implements the Main task (§4.M): ingest fan-in
// across every MIDI source, the Active Sensing watchdog, synth
// hot-switching with deferred SoundFont loads, the custom control
// SysEx table, and the audio render/convert loop. It is grounded on
// mt32-pi's CMainTask (original_source/include/mainloop.h,
// src/mainloop.cpp), which owns exactly these responsibilities.
package orchestrator

import (
	"github.com/sbcsynth/core/internal/events"
	"github.com/sbcsynth/core/internal/midi"
	"github.com/sbcsynth/core/internal/rom"
	"github.com/sbcsynth/core/internal/soundfont"
	"github.com/sbcsynth/core/internal/synth"
	"github.com/sbcsynth/core/internal/synth/mt32"
	sfadapter "github.com/sbcsynth/core/internal/synth/soundfont"
	"github.com/sbcsynth/core/internal/ui"
)

// activeSensingTimeoutMs is the watchdog window after a 0xFE byte with
// no successor (§4.M, §8 end-to-end scenario 5).
const activeSensingTimeoutMs = 330

// switchTimeoutMs is the quiet period after the UI stops scrolling a
// pending SoundFont's name before the deferred switch actually runs
// (§4.M "Deferred soundfont switch"). The spec names the mechanism but
// not the constant; documented as an Open Question decision in
// DESIGN.md.
const switchTimeoutMs = 1500

// maxIngestBytesPerIteration bounds how many bytes a single Main
// iteration drains from any one source, so one saturated input can't
// starve the others.
const maxIngestBytesPerIteration = 64

// Source is one ingest path feeding the shared parser pipeline: UART,
// USB-serial, or the ring buffer fed by USB-MIDI-class/Pisound
// ISRs/network handlers (§4.M). Read is non-blocking: it returns as
// many bytes as are immediately available, up to len(buf).
type Source struct {
	Name   string
	Read   func(buf []byte) int
	parser *midi.Parser
}

// SoundFontEntry is the minimal slice of soundfont.Entry the
// orchestrator needs to know about for deferred-switch UI naming.
type SoundFontEntry = soundfont.Entry

// Core owns every component's lifetime from the Main task's side: the
// active synth, every ingest source, the shared event queue, and the
// UI/deferred-switch coordination between them.
type Core struct {
	Ports       []synth.Port
	ActiveIndex int

	LA *mt32.Adapter
	SF *sfadapter.Adapter

	SFEntries []SoundFontEntry
	SFManager *soundfont.Manager

	Queue *events.Queue
	UI    *ui.UI
	Roms  *rom.Manager

	Sources []*Source

	ReversedStereo bool

	usbMidiClassPresent bool
	usbSerialPresent    bool

	activeSensingArmed bool
	activeSensingAt    float64

	deferredPending bool
	deferredIndex   int
	deferredAt      float64

	// Warn surfaces a user-visible notice (an invalid switch target, an
	// already-active switch, an unavailable ROM set or SoundFont) the way the UI's
	// ShowMessage would (§8 invariant 10).
	Warn func(msg string)

	// Reboot is invoked for the custom control SysEx reboot command
	// (0x00); nil in tests.
	Reboot func()

	// Clock returns the current monotonic time in milliseconds, used to
	// stamp UI state entered from SysEx interception (display text,
	// bitmaps) which arrives outside the regular Tick call. Tests
	// substitute a deterministic stand-in; it defaults to always 0.
	Clock func() float64
}

// NewCore returns a Core with no sources or ports configured yet; the
// caller wires Ports/Sources/LA/SF after construction.
func NewCore() *Core {
	return &Core{UI: ui.New()}
}

// AddSource registers an ingest path and gives it its own Parser
// wired to the orchestrator's dispatch.
func (c *Core) AddSource(name string, read func(buf []byte) int) *Source {
	s := &Source{Name: name, Read: read}
	s.parser = midi.NewParser()
	s.parser.OnShortMessage = c.handleShort
	s.parser.OnSysEx = c.handleRawSysEx
	c.Sources = append(c.Sources, s)

	return s
}

func (c *Core) active() synth.Port {
	if c.ActiveIndex < 0 || c.ActiveIndex >= len(c.Ports) {
		return nil
	}

	return c.Ports[c.ActiveIndex]
}

// Ingest runs one Main iteration's worth of fan-in: drains up to
// maxIngestBytesPerIteration from every source through its parser, and
// advances the Active Sensing watchdog.
func (c *Core) Ingest(ticksMs float64) {
	buf := make([]byte, maxIngestBytesPerIteration)

	for _, s := range c.Sources {
		n := s.Read(buf)
		for i := 0; i < n; i++ {
			c.feedActiveSensing(buf[i], ticksMs)
			s.parser.WriteByte(buf[i])
		}
	}

	if c.activeSensingArmed && ticksMs-c.activeSensingAt >= activeSensingTimeoutMs {
		c.activeSensingArmed = false

		if p := c.active(); p != nil {
			p.AllSoundOff()
		}
	}
}

func (c *Core) feedActiveSensing(b byte, ticksMs float64) {
	if b == midi.StatusActiveSensing {
		c.activeSensingArmed = true
		c.activeSensingAt = ticksMs
	}
}

func (c *Core) handleShort(msg midi.ShortMessage) {
	if p := c.active(); p != nil {
		p.HandleShort(msg)
	}
}

// DispatchRemoteShort and DispatchRemoteSysEx feed a message that
// arrived already framed by a source with its own decoder (the
// AppleMIDI command-list reassembler) through the same
// control-sysex/display/active-synth pipeline every other source
// uses, without going through a per-source midi.Parser.
func (c *Core) DispatchRemoteShort(msg midi.ShortMessage) {
	c.handleShort(msg)
}

func (c *Core) DispatchRemoteSysEx(data []byte) {
	c.handleRawSysEx(data)
}

// handleRawSysEx is the parser callback: it checks the custom control
// table first (§4.M), then peeks the vendor interception table purely
// to drive the UI, then forwards to the active synth.
func (c *Core) handleRawSysEx(data []byte) {
	if action, handled := parseControlSysEx(data); handled {
		c.applyControlAction(action)
		return
	}

	intercept := synth.InterceptSysEx(data)

	switch intercept.Display {
	case synth.DisplayText, synth.DisplayLetter:
		c.UI.ShowSysExText(string(intercept.DisplayPayload), c.ticks())
	case synth.DisplayDots, synth.DisplayBitmap:
		c.UI.ShowSysExBitmap(intercept.DisplayPayload, c.ticks())
	}

	if p := c.active(); p != nil {
		p.HandleSysEx(data)
	}
}

func (c *Core) ticks() float64 {
	if c.Clock != nil {
		return c.Clock()
	}

	return 0
}

// --- synth hot-switch -------------------------------------------------

// SwitchSynth validates index k, silences the outgoing synth, and
// flips the active pointer (§4.M, §8 invariant 9 "hot-switch silence",
// §8 invariant 10 "idempotent switch").
func (c *Core) SwitchSynth(k int) {
	if k < 0 || k >= len(c.Ports) || c.Ports[k] == nil {
		c.warn("invalid synth index")
		return
	}

	if k == c.ActiveIndex {
		c.warn("already active")
		return
	}

	if p := c.active(); p != nil {
		p.AllSoundOff()
	}

	c.ActiveIndex = k
	c.PurgeMidiBuffers()
}

// SwitchRomSet forwards to the LA adapter (§4.M).
func (c *Core) SwitchRomSet(r rom.Set) {
	if c.LA == nil {
		return
	}

	already, ok := c.LA.SwitchRomSet(r)

	switch {
	case already:
		c.warn("already active")
	case !ok:
		c.warn("ROM set not available")
	}
}

// RequestSoundFontSwitch begins the deferred soundfont switch
// sequence: record the target and stamp deferredAt; Tick re-stamps it
// every frame the UI is still scrolling the new name (§4.M, §8
// end-to-end scenario 3).
func (c *Core) RequestSoundFontSwitch(index int) {
	c.deferredPending = true
	c.deferredIndex = index
	c.deferredAt = c.ticks()
}

// Tick runs once per UI frame: re-stamps the deferred switch while the
// UI is scrolling, and fires the switch once both the UI has stopped
// scrolling and switchTimeoutMs has elapsed since the last re-stamp.
func (c *Core) Tick(ticksMs float64, lcdWidth int) {
	c.UI.Tick(ticksMs, lcdWidth)

	if !c.deferredPending {
		return
	}

	if c.UI.IsScrolling() {
		c.deferredAt = ticksMs
		return
	}

	if ticksMs-c.deferredAt >= switchTimeoutMs {
		c.runDeferredSoundFontSwitch()
	}
}

func (c *Core) runDeferredSoundFontSwitch() {
	index := c.deferredIndex
	c.deferredPending = false

	if c.SF == nil {
		return
	}

	already, ok := c.SF.SwitchSoundFont(index)

	switch {
	case already:
		c.warn("already active")
	case !ok:
		c.warn("soundfont not available")
	}

	c.PurgeMidiBuffers()
}

// PurgeMidiBuffers drains every input source with IgnoreNoteOns set,
// discarding any Note Ons accumulated during a hot-switch or a
// (potentially multi-second) SoundFont load (§4.M, §8 invariant 9).
func (c *Core) PurgeMidiBuffers() {
	buf := make([]byte, maxIngestBytesPerIteration)

	for _, s := range c.Sources {
		s.parser.IgnoreNoteOns = true

		for {
			n := s.Read(buf)
			if n == 0 {
				break
			}

			s.parser.Write(buf[:n])
		}

		s.parser.IgnoreNoteOns = false
	}
}

func (c *Core) warn(msg string) {
	if c.Warn != nil {
		c.Warn(msg)
	}
}
