package orchestrator

import (
	"io/fs"

	"github.com/sbcsynth/core/internal/rom"
)

// OnMassStorageAttach handles a newly attached USB mass-storage device
// by rescanning both ROMs and SoundFonts against the given mount set,
// which the caller has already mounted (§4.M "USB plug-and-play").
func (c *Core) OnMassStorageAttach(mounts []fs.FS, validator rom.Validator) {
	if c.Roms != nil {
		_ = c.Roms.Scan(mounts, validator)
	}

	c.rescanSoundFonts(mounts)
}

// OnMassStorageDetach rescans only SoundFonts, since a missing ROM
// merely leaves the prior selection unavailable rather than needing
// active teardown (§4.M).
func (c *Core) OnMassStorageDetach(mounts []fs.FS) {
	c.rescanSoundFonts(mounts)
}

func (c *Core) rescanSoundFonts(mounts []fs.FS) {
	if c.SFManager == nil {
		return
	}

	_ = c.SFManager.Scan(mounts)
	c.SFEntries = c.SFManager.Entries()
}

// MidiSourcePriority ranks the simultaneously available MIDI ingest
// paths highest-to-lowest (§4.M "serial MIDI is re-enabled only when
// no higher-priority MIDI source is present"): USB-MIDI-class beats
// USB-serial beats the onboard UART.
type MidiSourcePriority int

const (
	PriorityUSBMidiClass MidiSourcePriority = iota
	PriorityUSBSerial
	PriorityUART
)

// OnMidiClassAttach/Detach and OnSerialAttach/Detach track which
// higher-priority sources are present, so the caller (usbwatch) can
// ask ShouldEnableUARTMidi before binding the onboard UART as a MIDI
// source.
func (c *Core) OnMidiClassAttach() { c.usbMidiClassPresent = true }
func (c *Core) OnMidiClassDetach() { c.usbMidiClassPresent = false }
func (c *Core) OnSerialAttach()    { c.usbSerialPresent = true }
func (c *Core) OnSerialDetach()    { c.usbSerialPresent = false }

// ShouldEnableUARTMidi reports whether the onboard UART may be bound
// as a MIDI source: no higher-priority MIDI source is attached, and
// the UART isn't already claimed for log output (§4.M).
func (c *Core) ShouldEnableUARTMidi(uartUsedForLogging bool) bool {
	return !uartUsedForLogging && !c.usbMidiClassPresent && !c.usbSerialPresent
}
