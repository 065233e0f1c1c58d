// Package mister implements the MiSTer peer status mirror (§4.L), an
// I2C exchange polled from the UI tick. The actual bus transaction is
// abstracted behind the Bus interface so the state machine is testable
// without real hardware; unixBus backs it with the Linux I2C_SLAVE
// ioctl the way samoyed's src/cm108.go drives its HID ioctls with
// golang.org/x/sys/unix.
package mister

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/sbcsynth/core/internal/events"
	"github.com/sbcsynth/core/internal/rom"
)

// DefaultAddress is the I2C address samoyed's original firmware
// expects the MiSTer-side peer to answer on.
const DefaultAddress = 0x46

// PollHz is the UI tick rate at which the peer is polled (§4.L).
const PollHz = 20

// SynthKind mirrors the packed status byte's synth selector, including
// the "mute" sentinel the peer can ask us to honour.
type SynthKind byte

const (
	SynthMt32 SynthKind = iota
	SynthSoundFont
	SynthMute SynthKind = 0xFF
)

// Status is the 3-byte packed exchange payload (§4.L).
type Status struct {
	SynthKind     SynthKind
	Mt32RomSet    rom.Set
	SoundFontIdx  byte
}

func (s Status) pack() [3]byte {
	return [3]byte{byte(s.SynthKind), byte(s.Mt32RomSet), s.SoundFontIdx}
}

func unpackStatus(b [3]byte) Status {
	return Status{SynthKind: SynthKind(b[0]), Mt32RomSet: rom.Set(b[1]), SoundFontIdx: b[2]}
}

// Bus performs the raw I2C write-then-read transaction against the
// peer at its slave address.
type Bus interface {
	Exchange(write [3]byte) (read [3]byte, ok bool)
}

// Slave tracks the last status sent to, and seen from, the MiSTer
// peer, enqueuing events when the peer's state diverges from ours.
type Slave struct {
	bus Bus

	lastSent    Status
	haveSent    bool
	haveReplied bool

	// OnImage fires once, on the first successful reply, so the UI can
	// show the peer-logo image.
	OnImage func()
}

// New returns a Slave bound to bus.
func New(bus Bus) *Slave {
	return &Slave{bus: bus}
}

// Poll runs one exchange cycle (§4.L): write the local status, read
// the peer's, and enqueue the events needed to reconcile the two.
func (s *Slave) Poll(local Status, queue *events.Queue) {
	read, ok := s.bus.Exchange(local.pack())
	if !ok {
		return
	}

	if !s.haveReplied {
		s.haveReplied = true

		if s.OnImage != nil {
			s.OnImage()
		}
	}

	peer := unpackStatus(read)

	if peer.SynthKind == SynthMute {
		queue.Push(events.NewAllSoundOff())
		s.lastSent = local
		s.haveSent = true

		return
	}

	if s.haveSent && peer == s.lastSent {
		return
	}

	s.applyPeerStatus(peer, queue)

	s.lastSent = local
	s.haveSent = true
}

func (s *Slave) applyPeerStatus(peer Status, queue *events.Queue) {
	switch peer.SynthKind {
	case SynthMt32:
		queue.Push(events.NewSwitchSynth(int(peer.SynthKind)))
		queue.Push(events.NewSwitchMt32RomSet(int(peer.Mt32RomSet)))
	case SynthSoundFont:
		queue.Push(events.NewSwitchSynth(int(peer.SynthKind)))
		queue.Push(events.NewSwitchSoundFont(int(peer.SoundFontIdx)))
	}
}

// unixBus drives the exchange over a real Linux I2C character device
// (/dev/i2c-N) using the I2C_SLAVE ioctl to address the peer, then a
// plain write followed by a read of the reply.
type unixBus struct {
	f    *os.File
	addr uintptr
}

// OpenUnixBus opens devicePath (e.g. "/dev/i2c-1") and binds it to the
// peer's slave address.
func OpenUnixBus(devicePath string, addr byte) (Bus, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("mister: open %s: %w", devicePath, err)
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.I2C_SLAVE, uintptr(addr)); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("mister: set slave address: %w", errno)
	}

	return &unixBus{f: f, addr: uintptr(addr)}, nil
}

func (b *unixBus) Exchange(write [3]byte) (read [3]byte, ok bool) {
	if _, err := b.f.Write(write[:]); err != nil {
		return read, false
	}

	buf := make([]byte, 3)
	if _, err := b.f.Read(buf); err != nil {
		return read, false
	}

	copy(read[:], buf)

	return read, true
}
