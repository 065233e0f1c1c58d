package usbwatch

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sbcsynth/core/internal/rom"
)

type fakeDevice struct {
	action, subsystem string
}

func (d fakeDevice) Action() string    { return d.action }
func (d fakeDevice) Subsystem() string { return d.subsystem }

type fakeCore struct {
	attached, detached     int
	midiOn, midiOff        int
	serialOn, serialOff    int
}

func (f *fakeCore) OnMassStorageAttach(mounts []fs.FS, validator rom.Validator) { f.attached++ }
func (f *fakeCore) OnMassStorageDetach(mounts []fs.FS)                          { f.detached++ }
func (f *fakeCore) OnMidiClassAttach()                                         { f.midiOn++ }
func (f *fakeCore) OnMidiClassDetach()                                         { f.midiOff++ }
func (f *fakeCore) OnSerialAttach()                                            { f.serialOn++ }
func (f *fakeCore) OnSerialDetach()                                            { f.serialOff++ }

func TestDispatchRoutesBySubsystemAndAction(t *testing.T) {
	core := &fakeCore{}
	w := New(core, func() []fs.FS { return nil }, nil)

	w.dispatch(fakeDevice{action: "add", subsystem: "block"})
	w.dispatch(fakeDevice{action: "remove", subsystem: "block"})
	w.dispatch(fakeDevice{action: "add", subsystem: "sound"})
	w.dispatch(fakeDevice{action: "remove", subsystem: "sound"})
	w.dispatch(fakeDevice{action: "add", subsystem: "tty"})
	w.dispatch(fakeDevice{action: "remove", subsystem: "tty"})
	w.dispatch(fakeDevice{action: "add", subsystem: "other"})

	assert.Equal(t, 1, core.attached)
	assert.Equal(t, 1, core.detached)
	assert.Equal(t, 1, core.midiOn)
	assert.Equal(t, 1, core.midiOff)
	assert.Equal(t, 1, core.serialOn)
	assert.Equal(t, 1, core.serialOff)
}
