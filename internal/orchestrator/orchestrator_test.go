package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbcsynth/core/internal/midi"
	"github.com/sbcsynth/core/internal/synth"
)

type fakePort struct {
	active       bool
	allSoundOffN int
	shorts       []midi.ShortMessage
	sysexes      [][]byte
}

func (p *fakePort) Initialize() bool                    { p.active = true; return true }
func (p *fakePort) HandleShort(msg midi.ShortMessage)   { p.shorts = append(p.shorts, msg) }
func (p *fakePort) HandleSysEx(data []byte)             { p.sysexes = append(p.sysexes, data) }
func (p *fakePort) IsActive() bool                      { return p.active }
func (p *fakePort) AllSoundOff()                        { p.allSoundOffN++ }
func (p *fakePort) SetMasterVolume(vol int)             {}
func (p *fakePort) RenderF32(out []float32, frames int) {}
func (p *fakePort) RenderS16(out []int16, frames int)   {}
func (p *fakePort) ReportStatus() string                { return "fake" }
func (p *fakePort) UpdateLCD(lcd synth.LCD, t float64)  {}
func (p *fakePort) GetChannelVelocities(out []float64)  {}

// byteSource is a test Source.Read backed by a plain slice, consumed
// once per Read call (so PurgeMidiBuffers's drain loop terminates).
func byteSource(data []byte) func([]byte) int {
	consumed := false

	return func(buf []byte) int {
		if consumed || len(data) == 0 {
			return 0
		}

		consumed = true
		n := copy(buf, data)

		return n
	}
}

func TestSwitchSynthSilencesOutgoingAndPurges(t *testing.T) {
	c := NewCore()
	a := &fakePort{active: true}
	b := &fakePort{}
	c.Ports = []synth.Port{a, b}
	c.ActiveIndex = 0

	c.AddSource("test", byteSource([]byte{0x90, 0x3C, 0x64}))

	c.SwitchSynth(1)

	assert.Equal(t, 1, a.allSoundOffN, "outgoing synth must receive all_sound_off before the switch completes")
	assert.Equal(t, 1, c.ActiveIndex)
	assert.Empty(t, b.shorts, "the pending Note On is purged, not delivered to the new synth")
}

func TestSwitchSynthInvalidIndexWarns(t *testing.T) {
	c := NewCore()
	c.Ports = []synth.Port{&fakePort{active: true}}

	var warned string
	c.Warn = func(msg string) { warned = msg }

	c.SwitchSynth(5)

	assert.NotEmpty(t, warned)
	assert.Equal(t, 0, c.ActiveIndex)
}

func TestSwitchSynthAlreadyActiveWarnsWithoutStateChange(t *testing.T) {
	c := NewCore()
	a := &fakePort{active: true}
	c.Ports = []synth.Port{a}

	var warned string
	c.Warn = func(msg string) { warned = msg }

	c.SwitchSynth(0)

	assert.Equal(t, "already active", warned)
	assert.Equal(t, 0, a.allSoundOffN)
}

func TestActiveSensingTimeoutFiresAllSoundOff(t *testing.T) {
	c := NewCore()
	a := &fakePort{active: true}
	c.Ports = []synth.Port{a}

	fed := false
	c.AddSource("uart", func(buf []byte) int {
		if fed {
			return 0
		}

		fed = true
		buf[0] = midi.StatusActiveSensing
		buf[1] = 0x90
		buf[2] = 0x3C
		buf[3] = 0x64

		return 4
	})

	c.Ingest(0)
	require.Equal(t, 0, a.allSoundOffN)

	c.Ingest(329)
	assert.Equal(t, 0, a.allSoundOffN, "must not fire before the 330ms window elapses")

	c.Ingest(330)
	assert.Equal(t, 1, a.allSoundOffN)
}

func TestDeferredSoundFontSwitchWaitsForScrollThenTimeout(t *testing.T) {
	c := NewCore()
	c.UI.ShowMessage("this is a very long soundfont name that needs scrolling on a small display", 0)

	c.RequestSoundFontSwitch(3)

	// While still scrolling, Tick keeps re-stamping; the switch never
	// runs no matter how much time passes.
	for ms := 0.0; ms < 5000; ms += 100 {
		c.Tick(ms, 16)
	}

	assert.True(t, c.deferredPending, "switch must wait out the scroll")

	// Force scrolling to finish, then advance past switchTimeoutMs.
	c.UI.ShowMessage("short", 5000)
	c.Tick(5000, 16)
	assert.False(t, c.UI.IsScrolling())

	c.Tick(5000+switchTimeoutMs+1, 16)

	assert.False(t, c.deferredPending, "switch fires once the post-scroll quiet period elapses")
}

func TestControlSysExSwitchesSynthWithoutReachingAdapter(t *testing.T) {
	c := NewCore()
	a := &fakePort{active: true}
	b := &fakePort{}
	c.Ports = []synth.Port{a, b}

	pkt := []byte{0xF0, 0x7D, cmdSwitchSynth, 0x01, 0xF7}
	c.handleRawSysEx(pkt)

	assert.Equal(t, 1, c.ActiveIndex)
	assert.Empty(t, a.sysexes, "control SysEx must not reach the adapter")
}

func TestControlSysExSetsReversedStereo(t *testing.T) {
	c := NewCore()
	c.Ports = []synth.Port{&fakePort{active: true}}

	c.handleRawSysEx([]byte{0xF0, 0x7D, cmdSetReversed, 0x01, 0xF7})
	assert.True(t, c.ReversedStereo)

	c.handleRawSysEx([]byte{0xF0, 0x7D, cmdSetReversed, 0x00, 0xF7})
	assert.False(t, c.ReversedStereo)
}

func TestUnrelatedSysExFallsThroughToActiveSynth(t *testing.T) {
	c := NewCore()
	a := &fakePort{active: true}
	c.Ports = []synth.Port{a}

	pkt := []byte{0xF0, 0x41, 0x10, 0x45, 0x12, 0x40, 0x00, 0x7F, 0x41, 0xF7}
	c.handleRawSysEx(pkt)

	require.Len(t, a.sysexes, 1)
}
