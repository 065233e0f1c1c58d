// Package monitor tracks per-channel, per-note amplitude envelopes
// from a MIDI short-message stream, grounded on mt32-pi's
// CMIDIMonitor (original_source/include/midimonitor.h,
// src/midimonitor.cpp). It answers one question for the UI's level
// meters: "how loud is each channel right now."
package monitor

import "github.com/sbcsynth/core/internal/midi"

const (
	attackMs  = 20.0
	decayMs   = 100.0
	sustain   = 0.8
	releaseMs = 150.0

	percussionReleaseMs = 150.0

	peakHoldMs = 2000.0
	peakFallMs = 1000.0
)

const (
	ccVolume     = 0x07
	ccPan        = 0x0A
	ccExpression = 0x0B
	ccDamper     = 0x40
)

const channelModeFirst = 0x78

const (
	cmAllSoundOff         = 0x78
	cmResetAllControllers = 0x79
	cmAllNotesOff         = 0x7B
)

type note struct {
	active        bool
	velocity      byte
	tOn           float64
	tOff          float64
	hasOff        bool
	damperLatched bool
}

type channel struct {
	volume     byte
	expression byte
	pan        byte
	damper     bool
	notes      [128]note
	peak       peakMeter
}

func newChannel() channel {
	return channel{volume: 127, expression: 127, pan: 64}
}

// Monitor observes a MIDI byte stream's decoded short messages and
// maintains envelope state for every channel and note. It is not safe
// for concurrent use; the owning synth adapter serialises access
// through its own mutex (§4.F).
type Monitor struct {
	channels [16]channel
}

// New returns a Monitor with all channels at MIDI defaults (volume
// 127, expression 127, pan centre, damper off).
func New() *Monitor {
	m := &Monitor{}
	for i := range m.channels {
		m.channels[i] = newChannel()
	}

	return m
}

// HandleMessage feeds one decoded short message at time ticks
// (monotonic milliseconds). It updates note and controller state but
// never emits anything itself — levels are pulled via
// GetChannelLevels.
func (m *Monitor) HandleMessage(msg midi.ShortMessage, ticks float64) {
	class := msg.CommandClass()
	ch := &m.channels[msg.Channel()]

	switch class {
	case 0x90:
		m.noteOn(ch, msg, ticks)
	case 0x80:
		m.noteOff(ch, msg.Data1(), ticks)
	case 0xB0:
		m.controlChange(ch, msg.Data1(), msg.Data2(), ticks)
	}
}

func (m *Monitor) noteOn(ch *channel, msg midi.ShortMessage, ticks float64) {
	n := msg.Data1()
	if msg.Data2() == 0 {
		m.noteOffNote(ch, n, ticks)
		return
	}

	ch.notes[n] = note{
		active:   true,
		velocity: msg.Data2(),
		tOn:      ticks,
	}
}

func (m *Monitor) noteOff(ch *channel, n byte, ticks float64) {
	m.noteOffNote(ch, n, ticks)
}

func (m *Monitor) noteOffNote(ch *channel, n byte, ticks float64) {
	st := &ch.notes[n]
	if !st.active {
		return
	}

	if ch.damper {
		st.damperLatched = true
		return
	}

	st.hasOff = true
	st.tOff = ticks
}

func (m *Monitor) controlChange(ch *channel, controller, value byte, ticks float64) {
	switch controller {
	case ccVolume:
		ch.volume = value
	case ccPan:
		ch.pan = value
	case ccExpression:
		ch.expression = value
	case ccDamper:
		wasEngaged := ch.damper
		ch.damper = value >= 64

		if wasEngaged && !ch.damper {
			m.releaseDamperLatched(ch, ticks)
		}
	default:
		if controller >= channelModeFirst {
			m.channelMode(ch, controller, ticks)
		}
	}
}

// channelMode handles the channel-mode messages 0x78-0x7F. Per §4.D
// every one of them triggers All Notes Off; 0x79 additionally resets
// expression and damper while preserving volume and pan.
func (m *Monitor) channelMode(ch *channel, controller byte, ticks float64) {
	switch controller {
	case cmResetAllControllers:
		ch.expression = 127
		ch.damper = false
		m.releaseDamperLatched(ch, ticks)
		m.allNotesOff(ch, ticks)
	case cmAllSoundOff, cmAllNotesOff:
		m.allNotesOff(ch, ticks)
	default:
		m.allNotesOff(ch, ticks)
	}
}

func (m *Monitor) allNotesOff(ch *channel, ticks float64) {
	for i := range ch.notes {
		st := &ch.notes[i]
		if !st.active {
			continue
		}

		st.damperLatched = false

		if !st.hasOff {
			st.hasOff = true
			st.tOff = ticks
		}
	}
}

func (m *Monitor) releaseDamperLatched(ch *channel, ticks float64) {
	for i := range ch.notes {
		st := &ch.notes[i]
		if st.active && st.damperLatched {
			st.damperLatched = false
			st.hasOff = true
			st.tOff = ticks
		}
	}
}

// GetChannelLevels computes, for every channel, the peak-scaled
// envelope level at ticks and the held peak-meter reading (§4.D).
// percussionMask has bit c set when channel c uses the linear
// release-only percussion envelope instead of full ADSR.
func (m *Monitor) GetChannelLevels(ticks float64, percussionMask uint16) (levels, peaks [16]float64) {
	for c := range m.channels {
		ch := &m.channels[c]
		percussion := percussionMask&(1<<uint(c)) != 0

		level := 0.0

		for i := range ch.notes {
			n := &ch.notes[i]
			if !n.active {
				continue
			}

			env := envelope(ticks, n.tOn, n.tOff, n.hasOff, percussion)
			amp := env *
				(float64(n.velocity) / 127.0) *
				(float64(ch.volume) / 127.0) *
				(float64(ch.expression) / 127.0)

			if amp > level {
				level = amp
			}
		}

		level = clamp01(level)
		levels[c] = level
		peaks[c] = clamp01(ch.peak.update(ticks, level))
	}

	return levels, peaks
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

// envelope evaluates the amplitude envelope for a single note at
// ticks. Melodic channels use a four-phase ADSR (attack 20ms, decay
// 100ms, sustain 0.8, release 150ms); percussion channels sustain at
// full amplitude until note-off, then release linearly over 150ms.
func envelope(ticks, tOn, tOff float64, hasOff bool, percussion bool) float64 {
	if percussion {
		if !hasOff {
			return 1.0
		}

		sinceOff := ticks - tOff
		if sinceOff <= 0 {
			return 1.0
		}

		frac := 1 - sinceOff/percussionReleaseMs
		if frac < 0 {
			frac = 0
		}

		return frac
	}

	if !hasOff {
		return adsrSustainPhase(ticks - tOn)
	}

	atOff := adsrSustainPhase(tOff - tOn)

	sinceOff := ticks - tOff
	if sinceOff < 0 {
		sinceOff = 0
	}

	frac := 1 - sinceOff/releaseMs
	if frac < 0 {
		frac = 0
	}

	return atOff * frac
}

// adsrSustainPhase evaluates the attack/decay/sustain portion of the
// envelope (no release) at sinceOn milliseconds after note-on.
func adsrSustainPhase(sinceOn float64) float64 {
	if sinceOn < 0 {
		sinceOn = 0
	}

	if sinceOn < attackMs {
		return sinceOn / attackMs
	}

	if sinceOn < attackMs+decayMs {
		d := (sinceOn - attackMs) / decayMs
		return 1 - d*(1-sustain)
	}

	return sustain
}

// peakMeter holds the maximum level seen for peakHoldMs, then falls
// linearly to the current level over peakFallMs. The held value is
// stored as (value, setAt) and only advances on a new maximum, so the
// decay curve is independent of how often Update is polled.
type peakMeter struct {
	value float64
	setAt float64
	armed bool
}

func (p *peakMeter) update(ticks, level float64) float64 {
	if !p.armed || level > p.value || ticks < p.setAt {
		p.value = level
		p.setAt = ticks
		p.armed = true

		return level
	}

	elapsed := ticks - p.setAt
	if elapsed <= peakHoldMs {
		return p.value
	}

	fallElapsed := elapsed - peakHoldMs

	frac := 1 - fallElapsed/peakFallMs
	if frac < 0 {
		frac = 0
	}

	decayed := p.value * frac
	if decayed < level {
		p.value = level
		p.setAt = ticks

		return level
	}

	return decayed
}
