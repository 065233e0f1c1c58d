package mister

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbcsynth/core/internal/events"
	"github.com/sbcsynth/core/internal/rom"
)

type fakeBus struct {
	reply [3]byte
	ok    bool

	lastWrite [3]byte
	calls     int
}

func (b *fakeBus) Exchange(write [3]byte) ([3]byte, bool) {
	b.calls++
	b.lastWrite = write
	return b.reply, b.ok
}

func TestFirstSuccessfulReplyShowsPeerLogo(t *testing.T) {
	bus := &fakeBus{reply: [3]byte{byte(SynthMt32), 0, 0}, ok: true}
	s := New(bus)

	shown := 0
	s.OnImage = func() { shown++ }

	q := events.NewQueue()
	s.Poll(Status{SynthKind: SynthMt32}, q)
	s.Poll(Status{SynthKind: SynthMt32}, q)

	assert.Equal(t, 1, shown)
}

func TestMutePeerEnqueuesAllSoundOff(t *testing.T) {
	bus := &fakeBus{reply: [3]byte{byte(SynthMute), 0, 0}, ok: true}
	s := New(bus)
	q := events.NewQueue()

	s.Poll(Status{SynthKind: SynthMt32}, q)

	ev, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, events.AllSoundOff, ev.Kind)
}

func TestDivergentPeerStatusEnqueuesSwitchEvents(t *testing.T) {
	bus := &fakeBus{reply: [3]byte{byte(SynthSoundFont), 0, 5}, ok: true}
	s := New(bus)
	q := events.NewQueue()

	s.Poll(Status{SynthKind: SynthMt32}, q)

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, events.SwitchSynth, first.Kind)
	assert.Equal(t, int(SynthSoundFont), first.Index)

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, events.SwitchSoundFont, second.Kind)
	assert.Equal(t, 5, second.Index)
}

func TestMatchingPeerStatusEnqueuesNothingOnRepeat(t *testing.T) {
	bus := &fakeBus{reply: [3]byte{byte(SynthMt32), byte(rom.Mt32New), 0}, ok: true}
	s := New(bus)
	q := events.NewQueue()

	local := Status{SynthKind: SynthMt32, Mt32RomSet: rom.Mt32New}
	s.Poll(local, q)
	q.Dispatch(func(events.Event) {}) // drain whatever the first poll enqueued

	s.Poll(local, q)
	assert.Equal(t, 0, q.Len())
}

func TestFailedExchangeDoesNothing(t *testing.T) {
	bus := &fakeBus{ok: false}
	s := New(bus)
	q := events.NewQueue()

	s.Poll(Status{}, q)

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, bus.calls)
}
