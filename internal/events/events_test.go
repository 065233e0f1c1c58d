package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStringTableComplete(t *testing.T) {
	for k := Button; k < numKinds; k++ {
		assert.NotEqual(t, "Kind(invalid)", k.String())
	}
}

func TestPushPopFIFO(t *testing.T) {
	q := NewQueue()

	require.True(t, q.Push(NewButton(2, true, false)))
	require.True(t, q.Push(NewEncoder(-3)))
	require.True(t, q.Push(NewAllSoundOff()))

	ev, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, Button, ev.Kind)
	assert.Equal(t, 2, ev.ButtonID)
	assert.True(t, ev.Pressed)

	ev, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, Encoder, ev.Kind)
	assert.Equal(t, -3, ev.Delta)

	ev, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, AllSoundOff, ev.Kind)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueueFullAtCapacity(t *testing.T) {
	q := NewQueue()

	for i := 0; i < Capacity; i++ {
		require.True(t, q.Push(NewEncoder(i)))
	}

	assert.False(t, q.Push(NewEncoder(99)))
	assert.Equal(t, Capacity, q.Len())
}

func TestDispatchDrainsInOrder(t *testing.T) {
	q := NewQueue()

	q.Push(NewSwitchSynth(1))
	q.Push(NewSwitchMt32RomSet(2))
	q.Push(NewSwitchSoundFont(3))
	q.Push(NewDisplayImage("peer-logo"))

	var kinds []Kind

	q.Dispatch(func(ev Event) {
		kinds = append(kinds, ev.Kind)
	})

	assert.Equal(t, []Kind{SwitchSynth, SwitchMt32RomSet, SwitchSoundFont, DisplayImage}, kinds)
	assert.Equal(t, 0, q.Len())
}
