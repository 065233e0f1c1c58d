package opn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbcsynth/core/internal/midi"
)

type fakeEngine struct {
	shorts  []uint32
	sysexes [][]byte
}

func (e *fakeEngine) HandleShort(msg uint32) { e.shorts = append(e.shorts, msg) }

func (e *fakeEngine) HandleSysEx(data []byte) {
	e.sysexes = append(e.sysexes, append([]byte(nil), data...))
}

func (e *fakeEngine) Render(out []float32, frames int) {
	for i := range out {
		out[i] = 0.1
	}
}

func TestInitializeIsImmediatelyActive(t *testing.T) {
	a := New(&fakeEngine{}, 1.0)
	require.True(t, a.Initialize())
	assert.True(t, a.IsActive())
}

func TestSetMasterVolumeSendsGMSysEx(t *testing.T) {
	engine := &fakeEngine{}
	a := New(engine, 1.0)
	require.True(t, a.Initialize())

	a.SetMasterVolume(50)

	require.Len(t, engine.sysexes, 1)
	msg := engine.sysexes[0]
	assert.Equal(t, byte(0xF0), msg[0])
	assert.Equal(t, byte(0x7F), msg[1])
	assert.Equal(t, byte(0x04), msg[3])
}

func TestAllSoundOffSendsPerChannel(t *testing.T) {
	engine := &fakeEngine{}
	a := New(engine, 1.0)
	require.True(t, a.Initialize())

	a.HandleShort(midi.Pack(0x90, 60, 127))
	a.AllSoundOff()

	assert.Len(t, engine.shorts, 17) // note-on plus one all-notes-off per channel
}

func TestRenderS16Converts(t *testing.T) {
	engine := &fakeEngine{}
	a := New(engine, 1.0)
	require.True(t, a.Initialize())

	out := make([]int16, 4)
	a.RenderS16(out, 2)

	for _, s := range out {
		assert.Greater(t, s, int16(0))
	}
}
