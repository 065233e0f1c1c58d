package soundfont

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbcsynth/core/internal/midi"
	sfmgr "github.com/sbcsynth/core/internal/soundfont"
)

type fakeEngine struct {
	opened bool
	gain   float64
	shorts []uint32
}

func (e *fakeEngine) Open(data []byte, profile sfmgr.FxProfile) error {
	e.opened = true
	return nil
}

func (e *fakeEngine) Close() { e.opened = false }

func (e *fakeEngine) HandleShort(msg uint32) { e.shorts = append(e.shorts, msg) }

func (e *fakeEngine) HandleSysEx(data []byte) {}

func (e *fakeEngine) Render(out []float32, frames int) {
	for i := range out {
		out[i] = 0.25
	}
}

func (e *fakeEngine) SetOutputGain(gain float64) { e.gain = gain }

type fakeLoader struct {
	gain *float64
}

func (l fakeLoader) Load(entry sfmgr.Entry) ([]byte, sfmgr.FxProfile, error) {
	return []byte("sf2-data"), sfmgr.FxProfile{Gain: l.gain}, nil
}

func riffChunk(id string, body []byte) []byte {
	var buf bytes.Buffer

	buf.WriteString(id)

	var size [4]byte

	binary.LittleEndian.PutUint32(size[:], uint32(len(body)))
	buf.Write(size[:])
	buf.Write(body)

	if len(body)%2 == 1 {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

func sf2Bytes(name string) []byte {
	inam := riffChunk("INAM", append([]byte(name), 0))
	info := append([]byte("INFO"), inam...)
	infoList := riffChunk("LIST", info)
	body := append([]byte("sfbk"), infoList...)

	return riffChunk("RIFF", body)
}

// newManagerWithEntries builds a SoundFont catalogue via a real Scan
// over an in-memory filesystem, so ordering and name extraction go
// through the same path production code uses.
func newManagerWithEntries(entries ...sfmgr.Entry) *sfmgr.Manager {
	mount := fstest.MapFS{}

	for _, e := range entries {
		mount[e.Path] = &fstest.MapFile{Data: sf2Bytes(e.DisplayName)}
	}

	m := sfmgr.New()
	if err := m.Scan([]fs.FS{mount}); err != nil {
		panic(err)
	}

	return m
}

func TestInitializeWithNoEntriesFails(t *testing.T) {
	m := sfmgr.New()
	a := New(m, fakeLoader{}, &fakeEngine{}, 1.0)

	assert.False(t, a.Initialize())
	assert.False(t, a.IsActive())
}

func TestSwitchSoundFontUsesProfileGainOverDefault(t *testing.T) {
	m := newManagerWithEntries(sfmgr.Entry{Path: "soundfonts/a.sf2", DisplayName: "A"})

	gain := 0.42
	engine := &fakeEngine{}
	a := New(m, fakeLoader{gain: &gain}, engine, 1.0)

	require.True(t, a.Initialize())
	assert.InDelta(t, 0.42, engine.gain, 1e-9)
}

func TestSwitchSoundFontFallsBackToDefaultGain(t *testing.T) {
	m := newManagerWithEntries(sfmgr.Entry{Path: "soundfonts/a.sf2", DisplayName: "A"})

	engine := &fakeEngine{}
	a := New(m, fakeLoader{gain: nil}, engine, 0.65)

	require.True(t, a.Initialize())
	assert.InDelta(t, 0.65, engine.gain, 1e-9)
}

func TestSwitchSoundFontIdempotent(t *testing.T) {
	m := newManagerWithEntries(
		sfmgr.Entry{Path: "soundfonts/a.sf2", DisplayName: "A"},
		sfmgr.Entry{Path: "soundfonts/b.sf2", DisplayName: "B"},
	)

	a := New(m, fakeLoader{}, &fakeEngine{}, 1.0)
	require.True(t, a.Initialize())

	already, ok := a.SwitchSoundFont(0)
	assert.True(t, already)
	assert.False(t, ok)

	already, ok = a.SwitchSoundFont(1)
	assert.False(t, already)
	assert.True(t, ok)
}

func TestAllSoundOffSendsPerChannelAndResetsMonitor(t *testing.T) {
	m := newManagerWithEntries(sfmgr.Entry{Path: "soundfonts/a.sf2", DisplayName: "A"})

	engine := &fakeEngine{}
	a := New(m, fakeLoader{}, engine, 1.0)
	require.True(t, a.Initialize())

	a.HandleShort(midi.Pack(0x90, 60, 127))
	a.AllSoundOff()

	// 1 forwarded Note On + 16 per-channel All Sound Off messages.
	assert.Len(t, engine.shorts, 17)

	out := make([]float64, 16)
	a.GetChannelVelocities(out)
	assert.InDelta(t, 0, out[0], 1e-9)
}
