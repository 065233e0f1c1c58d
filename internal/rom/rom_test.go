package rom

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeValidator sorts files by a one-byte tag at offset 0 into a
// category, using the remainder as the short name.
type fakeValidator struct{}

func (fakeValidator) Validate(data []byte) (Category, string, bool) {
	if len(data) < 1 {
		return 0, "", false
	}

	switch data[0] {
	case 'o':
		return OldControl, "OLD_CTRL", true
	case 'n':
		return NewControl, "NEW_CTRL", true
	case 'l':
		return LControl, "L_CTRL", true
	case 'p':
		return Mt32PCM, "MT32_PCM", true
	case 'q':
		return LPCM, "L_PCM", true
	default:
		return 0, "", false
	}
}

func TestScanCategorizesAndGet(t *testing.T) {
	mount := fstest.MapFS{
		"roms/ctrl_old.bin": {Data: []byte("o-data")},
		"roms/ctrl_new.bin": {Data: []byte("n-data")},
		"roms/pcm.bin":  {Data: []byte("p-data")},
		"roms/junk.bin": {Data: []byte("z-data")},
	}

	m := New()
	require.NoError(t, m.Scan([]fs.FS{mount}, fakeValidator{}))

	assert.True(t, m.Have(Mt32Old))
	assert.True(t, m.Have(Mt32New))
	assert.False(t, m.Have(CmL))

	set, control, pcm, ok := m.Get(Mt32Old)
	require.True(t, ok)
	assert.Equal(t, Mt32Old, set)
	assert.Equal(t, "OLD_CTRL", control.ShortName)
	assert.Equal(t, "MT32_PCM", pcm.ShortName)
}

func TestGetAnyPreferenceOrder(t *testing.T) {
	mount := fstest.MapFS{
		"roms/a.bin": {Data: []byte("l-data")},
		"roms/b.bin": {Data: []byte("q-data")},
		"roms/c.bin": {Data: []byte("n-data")},
		"roms/d.bin": {Data: []byte("p-data")},
	}

	m := New()
	require.NoError(t, m.Scan([]fs.FS{mount}, fakeValidator{}))

	set, _, _, ok := m.Get(Any)
	require.True(t, ok)
	assert.Equal(t, Mt32New, set, "new-MT32 outranks CM-L when both are present")
}

func TestNextSetSkipsUnavailable(t *testing.T) {
	mount := fstest.MapFS{
		"roms/a.bin": {Data: []byte("o-data")},
		"roms/b.bin": {Data: []byte("p-data")},
		"roms/c.bin": {Data: []byte("l-data")},
		"roms/d.bin": {Data: []byte("q-data")},
	}

	m := New()
	require.NoError(t, m.Scan([]fs.FS{mount}, fakeValidator{}))

	assert.False(t, m.Have(Mt32New))

	next, ok := m.NextSet(Mt32Old)
	require.True(t, ok)
	assert.Equal(t, CmL, next, "Mt32New is unavailable, so next wraps to CmL")
}

func TestScanMissingRomsDirIsNotAnError(t *testing.T) {
	mount := fstest.MapFS{}

	m := New()
	assert.NoError(t, m.Scan([]fs.FS{mount}, fakeValidator{}))
	assert.False(t, m.Have(Any))
}
