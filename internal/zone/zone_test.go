package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	a, err := New(4096)
	require.NoError(t, err)

	p, err := a.Alloc(100, TagUncategorized)
	require.NoError(t, err)
	assert.Equal(t, 1, a.GetAllocCount())
	assert.GreaterOrEqual(t, len(a.Bytes(p)), 100)

	require.NoError(t, a.Free(p))
	assert.Equal(t, 0, a.GetAllocCount())
}

func TestFreeDoubleFreeRefused(t *testing.T) {
	a, err := New(4096)
	require.NoError(t, err)

	p, err := a.Alloc(64, TagUncategorized)
	require.NoError(t, err)
	require.NoError(t, a.Free(p))

	err = a.Free(p)
	assert.Error(t, err)
}

func TestFreeTagClearsOnlyThatTag(t *testing.T) {
	a, err := New(8192)
	require.NoError(t, err)

	var uncategorized, soundfont []Ptr

	for i := 0; i < 5; i++ {
		p, err := a.Alloc(32, TagUncategorized)
		require.NoError(t, err)
		uncategorized = append(uncategorized, p)

		q, err := a.Alloc(32, TagSoundFontEngine)
		require.NoError(t, err)
		soundfont = append(soundfont, q)
	}

	require.NoError(t, a.FreeTag(TagSoundFontEngine))
	assert.Equal(t, len(uncategorized), a.GetAllocCount())

	_ = soundfont
}

func TestAllocationsNeverOverlap(t *testing.T) {
	a, err := New(16384)
	require.NoError(t, err)

	type span struct{ start, end int64 }

	var spans []span

	for i := 0; i < 20; i++ {
		p, err := a.Alloc(50+i, TagUncategorized)
		require.NoError(t, err)

		b := a.Bytes(p)
		start := int64(p)
		end := start + int64(len(b))

		for _, s := range spans {
			overlap := start < s.end && s.start < end
			assert.False(t, overlap, "new allocation [%d,%d) overlaps existing [%d,%d)", start, end, s.start, s.end)
		}

		spans = append(spans, span{start, end})
	}
}

// TestAllocFreeSequenceInvariants is the property test for §8.5: for any
// alloc/free/free_tag sequence, alloc_count equals the number of live
// pointers this test itself is tracking, and FreeTag leaves none of its
// tag live.
func TestAllocFreeSequenceInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a, err := New(65536)
		require.NoError(t, err)

		live := map[Ptr]Tag{}

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 200).Draw(t, "ops")

		for _, op := range ops {
			switch op {
			case 0: // alloc
				n := rapid.IntRange(1, 512).Draw(t, "allocSize")

				tag := TagUncategorized
				if rapid.Bool().Draw(t, "soundfontTag") {
					tag = TagSoundFontEngine
				}

				p, err := a.Alloc(n, tag)
				if err == nil {
					live[p] = tag
				}
			case 1: // free one live pointer
				for p := range live {
					require.NoError(t, a.Free(p))
					delete(live, p)

					break
				}
			case 2: // free_tag(SoundFontEngine)
				require.NoError(t, a.FreeTag(TagSoundFontEngine))

				for p, tag := range live {
					if tag == TagSoundFontEngine {
						delete(live, p)
					}
				}
			}

			assert.Equal(t, len(live), a.GetAllocCount())
		}
	})
}
