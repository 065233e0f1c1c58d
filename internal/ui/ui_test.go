package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeLCD struct {
	width     int
	lines     []string
	cursorRow int
	images    []string
	bitmaps   [][]byte
	flips     int
}

func newFakeLCD(width int) *fakeLCD {
	return &fakeLCD{width: width, lines: make([]string, 2)}
}

func (l *fakeLCD) SetCursor(col, row int) { l.cursorRow = row }
func (l *fakeLCD) Print(s string)         { l.lines[l.cursorRow] = s }
func (l *fakeLCD) Clear()                 { l.lines = make([]string, 2) }
func (l *fakeLCD) Width() int             { return l.width }
func (l *fakeLCD) IsGraphical() bool      { return false }
func (l *fakeLCD) DrawChannelBar(row int, levels, peaks [16]float64) {}
func (l *fakeLCD) DrawImage(name string)  { l.images = append(l.images, name) }
func (l *fakeLCD) DrawBitmap(data []byte) { l.bitmaps = append(l.bitmaps, data) }
func (l *fakeLCD) Flip()                  { l.flips++ }

func TestShortMessageNeverScrolls(t *testing.T) {
	u := New()
	u.ShowMessage("hi", 0)
	u.Tick(10000, 16)

	assert.False(t, u.IsScrolling())
	assert.Equal(t, "hi", u.VisibleText(16))
}

func TestLongMessageScrollsThenCompletes(t *testing.T) {
	u := New()
	text := "this message is much longer than the display"
	u.ShowMessage(text, 0)

	u.Tick(100, 16)
	assert.True(t, u.IsScrolling(), "still within initial delay, scroll considered active")

	maxOffset := len(text) - 16
	finishTicks := scrollInitialDelayMs + float64(maxOffset)*scrollPerCharMs

	u.Tick(finishTicks, 16)
	assert.False(t, u.IsScrolling(), "scroll has reached the end")

	u.Tick(finishTicks+systemMessageHoldMs+1, 16)
	assert.Equal(t, None, u.State(), "state clears after the post-scroll hold")
}

func TestSysExTextClearsAfterHold(t *testing.T) {
	u := New()
	u.ShowSysExText("Hello", 0)
	u.Tick(0, 16)

	assert.Equal(t, ShowingSysExText, u.State())

	u.Tick(sysExTextHoldMs+1, 16)
	assert.Equal(t, None, u.State())
}

func TestImageHoldsThenClears(t *testing.T) {
	u := New()
	u.ShowImage("peer-logo", 0)

	u.Tick(imageHoldMs-1, 16)
	assert.Equal(t, ShowingImage, u.State())

	u.Tick(imageHoldMs+1, 16)
	assert.Equal(t, None, u.State())
}

func TestPowerSaveTransitionsAfterBanner(t *testing.T) {
	u := New()
	u.EnterPowerSave(0)

	u.Tick(powerSaveBannerHoldMs-1, 16)
	assert.Equal(t, EnteringPowerSave, u.State())

	u.Tick(powerSaveBannerHoldMs+1, 16)
	assert.Equal(t, InPowerSave, u.State())
}

func TestRenderCallsFlipExactlyOnce(t *testing.T) {
	u := New()
	u.ShowMessage("hi", 0)

	lcd := newFakeLCD(16)

	var levels, peaks [16]float64
	u.Render(lcd, 0, levels, peaks, nil)

	assert.Equal(t, 1, lcd.flips)
	assert.Equal(t, "hi", lcd.lines[1])
}

// TestScrollInvariant is the property test for §8.8: whenever a
// message is longer than the display width, is_scrolling is true
// until the visible window has advanced to the final position.
func TestScrollInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(4, 20).Draw(t, "width")
		extra := rapid.IntRange(1, 40).Draw(t, "extra")
		text := make([]byte, width+extra)

		for i := range text {
			text[i] = byte('a' + i%26)
		}

		u := New()
		u.ShowMessage(string(text), 0)

		maxOffset := len(text) - width

		steps := rapid.IntRange(0, maxOffset+20).Draw(t, "steps")
		ticks := scrollInitialDelayMs + float64(steps)*scrollPerCharMs

		u.Tick(ticks, width)

		if steps < maxOffset {
			require.True(t, u.IsScrolling())
		} else {
			require.False(t, u.IsScrolling())
		}

		visible := u.VisibleText(width)
		assert.LessOrEqual(t, len(visible), width)
	})
}
