// Package ui implements the UI task's small state machine (§4.I),
// grounded on mt32-pi's CUserInterface
// (original_source/include/userinterface.h, src/userinterface.cpp).
// The UI pulls content from the monitor and the active synth each
// frame; it alone flips the LCD.
package ui

import "github.com/sbcsynth/core/internal/synth"

// State is one of the UI's finite display modes.
type State int

const (
	None State = iota
	ShowingMessage
	ShowingSpinner
	ShowingImage
	ShowingSysExText
	ShowingSysExBitmap
	EnteringPowerSave
	InPowerSave
)

// Timers, in milliseconds (§4.I).
const (
	systemMessageHoldMs  = 3000
	spinnerTickMs        = 32
	sysExTextHoldMs      = 3000
	imageHoldMs          = 3000
	powerSaveBannerHoldMs = 3000

	scrollInitialDelayMs = 1500
	scrollPerCharMs      = 175
)

// LCD is the drawing surface the UI paints to. Character and
// graphical backends both implement it; DrawBitmap is a no-op on a
// character backend (§4.I, "drawing policies are LCD-type-aware").
type LCD interface {
	synth.LCD

	Width() int
	IsGraphical() bool
	DrawChannelBar(row int, levels, peaks [16]float64)
	DrawImage(name string)
	DrawBitmap(data []byte)
	Flip()
}

// UI is the UI task's state machine. It is not safe for concurrent
// use; the UI task owns it exclusively.
type UI struct {
	state    State
	enteredAt float64

	message         string
	scrollOffset    int
	scrollCompleteAt float64
	isScrolling     bool

	spinnerFrame    int
	lastSpinnerTick float64

	imageName string
	bitmap    []byte
}

// New returns a UI in the None state.
func New() *UI {
	return &UI{}
}

// State returns the currently active display mode.
func (u *UI) State() State { return u.state }

// IsScrolling reports whether the current message is actively being
// scrolled — the orchestrator defers a pending soundfont switch while
// this is true (§8 invariant 8, §8 end-to-end scenario 3).
func (u *UI) IsScrolling() bool { return u.isScrolling }

// ShowMessage enters ShowingMessage with text, timestamped at ticks.
func (u *UI) ShowMessage(text string, ticks float64) {
	u.enterText(ShowingMessage, text, ticks)
}

// ShowSysExText enters ShowingSysExText (Roland/Yamaha display text),
// timestamped at ticks.
func (u *UI) ShowSysExText(text string, ticks float64) {
	u.enterText(ShowingSysExText, text, ticks)
}

func (u *UI) enterText(state State, text string, ticks float64) {
	u.state = state
	u.enteredAt = ticks
	u.message = text
	u.scrollOffset = 0
	u.scrollCompleteAt = 0
	u.isScrolling = false
}

// ShowSpinner enters ShowingSpinner, timestamped at ticks.
func (u *UI) ShowSpinner(ticks float64) {
	u.state = ShowingSpinner
	u.enteredAt = ticks
	u.lastSpinnerTick = ticks
	u.spinnerFrame = 0
}

// ShowImage enters ShowingImage with the named resource.
func (u *UI) ShowImage(name string, ticks float64) {
	u.state = ShowingImage
	u.enteredAt = ticks
	u.imageName = name
}

// ShowSysExBitmap enters ShowingSysExBitmap (Roland display dots or
// Yamaha display bitmap).
func (u *UI) ShowSysExBitmap(data []byte, ticks float64) {
	u.state = ShowingSysExBitmap
	u.enteredAt = ticks
	u.bitmap = append([]byte(nil), data...)
}

// EnterPowerSave begins the power-save banner; after its hold it
// transitions to InPowerSave.
func (u *UI) EnterPowerSave(ticks float64) {
	u.state = EnteringPowerSave
	u.enteredAt = ticks
}

// WakeFromPowerSave returns the UI to None.
func (u *UI) WakeFromPowerSave() {
	u.state = None
}

// Tick advances timers and scroll state for the current frame at
// ticks (monotonic milliseconds). lcdWidth is needed to decide whether
// the active message needs scrolling.
func (u *UI) Tick(ticks float64, lcdWidth int) {
	switch u.state {
	case ShowingSpinner:
		if ticks-u.lastSpinnerTick >= spinnerTickMs {
			steps := int((ticks - u.lastSpinnerTick) / spinnerTickMs)
			u.spinnerFrame += steps
			u.lastSpinnerTick += float64(steps) * spinnerTickMs
		}

	case ShowingMessage:
		u.tickScrollingText(ticks, lcdWidth, systemMessageHoldMs)

	case ShowingSysExText:
		u.tickScrollingText(ticks, lcdWidth, sysExTextHoldMs)

	case ShowingImage, ShowingSysExBitmap:
		if ticks-u.enteredAt >= imageHoldMs {
			u.state = None
		}

	case EnteringPowerSave:
		if ticks-u.enteredAt >= powerSaveBannerHoldMs {
			u.state = InPowerSave
		}
	}
}

func (u *UI) tickScrollingText(ticks float64, lcdWidth int, holdMs float64) {
	maxOffset := len(u.message) - lcdWidth

	if maxOffset <= 0 {
		u.isScrolling = false

		if ticks-u.enteredAt >= holdMs {
			u.state = None
		}

		return
	}

	elapsed := ticks - u.enteredAt

	if elapsed < scrollInitialDelayMs {
		u.scrollOffset = 0
		u.isScrolling = true

		return
	}

	step := int((elapsed - scrollInitialDelayMs) / scrollPerCharMs)

	if step >= maxOffset {
		u.scrollOffset = maxOffset
		u.isScrolling = false

		if u.scrollCompleteAt == 0 {
			u.scrollCompleteAt = ticks
		}

		if ticks-u.scrollCompleteAt >= holdMs {
			u.state = None
		}

		return
	}

	u.scrollOffset = step
	u.isScrolling = true
}

// VisibleText returns the lcdWidth-wide window of the current message
// to draw this frame.
func (u *UI) VisibleText(lcdWidth int) string {
	if lcdWidth <= 0 || len(u.message) <= lcdWidth {
		return u.message
	}

	end := u.scrollOffset + lcdWidth
	if end > len(u.message) {
		end = len(u.message)
	}

	return u.message[u.scrollOffset:end]
}

// Render paints the UI's current state to lcd, then lets the active
// synth paint its overlay row, then flips the display — the UI alone
// calls Flip (§4.I).
func (u *UI) Render(lcd LCD, ticksMs float64, levels, peaks [16]float64, active synth.Port) {
	lcd.Clear()

	lcd.DrawChannelBar(0, levels, peaks)

	switch u.state {
	case ShowingMessage, ShowingSysExText:
		lcd.SetCursor(0, 1)
		lcd.Print(u.VisibleText(lcd.Width()))

	case ShowingSpinner:
		lcd.SetCursor(0, 1)
		lcd.Print(spinnerGlyph(u.spinnerFrame))

	case ShowingImage:
		lcd.DrawImage(u.imageName)

	case ShowingSysExBitmap:
		lcd.DrawBitmap(u.bitmap)

	case EnteringPowerSave, InPowerSave:
		lcd.SetCursor(0, 1)
		lcd.Print("Power save")
	}

	if active != nil {
		active.UpdateLCD(lcd, ticksMs)
	}

	lcd.Flip()
}

var spinnerGlyphs = [...]string{"|", "/", "-", "\\"}

func spinnerGlyph(frame int) string {
	return spinnerGlyphs[frame%len(spinnerGlyphs)]
}
