package orchestrator

import "github.com/sbcsynth/core/internal/rom"

// Custom control SysEx table (§4.M): F0 7D <cmd> [param] F7,
// intercepted by the orchestrator before the active synth ever sees
// it.
const (
	controlManufacturer = 0x7D

	cmdReboot          = 0x00
	cmdSwitchRomSet    = 0x01
	cmdSwitchSoundFont = 0x02
	cmdSwitchSynth     = 0x03
	cmdSetReversed     = 0x04
)

type controlActionKind int

const (
	actionReboot controlActionKind = iota
	actionSwitchRomSet
	actionSwitchSoundFont
	actionSwitchSynth
	actionSetReversedStereo
)

type controlAction struct {
	kind  controlActionKind
	param byte
}

// parseControlSysEx recognises F0 7D <cmd> [param] F7 and returns the
// action to run, or handled=false if data doesn't match the table (in
// which case it falls through to the active synth unchanged).
func parseControlSysEx(data []byte) (controlAction, bool) {
	if len(data) < 4 || data[0] != 0xF0 || data[len(data)-1] != 0xF7 {
		return controlAction{}, false
	}

	if data[1] != controlManufacturer {
		return controlAction{}, false
	}

	cmd := data[2]

	switch cmd {
	case cmdReboot:
		if len(data) != 4 {
			return controlAction{}, false
		}

		return controlAction{kind: actionReboot}, true

	case cmdSwitchRomSet, cmdSwitchSoundFont, cmdSwitchSynth, cmdSetReversed:
		if len(data) != 5 {
			return controlAction{}, false
		}

		kind := map[byte]controlActionKind{
			cmdSwitchRomSet:    actionSwitchRomSet,
			cmdSwitchSoundFont: actionSwitchSoundFont,
			cmdSwitchSynth:     actionSwitchSynth,
			cmdSetReversed:     actionSetReversedStereo,
		}[cmd]

		return controlAction{kind: kind, param: data[3]}, true

	default:
		return controlAction{}, false
	}
}

func (c *Core) applyControlAction(a controlAction) {
	switch a.kind {
	case actionReboot:
		if c.Reboot != nil {
			c.Reboot()
		}

	case actionSwitchRomSet:
		c.SwitchRomSet(rom.Set(a.param))

	case actionSwitchSoundFont:
		c.RequestSoundFontSwitch(int(a.param))

	case actionSwitchSynth:
		c.SwitchSynth(int(a.param))

	case actionSetReversedStereo:
		c.ReversedStereo = a.param != 0
	}
}
