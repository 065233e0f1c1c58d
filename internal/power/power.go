// Package power implements the activity-timeout power-save state
// machine (§4.J), grounded on mt32-pi's CPower management in
// CMainTask (original_source/include/mainloop.h,
// src/mainloop.cpp) and its throttled-status polling in
// src/utility.cpp.
package power

// State is the manager's two-value power state.
type State int

const (
	Normal State = iota
	PowerSaving
)

// ThrottleStatus mirrors the firmware's throttled-status property tag
// bits the manager polls every Update (§4.J). On real Raspberry Pi
// hardware these come from the VideoCore mailbox; here they're
// supplied by whatever platform glue calls Update.
type ThrottleStatus struct {
	Throttled     bool
	Undervoltage  bool
}

// Manager tracks activity and power state. It is not safe for
// concurrent use; the owning task serialises calls to Update and
// Awaken.
type Manager struct {
	timeoutMs    float64
	lastActivity float64
	state        State

	wasThrottled    bool
	wasUndervoltage bool

	// OnEnterPowerSave / OnExitPowerSave drive the UI banner and audio
	// cancel/restart side effects (§4.J).
	OnEnterPowerSave func()
	OnExitPowerSave  func()

	// OnThrottle / OnUndervoltage fire on the rising edge of their
	// respective firmware status bits.
	OnThrottle     func()
	OnUndervoltage func()
}

// New returns a Manager with the given inactivity timeout, starting in
// Normal state with last activity at ticks.
func New(timeoutMs float64, ticks float64) *Manager {
	return &Manager{timeoutMs: timeoutMs, lastActivity: ticks}
}

// State returns the current power state.
func (m *Manager) State() State { return m.state }

// Awaken is called on every MIDI, button, and event reception (§4.J).
// It resets the inactivity clock and, if the manager was saving
// power, returns to Normal.
func (m *Manager) Awaken(ticks float64) {
	m.lastActivity = ticks

	if m.state == PowerSaving {
		m.state = Normal

		if m.OnExitPowerSave != nil {
			m.OnExitPowerSave()
		}
	}
}

// Update advances the timeout check and polls status for throttle and
// undervoltage edges.
func (m *Manager) Update(ticks float64, status ThrottleStatus) {
	if m.state == Normal && ticks-m.lastActivity >= m.timeoutMs {
		m.state = PowerSaving

		if m.OnEnterPowerSave != nil {
			m.OnEnterPowerSave()
		}
	}

	if status.Throttled && !m.wasThrottled && m.OnThrottle != nil {
		m.OnThrottle()
	}

	if status.Undervoltage && !m.wasUndervoltage && m.OnUndervoltage != nil {
		m.OnUndervoltage()
	}

	m.wasThrottled = status.Throttled
	m.wasUndervoltage = status.Undervoltage
}
