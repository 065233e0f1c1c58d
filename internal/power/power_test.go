package power

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntersPowerSaveAfterTimeout(t *testing.T) {
	m := New(1000, 0)

	entered := false
	m.OnEnterPowerSave = func() { entered = true }

	m.Update(999, ThrottleStatus{})
	assert.Equal(t, Normal, m.State())
	assert.False(t, entered)

	m.Update(1000, ThrottleStatus{})
	assert.Equal(t, PowerSaving, m.State())
	assert.True(t, entered)
}

func TestAwakenRestoresNormal(t *testing.T) {
	m := New(1000, 0)
	m.Update(1000, ThrottleStatus{})
	require := assert.New(t)
	require.Equal(PowerSaving, m.State())

	exited := false
	m.OnExitPowerSave = func() { exited = true }

	m.Awaken(1000)
	require.Equal(Normal, m.State())
	require.True(exited)
}

func TestAwakenWhileNormalDoesNotFireExitCallback(t *testing.T) {
	m := New(1000, 0)

	exited := false
	m.OnExitPowerSave = func() { exited = true }

	m.Awaken(500)
	assert.False(t, exited)
	assert.Equal(t, Normal, m.State())
}

func TestThrottleAndUndervoltageFireOnRisingEdgeOnly(t *testing.T) {
	m := New(1000, 0)

	throttleCount := 0
	undervoltageCount := 0
	m.OnThrottle = func() { throttleCount++ }
	m.OnUndervoltage = func() { undervoltageCount++ }

	m.Update(0, ThrottleStatus{Throttled: true, Undervoltage: true})
	m.Update(1, ThrottleStatus{Throttled: true, Undervoltage: true})
	m.Update(2, ThrottleStatus{Throttled: false, Undervoltage: true})
	m.Update(3, ThrottleStatus{Throttled: true, Undervoltage: true})

	assert.Equal(t, 2, throttleCount, "fires once on the initial edge and once after the dip")
	assert.Equal(t, 1, undervoltageCount)
}
