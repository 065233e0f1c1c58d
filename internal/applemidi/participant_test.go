package applemidi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectedParticipant(t *testing.T) (*Participant, *[][]byte, *[][]byte) {
	t.Helper()

	var controlSent, dataSent [][]byte

	p := NewParticipant(0xABCDEF01, "test-unit")
	p.SendControl = func(pkt []byte) { controlSent = append(controlSent, pkt) }
	p.SendData = func(pkt []byte) { dataSent = append(dataSent, pkt) }

	return p, &controlSent, &dataSent
}

// TestInvitationFlowEstablishesConnection is the §8 end-to-end
// scenario 4 ("Apple-MIDI invitation flow").
func TestInvitationFlowEstablishesConnection(t *testing.T) {
	p, controlSent, dataSent := newConnectedParticipant(t)

	connected := false
	p.OnConnect = func() { connected = true }

	controlIn := encodeInvitation(cmdInvitation, 0xCAFEBABE, 0x12345678, "peer")
	p.HandleControlPacket(controlIn, "10.0.0.5", 5004, 0)

	require.Equal(t, StateMidiInvitation, p.State())
	require.Len(t, *controlSent, 1)

	ok, valid := decodeInvitation((*controlSent)[0])
	require.True(t, valid)
	assert.Equal(t, cmdAccepted, ok.cmd)
	assert.Equal(t, p.LocalSSRC, ok.ssrc)

	dataIn := encodeInvitation(cmdInvitation, 0xCAFEBABE, 0x12345678, "peer")
	p.HandleDataPacket(dataIn, "10.0.0.5", 5005, 10)

	require.Equal(t, StateConnected, p.State())
	require.True(t, connected)
	require.Len(t, *dataSent, 1)

	okData, valid := decodeInvitation((*dataSent)[0])
	require.True(t, valid)
	assert.Equal(t, cmdAccepted, okData.cmd)

	// CK count=0 -> expect a count=1 reply carrying (initiator_ts, local_clock).
	sync0 := encodeSync(syncPacket{ssrc: 0x12345678, count: 0, ts: [3]uint64{1000, 0, 0}})
	p.HandleDataPacket(sync0, "10.0.0.5", 5005, 20)

	require.Len(t, *dataSent, 2)
	reply, valid := decodeSync((*dataSent)[1])
	require.True(t, valid)
	assert.EqualValues(t, 1, reply.count)
	assert.EqualValues(t, 1000, reply.ts[0])

	// CK count=2 -> offset estimate = ((3000+1000)/2) - 2000 = 0.
	sync2 := encodeSync(syncPacket{ssrc: 0x12345678, count: 2, ts: [3]uint64{1000, 2000, 3000}})
	p.HandleDataPacket(sync2, "10.0.0.5", 5005, 30)

	offset, have := p.ClockOffsetEstimate()
	require.True(t, have)
	assert.EqualValues(t, 0, offset)

	// Withholding sync for 60s forces an automatic reset.
	resetFired := false
	p.OnSyncReset = func() { resetFired = true }

	p.Update(30 + syncActivityTimeoutMs)

	assert.True(t, resetFired)
	assert.Equal(t, StateControlInvitation, p.State())
}

func TestControlInvitationFromAnotherPeerDuringMidiInvitationIsRejected(t *testing.T) {
	p, controlSent, _ := newConnectedParticipant(t)

	p.HandleControlPacket(encodeInvitation(cmdInvitation, 1, 2, ""), "10.0.0.1", 5004, 0)
	require.Equal(t, StateMidiInvitation, p.State())

	p.HandleControlPacket(encodeInvitation(cmdInvitation, 3, 4, ""), "10.0.0.2", 5004, 1)

	require.Len(t, *controlSent, 2)
	rej, ok := decodeInvitation((*controlSent)[1])
	require.True(t, ok)
	assert.Equal(t, cmdRejected, rej.cmd)
	assert.Equal(t, StateMidiInvitation, p.State(), "the original peer's session is untouched")
}

func TestMidiInvitationTimesOutWithNoProgression(t *testing.T) {
	p, _, _ := newConnectedParticipant(t)

	p.HandleControlPacket(encodeInvitation(cmdInvitation, 1, 2, ""), "10.0.0.1", 5004, 0)
	require.Equal(t, StateMidiInvitation, p.State())

	p.Update(midiInvitationTimeoutMs - 1)
	assert.Equal(t, StateMidiInvitation, p.State())

	p.Update(midiInvitationTimeoutMs + 1)
	assert.Equal(t, StateControlInvitation, p.State())
}

func TestByeFromInitiatorDisconnectsAndResets(t *testing.T) {
	p, _, dataSent := newConnectedParticipant(t)
	_ = dataSent

	p.HandleControlPacket(encodeInvitation(cmdInvitation, 1, 0xAA, ""), "10.0.0.1", 5004, 0)
	p.HandleDataPacket(encodeInvitation(cmdInvitation, 1, 0xAA, ""), "10.0.0.1", 5005, 1)
	require.Equal(t, StateConnected, p.State())

	disconnected := false
	p.OnDisconnect = func() { disconnected = true }

	p.HandleControlPacket(encodeInvitation(cmdEnd, 1, 0xAA, ""), "10.0.0.1", 5004, 2)

	assert.True(t, disconnected)
	assert.Equal(t, StateControlInvitation, p.State())
}

func TestDataPacketDispatchesReassembledCommands(t *testing.T) {
	p, _, _ := newConnectedParticipant(t)

	p.HandleControlPacket(encodeInvitation(cmdInvitation, 1, 0xAA, ""), "10.0.0.1", 5004, 0)
	p.HandleDataPacket(encodeInvitation(cmdInvitation, 1, 0xAA, ""), "10.0.0.1", 5005, 1)
	require.Equal(t, StateConnected, p.State())

	var received []Command
	p.OnData = func(c Command) { received = append(received, c) }

	// No delta before the first command (encodeDataPacket always clears
	// Z), a Note On, then a second Note On under running status
	// preceded by a zero delta time.
	commandList := []byte{0x90, 0x40, 0x7F, 0x00, 0x41, 0x7F}
	packet := encodeDataPacket(1, 0, 0xAA, commandList)

	p.HandleDataPacket(packet, "10.0.0.1", 5005, 5)

	require.Len(t, received, 2)
	assert.Equal(t, byte(0x90), received[0].Short.Status())
	assert.Equal(t, byte(0x40), received[0].Short.Data1())
	assert.Equal(t, byte(0x41), received[1].Short.Data1())
}

func TestFeedbackSentOnSequenceChangeAfterInterval(t *testing.T) {
	p, _, dataSent := newConnectedParticipant(t)

	p.HandleControlPacket(encodeInvitation(cmdInvitation, 1, 0xAA, ""), "10.0.0.1", 5004, 0)
	p.HandleDataPacket(encodeInvitation(cmdInvitation, 1, 0xAA, ""), "10.0.0.1", 5005, 1)
	before := len(*dataSent)

	packet := encodeDataPacket(7, 0, 0xAA, []byte{0x00})
	p.HandleDataPacket(packet, "10.0.0.1", 5005, 5)

	p.Update(5 + feedbackIntervalMs + 1)

	require.Len(t, *dataSent, before+1)
	fb, ok := decodeSyncLikeFeedback((*dataSent)[len(*dataSent)-1])
	require.True(t, ok)
	assert.EqualValues(t, 7<<16, fb)
}

// decodeSyncLikeFeedback extracts the raw sequence<<16 field from an
// encoded RS packet for assertion purposes.
func decodeSyncLikeFeedback(buf []byte) (uint32, bool) {
	if len(buf) < 12 {
		return 0, false
	}

	return uint32(buf[8])<<24 | uint32(buf[9])<<16 | uint32(buf[10])<<8 | uint32(buf[11]), true
}
