// Package applemidi implements the AppleMIDI (RTP-MIDI session
// protocol) participant state machine (§4.K), grounded on
// other_examples/somesmallstudio-go-midi-rtp (session/session.go's
// connection tracking, rtp/rtp.go's wire format) and cross checked
// against original_source/src/net/applemidi.cpp for the exact
// ControlInvitation/MidiInvitation/Connected transition semantics the
// distilled spec text summarises.
//
// A Participant does no socket I/O itself; it is driven by raw control
// and data packets handed to it by a transport (a real net.UDPConn
// pair in production, or a slice of byte buffers in tests) and it
// emits outbound packets through the Send* callbacks.
package applemidi

// State is one of the three stages of an AppleMIDI session.
type State int

const (
	StateControlInvitation State = iota
	StateMidiInvitation
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateControlInvitation:
		return "ControlInvitation"
	case StateMidiInvitation:
		return "MidiInvitation"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Timers, in milliseconds (§4.K).
const (
	midiInvitationTimeoutMs = 500
	feedbackIntervalMs      = 1000
	syncActivityTimeoutMs   = 60000
)

// Participant is the single-initiator AppleMIDI session state
// machine bound to one control/data socket pair. It is not safe for
// concurrent use; the network task that owns the sockets serialises
// calls into it.
type Participant struct {
	LocalSSRC uint32
	Name      string

	state State

	remoteIP      string
	remoteToken   uint32
	remoteSSRC    uint32
	remoteCtrlPort int
	remoteDataPort int

	decoder       CommandDecoder
	lastSequence  uint16
	haveSequence  bool
	lastFedback   uint16
	lastFeedback  float64
	lastSync      float64
	enteredMidiAt float64

	clockOffset int64
	haveOffset  bool

	// SendControl / SendData transmit an already-encoded packet to the
	// current remote peer on the control or data socket respectively.
	SendControl func(pkt []byte)
	SendData    func(pkt []byte)

	// OnConnect / OnDisconnect fire on session establishment and on
	// teardown by the peer's BY. A sync timeout does not fire
	// OnDisconnect.
	OnConnect    func()
	OnDisconnect func()

	// OnData fires once per reassembled MIDI command received on the
	// data socket while Connected.
	OnData func(Command)

	// OnSyncReset fires when a 60s sync-activity timeout forces the
	// participant back to ControlInvitation, so the caller can log it.
	OnSyncReset func()
}

// NewParticipant returns a Participant in the ControlInvitation state,
// advertising localSSRC to initiators.
func NewParticipant(localSSRC uint32, name string) *Participant {
	return &Participant{LocalSSRC: localSSRC, Name: name, state: StateControlInvitation}
}

// State returns the participant's current stage.
func (p *Participant) State() State { return p.state }

// reset returns the participant to ControlInvitation, clearing all
// per-peer state. It does not itself fire OnDisconnect — callers that
// need the notification call it before reset.
func (p *Participant) reset() {
	*p = Participant{
		LocalSSRC:    p.LocalSSRC,
		Name:         p.Name,
		state:        StateControlInvitation,
		SendControl:  p.SendControl,
		SendData:     p.SendData,
		OnConnect:    p.OnConnect,
		OnDisconnect: p.OnDisconnect,
		OnData:       p.OnData,
		OnSyncReset:  p.OnSyncReset,
	}
}

// HandleControlPacket processes one packet received on the control
// socket from fromIP:fromPort at ticks (monotonic milliseconds).
func (p *Participant) HandleControlPacket(buf []byte, fromIP string, fromPort int, ticks float64) {
	cmd, ok := peekCommand(buf)
	if !ok {
		return
	}

	switch cmd {
	case cmdInvitation:
		p.handleControlInvitation(buf, fromIP, fromPort, ticks)
	case cmdEnd:
		p.handleBye(buf, fromIP, fromPort)
	}
}

func (p *Participant) handleControlInvitation(buf []byte, fromIP string, fromPort int, ticks float64) {
	inv, ok := decodeInvitation(buf)
	if !ok || inv.cmd != cmdInvitation {
		return
	}

	switch p.state {
	case StateControlInvitation:
		p.remoteIP = fromIP
		p.remoteToken = inv.token
		p.remoteSSRC = inv.ssrc
		p.remoteCtrlPort = fromPort
		p.state = StateMidiInvitation
		p.lastSync = ticks
		p.enteredMidiAt = ticks

		p.sendControl(encodeInvitation(cmdAccepted, inv.token, p.LocalSSRC, p.Name))

	case StateMidiInvitation, StateConnected:
		if fromIP == p.remoteIP {
			return // re-invitation from the same peer, ignore
		}

		p.sendControl(encodeInvitation(cmdRejected, inv.token, p.LocalSSRC, ""))
	}
}

func (p *Participant) handleBye(buf []byte, fromIP string, fromPort int) {
	inv, ok := decodeInvitation(buf)
	if !ok {
		return
	}

	if p.state != StateConnected || fromIP != p.remoteIP || fromPort != p.remoteCtrlPort || inv.ssrc != p.remoteSSRC {
		return
	}

	if p.OnDisconnect != nil {
		p.OnDisconnect()
	}

	p.reset()
}

// HandleDataPacket processes one packet received on the data socket
// from fromIP:fromPort at ticks.
func (p *Participant) HandleDataPacket(buf []byte, fromIP string, fromPort int, ticks float64) {
	if cmd, ok := peekCommand(buf); ok {
		switch cmd {
		case cmdInvitation:
			p.handleDataInvitation(buf, fromIP, fromPort, ticks)
			return
		case cmdSync:
			p.handleSync(buf, ticks)
			return
		}
	}

	if p.state != StateConnected {
		return
	}

	dp, ok := decodeDataPacket(buf)
	if !ok || dp.ssrc != p.remoteSSRC {
		return
	}

	p.lastSync = ticks
	p.lastSequence = dp.sequence
	p.haveSequence = true

	cmds := p.decoder.Decode(dp.commandList, dp.firstHasDelta)

	if p.OnData != nil {
		for _, c := range cmds {
			p.OnData(c)
		}
	}
}

func (p *Participant) handleDataInvitation(buf []byte, fromIP string, fromPort int, ticks float64) {
	inv, ok := decodeInvitation(buf)
	if !ok {
		return
	}

	if p.state == StateControlInvitation {
		return // no peer recorded yet, nothing to compare against
	}

	if fromIP != p.remoteIP {
		p.sendData(encodeInvitation(cmdRejected, inv.token, p.LocalSSRC, ""))
		return
	}

	if p.state != StateMidiInvitation {
		return
	}

	if inv.ssrc != p.remoteSSRC {
		return
	}

	p.remoteDataPort = fromPort
	p.state = StateConnected
	p.lastSync = ticks
	p.lastFeedback = ticks

	p.sendData(encodeInvitation(cmdAccepted, inv.token, p.LocalSSRC, ""))

	if p.OnConnect != nil {
		p.OnConnect()
	}
}

func (p *Participant) handleSync(buf []byte, ticks float64) {
	if p.state != StateConnected {
		return
	}

	sp, ok := decodeSync(buf)
	if !ok || sp.ssrc != p.remoteSSRC {
		return
	}

	p.lastSync = ticks

	switch sp.count {
	case 0:
		sp.count = 1
		sp.ts[1] = uint64(localSyncClock(ticks))
		p.sendData(encodeSync(sp))

	case 2:
		p.clockOffset = int64((sp.ts[2]+sp.ts[0])/2) - int64(sp.ts[1])
		p.haveOffset = true
	}
}

// localSyncClock returns the local synchronisation clock value (100
// microsecond units, per the AppleMIDI protocol) for ticks expressed
// in milliseconds.
func localSyncClock(ticksMs float64) uint64 {
	return uint64(ticksMs * 10)
}

func (p *Participant) sendControl(pkt []byte) {
	if p.SendControl != nil {
		p.SendControl(pkt)
	}
}

func (p *Participant) sendData(pkt []byte) {
	if p.SendData != nil {
		p.SendData(pkt)
	}
}

// Update advances periodic housekeeping: MidiInvitation timeout,
// ~1s RS feedback, and the 60s no-sync-activity reset.
func (p *Participant) Update(ticks float64) {
	switch p.state {
	case StateMidiInvitation:
		if ticks-p.enteredMidiAt >= midiInvitationTimeoutMs {
			p.reset()
		}

	case StateConnected:
		if p.haveSequence && p.lastSequence != p.lastFedback && ticks-p.lastFeedback >= feedbackIntervalMs {
			p.sendData(encodeFeedback(feedbackPacket{ssrc: p.LocalSSRC, sequence: p.lastSequence}))
			p.lastFedback = p.lastSequence
			p.lastFeedback = ticks
		}

		if ticks-p.lastSync >= syncActivityTimeoutMs {
			if p.OnSyncReset != nil {
				p.OnSyncReset()
			}

			p.reset()
		}
	}
}

// ClockOffsetEstimate returns the most recent CK count=2 offset
// estimate in 100-microsecond units, and whether one has been
// computed since the last reset.
func (p *Participant) ClockOffsetEstimate() (int64, bool) {
	return p.clockOffset, p.haveOffset
}
