package applemidi

import "encoding/binary"

// Session-initiation packet layout (§4.K), grounded on the Apple MIDI
// Network Driver Protocol's invitation/sync/bye/feedback commands and
// cross checked against original_source/src/net/applemidi.cpp's
// TSessionPacket/TSyncPacket/TBitrateReceiveFeedback structs.
const (
	signature = 0xFFFF
	version   = 2
)

// command identifies one of the six two-character control commands.
type command uint16

const (
	cmdInvitation command = 'I'<<8 | 'N'
	cmdAccepted   command = 'O'<<8 | 'K'
	cmdRejected   command = 'N'<<8 | 'O'
	cmdEnd        command = 'B'<<8 | 'Y'
	cmdSync       command = 'C'<<8 | 'K'
	cmdFeedback   command = 'R'<<8 | 'S'
)

// invitationPacket is the wire shape of IN / OK / NO / BY: signature,
// command, protocol version, initiator token, sender SSRC, and an
// optional null-terminated session name (IN only).
type invitationPacket struct {
	cmd   command
	token uint32
	ssrc  uint32
	name  string
}

func decodeInvitation(buf []byte) (invitationPacket, bool) {
	var p invitationPacket

	if len(buf) < 16 {
		return p, false
	}

	if binary.BigEndian.Uint16(buf[0:2]) != signature {
		return p, false
	}

	p.cmd = command(binary.BigEndian.Uint16(buf[2:4]))

	if binary.BigEndian.Uint32(buf[4:8]) != version {
		return p, false
	}

	p.token = binary.BigEndian.Uint32(buf[8:12])
	p.ssrc = binary.BigEndian.Uint32(buf[12:16])

	if len(buf) > 16 {
		end := len(buf)
		for i := 16; i < len(buf); i++ {
			if buf[i] == 0 {
				end = i
				break
			}
		}
		p.name = string(buf[16:end])
	}

	return p, true
}

func encodeInvitation(cmd command, token, ssrc uint32, name string) []byte {
	buf := make([]byte, 16, 16+len(name)+1)
	binary.BigEndian.PutUint16(buf[0:2], signature)
	binary.BigEndian.PutUint16(buf[2:4], uint16(cmd))
	binary.BigEndian.PutUint32(buf[4:8], version)
	binary.BigEndian.PutUint32(buf[8:12], token)
	binary.BigEndian.PutUint32(buf[12:16], ssrc)

	if name != "" {
		buf = append(buf, name...)
		buf = append(buf, 0)
	}

	return buf
}

// syncPacket is the CK clock-synchronisation packet: signature,
// command, sender SSRC, a count (0/1/2) selecting which of the three
// 64-bit timestamps is meaningful, and the three timestamp slots.
type syncPacket struct {
	ssrc  uint32
	count byte
	ts    [3]uint64
}

func decodeSync(buf []byte) (syncPacket, bool) {
	var p syncPacket

	if len(buf) < 36 {
		return p, false
	}

	if binary.BigEndian.Uint16(buf[0:2]) != signature {
		return p, false
	}

	if command(binary.BigEndian.Uint16(buf[2:4])) != cmdSync {
		return p, false
	}

	p.ssrc = binary.BigEndian.Uint32(buf[4:8])
	p.count = buf[8]

	for i := 0; i < 3; i++ {
		off := 12 + i*8
		p.ts[i] = binary.BigEndian.Uint64(buf[off : off+8])
	}

	return p, true
}

func encodeSync(p syncPacket) []byte {
	buf := make([]byte, 36)
	binary.BigEndian.PutUint16(buf[0:2], signature)
	binary.BigEndian.PutUint16(buf[2:4], uint16(cmdSync))
	binary.BigEndian.PutUint32(buf[4:8], p.ssrc)
	buf[8] = p.count
	// buf[9:12] is padding, left zero

	for i := 0; i < 3; i++ {
		off := 12 + i*8
		binary.BigEndian.PutUint64(buf[off:off+8], p.ts[i])
	}

	return buf
}

// feedbackPacket is the RS receiver-feedback packet carrying the last
// sequence number seen, shifted into the high 16 bits per §4.K.
type feedbackPacket struct {
	ssrc     uint32
	sequence uint16
}

func encodeFeedback(p feedbackPacket) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], signature)
	binary.BigEndian.PutUint16(buf[2:4], uint16(cmdFeedback))
	binary.BigEndian.PutUint32(buf[4:8], p.ssrc)
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.sequence)<<16)

	return buf
}

// peekCommand reads the two-character command out of any control
// packet without fully decoding it, so the caller can dispatch before
// picking the right decoder.
func peekCommand(buf []byte) (command, bool) {
	if len(buf) < 4 {
		return 0, false
	}

	if binary.BigEndian.Uint16(buf[0:2]) != signature {
		return 0, false
	}

	return command(binary.BigEndian.Uint16(buf[2:4])), true
}
