package applemidi

import "encoding/binary"

// RTP header bits used by the data-port payload (§4.K: "payload type
// 0x61, version 2, no CSRC"), grounded on
// other_examples/somesmallstudio-go-midi-rtp/rtp/rtp.go.
const (
	rtpHeaderLen = 12
	rtpVersion2  = 0x80
	rtpMarkerBit = 0x80
	rtpPTMask    = 0x7f
	rtpPayload   = 0x61
)

// dataPacket is a parsed RTP-MIDI payload: the fixed RTP header plus
// the raw command-list bytes, not yet decoded into Commands.
type dataPacket struct {
	sequence      uint16
	timestamp     uint32
	ssrc          uint32
	firstHasDelta bool
	commandList   []byte
}

// decodeDataPacket parses an RTP-MIDI data-port packet. It rejects
// anything that isn't version 2, payload type 0x61, with a zero CSRC
// count, mirroring RTPMIDIHeader.Valid in the grounding example.
func decodeDataPacket(buf []byte) (dataPacket, bool) {
	var p dataPacket

	if len(buf) < rtpHeaderLen+1 {
		return p, false
	}

	if buf[0]&0xC0 != rtpVersion2 {
		return p, false
	}

	if buf[0]&0x0F != 0 {
		return p, false // CSRC count must be zero
	}

	if buf[1]&rtpPTMask != rtpPayload {
		return p, false
	}

	p.sequence = binary.BigEndian.Uint16(buf[2:4])
	p.timestamp = binary.BigEndian.Uint32(buf[4:8])
	p.ssrc = binary.BigEndian.Uint32(buf[8:12])

	offset := rtpHeaderLen
	header := buf[offset]

	var length int
	listStart := offset + 1

	if header&bigHeaderBit != 0 {
		if len(buf) < offset+2 {
			return p, false
		}

		length = int(binary.BigEndian.Uint16(buf[offset:offset+2]) & 0x0FFF)
		listStart = offset + 2
	} else {
		length = int(header & lenMask)
	}

	p.firstHasDelta = header&zeroDeltaBit != 0

	if listStart+length > len(buf) {
		length = len(buf) - listStart
	}

	p.commandList = buf[listStart : listStart+length]

	return p, true
}

// encodeDataPacket builds an RTP-MIDI data-port packet carrying a
// single already-encoded command list (used for outbound traffic this
// participant originates, e.g. forwarding local MIDI to the peer).
func encodeDataPacket(sequence uint16, timestamp, ssrc uint32, commandList []byte) []byte {
	buf := make([]byte, rtpHeaderLen)
	buf[0] = rtpVersion2
	buf[1] = rtpPayload
	if len(commandList) > 0 {
		buf[1] |= rtpMarkerBit
	}
	binary.BigEndian.PutUint16(buf[2:4], sequence)
	binary.BigEndian.PutUint32(buf[4:8], timestamp)
	binary.BigEndian.PutUint32(buf[8:12], ssrc)

	if len(commandList) == 0 {
		return append(buf, 0x00)
	}

	var header byte
	var lenBytes []byte

	if len(commandList) > 0x0F {
		header = bigHeaderBit | byte(len(commandList)>>8)&lenMask
		lenBytes = []byte{header, byte(len(commandList))}
	} else {
		header = byte(len(commandList)) & lenMask
		lenBytes = []byte{header}
	}

	buf = append(buf, lenBytes...)
	buf = append(buf, commandList...)

	return buf
}
