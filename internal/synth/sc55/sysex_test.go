package sc55

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func encodeDisplayMessage(addr int, value []byte) []byte {
	addrBytes := []byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}

	var sum byte
	for _, b := range addrBytes {
		sum += b
	}

	for _, b := range value {
		sum += b
	}

	checksum := (0x80 - (sum & 0x7F)) & 0x7F

	msg := []byte{0xF0, rolandManufacturerID, 0x10, rolandDeviceIDSC55, rolandCommandDataSet1}
	msg = append(msg, addrBytes...)
	msg = append(msg, value...)
	msg = append(msg, checksum, 0xF7)

	return msg
}

func TestInterceptDisplaySysExRecognisesTextAndDots(t *testing.T) {
	text := make([]byte, displayTextDataLen)
	copy(text, "HELLO")

	r := InterceptDisplaySysEx(encodeDisplayMessage(displayAddressText, text))
	assert.Equal(t, DisplayText, r.Display)
	assert.Equal(t, text, r.Data)

	dots := make([]byte, displayDotsDataLen)
	for i := range dots {
		dots[i] = byte(i)
	}

	r = InterceptDisplaySysEx(encodeDisplayMessage(displayAddressDots, dots))
	assert.Equal(t, DisplayDots, r.Display)
	assert.Equal(t, dots, r.Data)
}

func TestInterceptDisplaySysExRejectsWrongDeviceIDAndBadChecksum(t *testing.T) {
	text := make([]byte, displayTextDataLen)
	msg := encodeDisplayMessage(displayAddressText, text)

	wrongDevice := append([]byte(nil), msg...)
	wrongDevice[3] = 0x10
	assert.Equal(t, DisplayNone, InterceptDisplaySysEx(wrongDevice).Display)

	badChecksum := append([]byte(nil), msg...)
	badChecksum[len(badChecksum)-2] ^= 0xFF
	assert.Equal(t, DisplayNone, InterceptDisplaySysEx(badChecksum).Display)
}

func TestInterceptDisplaySysExIgnoresOtherAddresses(t *testing.T) {
	msg := encodeDisplayMessage(0x401015, []byte{0x01})
	assert.Equal(t, DisplayNone, InterceptDisplaySysEx(msg).Display)
}
