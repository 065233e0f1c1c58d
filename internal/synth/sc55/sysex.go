package sc55

// SC-55's own display SysEx table, kept separate from the general
// Roland table in internal/synth (§4.G supplemented feature, mirroring
// the original's sc55sysex.h/sc55synth.cpp split): unlike the shared
// table, TSC55SysExMessage checks the SC-55's own device/model ID
// (0x45) and each message's fixed data length, not just the DT1
// address.
const (
	rolandManufacturerID = 0x41
	rolandDeviceIDSC55   = 0x45
	rolandCommandDataSet1 = 0x12

	displayAddressText = 0x100000
	displayAddressDots = 0x100100

	displayTextDataLen = 32
	displayDotsDataLen = 64
)

// DisplayKind distinguishes the SC-55's two display payloads.
type DisplayKind int

const (
	DisplayNone DisplayKind = iota
	DisplayText
	DisplayDots
)

// Intercept is the result of inspecting one complete SysEx buffer
// against the SC-55 display table.
type Intercept struct {
	Display DisplayKind
	Data    []byte
}

// InterceptDisplaySysEx recognises TSC55SysExMessage<SC55DisplayDataAddressText, 32>
// and TSC55SysExMessage<SC55DisplayDataAddressDots, 64>: a fixed-length
// DT1 write to the SC-55's display-text or display-dots address,
// carrying the SC-55's model ID 0x45 specifically (not any Roland
// module); the per-unit device ID byte is not checked.
// data must be a complete SysEx buffer including the leading 0xF0 and
// trailing 0xF7.
func InterceptDisplaySysEx(data []byte) Intercept {
	if len(data) < 9 || data[0] != 0xF0 || data[len(data)-1] != 0xF7 {
		return Intercept{}
	}

	body := data[1 : len(data)-1]
	if len(body) < 7 {
		return Intercept{}
	}

	// body layout after the leading 0xF0: manufacturerID, deviceID
	// (arbitrary per-unit, unchecked), modelID, commandID, address[3],
	// data..., checksum — matching TSC55SysExMessage's field order,
	// whose IsValid() checks modelID against the SC-55 constant.
	if body[0] != rolandManufacturerID || body[2] != rolandDeviceIDSC55 || body[3] != rolandCommandDataSet1 {
		return Intercept{}
	}

	addr := int(body[4])<<16 | int(body[5])<<8 | int(body[6])
	payload := body[7:]
	checksum := payload[len(payload)-1]
	fieldsAndData := body[4 : len(body)-1]

	if !rolandChecksumValid(fieldsAndData, checksum) {
		return Intercept{}
	}

	value := payload[:len(payload)-1]

	switch {
	case addr == displayAddressText && len(value) == displayTextDataLen:
		return Intercept{Display: DisplayText, Data: append([]byte(nil), value...)}
	case addr == displayAddressDots && len(value) == displayDotsDataLen:
		return Intercept{Display: DisplayDots, Data: append([]byte(nil), value...)}
	default:
		return Intercept{}
	}
}

// rolandChecksumValid implements Utility::RolandChecksum: the one-byte
// two's complement (mod 128) of the sum of every byte from the address
// through the data, exclusive of the checksum itself.
func rolandChecksumValid(addrAndData []byte, checksum byte) bool {
	var sum byte

	for _, b := range addrAndData {
		sum += b
	}

	return (0x80-(sum&0x7F))&0x7F == checksum
}
