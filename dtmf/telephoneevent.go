package dtmf

import "fmt"

// eventCodes maps a DTMF digit to its RFC 4733 §3.2 event code: 0-9 are
// their own value, '*' is 10, '#' is 11, and 'A'-'D' are 12-15.
var eventCodes = map[byte]uint8{
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4,
	'5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
	'*': 10, '#': 11,
	'A': 12, 'B': 13, 'C': 14, 'D': 15,
}

var digitsByEventCode = func() map[uint8]byte {
	out := make(map[uint8]byte, len(eventCodes))
	for digit, code := range eventCodes {
		out[code] = digit
	}
	return out
}()

// TelephoneEvent is one RFC 4733 §2.3 telephone-event payload: the same
// digit the in-band Goertzel detector would report, expressed as an
// out-of-band RTP payload instead of audio samples.
type TelephoneEvent struct {
	// Event is the RFC 4733 digit code (0-15); see eventCodes.
	Event uint8
	// End is RFC 4733's E bit: set on the last packet of an event,
	// typically sent three times for loss resilience.
	End bool
	// Volume is the power level in -dBm0 (0 = loudest, 63 = quietest),
	// RFC 4733's six-bit volume field.
	Volume uint8
	// Duration is the event's cumulative duration so far, in RTP
	// timestamp units, per RFC 4733's 16-bit duration field.
	Duration uint16
}

// EventCodeForDigit returns the RFC 4733 event code for a DTMF digit.
func EventCodeForDigit(digit byte) (uint8, error) {
	code, ok := eventCodes[digit]
	if !ok {
		return 0, fmt.Errorf("dtmf: %q is not a valid DTMF digit", digit)
	}
	return code, nil
}

// DigitForEventCode returns the DTMF digit for an RFC 4733 event code.
func DigitForEventCode(code uint8) (byte, error) {
	digit, ok := digitsByEventCode[code]
	if !ok {
		return 0, fmt.Errorf("dtmf: %d is not a valid RFC 4733 event code", code)
	}
	return digit, nil
}

// EncodeTelephoneEvent marshals a TelephoneEvent into its 4-byte RFC
// 4733 §2.3 wire format:
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|     event     |E|R| volume  |          duration             |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// The R bit is always written as 0, per RFC 4733.
func EncodeTelephoneEvent(ev TelephoneEvent) ([]byte, error) {
	if ev.Volume > 63 {
		return nil, fmt.Errorf("dtmf: telephone-event volume %d exceeds the 6-bit range", ev.Volume)
	}

	out := make([]byte, 4)
	out[0] = ev.Event
	out[1] = ev.Volume & 0x3f
	if ev.End {
		out[1] |= 0x80
	}
	out[2] = byte(ev.Duration >> 8)
	out[3] = byte(ev.Duration)
	return out, nil
}

// DecodeTelephoneEvent parses an RFC 4733 telephone-event payload.
func DecodeTelephoneEvent(payload []byte) (TelephoneEvent, error) {
	if len(payload) < 4 {
		return TelephoneEvent{}, fmt.Errorf("dtmf: telephone-event payload shorter than 4 bytes (%d)", len(payload))
	}
	return TelephoneEvent{
		Event:    payload[0],
		End:      payload[1]&0x80 != 0,
		Volume:   payload[1] & 0x3f,
		Duration: uint16(payload[2])<<8 | uint16(payload[3]),
	}, nil
}
