package dtmf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCodeRoundTripsForEveryDigit(t *testing.T) {
	for _, digit := range []byte("0123456789*#ABCD") {
		code, err := EventCodeForDigit(digit)
		require.NoError(t, err)
		got, err := DigitForEventCode(code)
		require.NoError(t, err)
		assert.Equal(t, digit, got)
	}
}

func TestEventCodeForDigitRejectsUnknownDigit(t *testing.T) {
	_, err := EventCodeForDigit('Z')
	assert.Error(t, err)
}

func TestDigitForEventCodeRejectsOutOfRangeCode(t *testing.T) {
	_, err := DigitForEventCode(200)
	assert.Error(t, err)
}

func TestEncodeDecodeTelephoneEventRoundTrip(t *testing.T) {
	ev := TelephoneEvent{Event: 5, End: true, Volume: 10, Duration: 4000}
	encoded, err := EncodeTelephoneEvent(ev)
	require.NoError(t, err)
	require.Len(t, encoded, 4)

	decoded, err := DecodeTelephoneEvent(encoded)
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestEncodeTelephoneEventRejectsVolumeOutOfRange(t *testing.T) {
	_, err := EncodeTelephoneEvent(TelephoneEvent{Volume: 64})
	assert.Error(t, err)
}

func TestEncodeTelephoneEventClearsEndBitWhenNotEnding(t *testing.T) {
	encoded, err := EncodeTelephoneEvent(TelephoneEvent{Event: 11, End: false, Volume: 0, Duration: 160})
	require.NoError(t, err)
	assert.Equal(t, byte(0), encoded[1]&0x80)
}

func TestDecodeTelephoneEventRejectsShortPayload(t *testing.T) {
	_, err := DecodeTelephoneEvent([]byte{1, 2})
	assert.Error(t, err)
}
