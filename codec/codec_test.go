package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodecSelectsByPayloadType(t *testing.T) {
	c, err := NewCodec(PayloadTypePCMU, 8000)
	require.NoError(t, err)
	assert.Equal(t, PayloadTypePCMU, c.PayloadType())

	c, err = NewCodec(PayloadTypePCMA, 8000)
	require.NoError(t, err)
	assert.Equal(t, PayloadTypePCMA, c.PayloadType())

	c, err = NewCodec(PayloadTypeOpus, 48000)
	require.NoError(t, err)
	assert.Equal(t, PayloadTypeOpus, c.PayloadType())
}

func TestNewCodecRejectsUnknownPayloadType(t *testing.T) {
	_, err := NewCodec(99, 8000)
	require.Error(t, err)
}

func TestG711ULawRoundTrip(t *testing.T) {
	c, err := NewCodec(PayloadTypePCMU, 8000)
	require.NoError(t, err)

	pcm := []int16{0, 100, -100, 32000, -32000, 1000}
	encoded, err := c.Encode(pcm)
	require.NoError(t, err)
	require.Len(t, encoded, len(pcm))

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(pcm))
	// G.711 is lossy; values should be close, not exact.
	for i := range pcm {
		assert.InDelta(t, pcm[i], decoded[i], 1200)
	}
}

func TestG711ALawRoundTrip(t *testing.T) {
	c, err := NewCodec(PayloadTypePCMA, 8000)
	require.NoError(t, err)

	pcm := []int16{0, 500, -500, 16000}
	encoded, err := c.Encode(pcm)
	require.NoError(t, err)
	require.Len(t, encoded, len(pcm))

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(pcm))
}

func TestG711EmptyInputReturnsNil(t *testing.T) {
	c, err := NewCodec(PayloadTypePCMU, 8000)
	require.NoError(t, err)

	encoded, err := c.Encode(nil)
	require.NoError(t, err)
	assert.Nil(t, encoded)

	decoded, err := c.Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestOpusPrivateFormatRoundTrip(t *testing.T) {
	c, err := NewCodec(PayloadTypeOpus, 48000)
	require.NoError(t, err)

	pcm := []int16{1, 2, 3, -4, 32767, -32768}
	encoded, err := c.Encode(pcm)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, pcm, decoded)
}

func TestOpusEmptyInputReturnsNil(t *testing.T) {
	c, err := NewCodec(PayloadTypeOpus, 48000)
	require.NoError(t, err)

	encoded, err := c.Encode(nil)
	require.NoError(t, err)
	assert.Nil(t, encoded)
}

func TestInt16ByteConversionRoundTrip(t *testing.T) {
	pcm := []int16{0, 1, -1, 32767, -32768, 12345}
	bytes := int16ToBytesLE(pcm)
	require.Len(t, bytes, len(pcm)*2)

	back := bytesLEToInt16(bytes)
	assert.Equal(t, pcm, back)
}
