package mediaprotect

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() ([]byte, []byte) {
	key := make([]byte, 16)
	salt := make([]byte, 14)
	for i := range key {
		key[i] = byte(i + 1)
	}
	for i := range salt {
		salt[i] = byte(i + 100)
	}
	return key, salt
}

func buildRTPPacket(t *testing.T) []byte {
	t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    0,
			SequenceNumber: 42,
			Timestamp:      12345,
			SSRC:           0xCAFEBABE,
		},
		Payload: []byte("hello world"),
	}
	data, err := pkt.Marshal()
	require.NoError(t, err)
	return data
}

func TestProtectIsNoopWithoutSendKey(t *testing.T) {
	ctx := New()
	packet := buildRTPPacket(t)

	out, err := ctx.Protect(packet)
	require.NoError(t, err)
	assert.Equal(t, packet, out)
	assert.False(t, ctx.Enabled())
}

func TestUnprotectIsNoopWithoutRecvKey(t *testing.T) {
	ctx := New()
	packet := buildRTPPacket(t)

	out, err := ctx.Unprotect(packet)
	require.NoError(t, err)
	assert.Equal(t, packet, out)
}

func TestSetSendKeyRejectsBadLength(t *testing.T) {
	ctx := New()
	err := ctx.SetSendKey([]byte{1, 2, 3}, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestProtectUnprotectRoundTrip(t *testing.T) {
	key, salt := testKey()

	sender := New()
	require.NoError(t, sender.SetSendKey(key, salt))

	receiver := New()
	require.NoError(t, receiver.SetRecvKey(key, salt))

	packet := buildRTPPacket(t)
	protected, err := sender.Protect(packet)
	require.NoError(t, err)
	assert.NotEqual(t, packet, protected)

	plaintext, err := receiver.Unprotect(protected)
	require.NoError(t, err)
	assert.Equal(t, packet, plaintext)

	assert.True(t, sender.Enabled())
}
