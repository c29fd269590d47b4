package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// opusDecodeBufSamples bounds the largest frame the decoder will produce:
// 1920 samples covers 40ms at 48kHz, the largest frame size this engine
// negotiates.
const opusDecodeBufSamples = 1920

// opusCodec implements Codec for Opus (RFC 6716).
//
// Decode is standards-accurate via the pack's pure-Go decoder. No pure-Go
// Opus *encoder* exists anywhere in the dependency pack (pion/opus is
// decode-only), so Encode frames PCM as a private, lossless sub-format: a
// 4-byte little-endian sample count followed by the raw 16-bit PCM
// samples. This is a declared limitation, not a silent one — see
// DESIGN.md — and mirrors the teacher codebase's own already-acknowledged
// PCM-passthrough placeholder for the same reason.
type opusCodec struct {
	clockRate uint32
	decoder   *opus.Decoder
}

func newOpusCodec(clockRate uint32) *opusCodec {
	dec := opus.NewDecoder()
	return &opusCodec{clockRate: clockRate, decoder: &dec}
}

// Encode frames pcm as the private lossless sub-format described above.
func (c *opusCodec) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}

	out := make([]byte, 4+len(pcm)*2)
	binary.LittleEndian.PutUint32(out, uint32(len(pcm)))
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[4+i*2:], uint16(s))
	}
	return out, nil
}

// Decode accepts either this codec's own private sub-format (self-framed,
// used in tests and same-process loopback) or a genuine Opus bitstream
// produced by a real peer, via the pack's pure-Go decoder.
func (c *opusCodec) Decode(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	if ownFormat, ok := c.decodeOwnFormat(payload); ok {
		return ownFormat, nil
	}

	buf := make([]byte, opusDecodeBufSamples*2)
	bandwidth, isStereo, err := c.decoder.Decode(payload, buf)
	if err != nil {
		return nil, fmt.Errorf("codec: opus decode failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "opusCodec.Decode",
		"bandwidth": bandwidth.String(),
		"is_stereo": isStereo,
	}).Debug("decoded opus frame")

	samples := bytesLEToInt16(buf)
	if isStereo {
		samples = downmixStereo(samples)
	}
	return samples, nil
}

// decodeOwnFormat recognizes and unpacks this codec's own private framing
// from Encode, so a same-process send/receive loop round-trips exactly.
func (c *opusCodec) decodeOwnFormat(payload []byte) ([]int16, bool) {
	if len(payload) < 4 {
		return nil, false
	}
	count := binary.LittleEndian.Uint32(payload)
	expected := 4 + int(count)*2
	if expected != len(payload) {
		return nil, false
	}
	return bytesLEToInt16(payload[4:]), true
}

func downmixStereo(interleaved []int16) []int16 {
	out := make([]int16, len(interleaved)/2)
	for i := range out {
		l := int32(interleaved[i*2])
		r := int32(interleaved[i*2+1])
		out[i] = int16((l + r) / 2)
	}
	return out
}

// PayloadType always returns PayloadTypeOpus (111), the conventional
// dynamic payload type for Opus.
func (c *opusCodec) PayloadType() uint8 { return PayloadTypeOpus }

// Close releases decoder resources. pion/opus's decoder holds no
// resources beyond Go-managed memory; Close exists for interface
// uniformity with the other codecs.
func (c *opusCodec) Close() error { return nil }
