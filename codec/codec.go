// Package codec implements the codec facade (C5): one Codec interface
// through which the pipeline encodes and decodes media, independent of
// the wire format negotiated for a session.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Payload type assignments per RFC 3551 static table (PCMU/PCMA) and the
// conventional dynamic assignment used throughout the VoIP ecosystem for
// Opus.
const (
	PayloadTypePCMU uint8 = 0
	PayloadTypePCMA uint8 = 8
	PayloadTypeOpus uint8 = 111
)

// Codec converts between linear PCM samples and a codec's wire payload.
type Codec interface {
	// Encode converts PCM samples to wire-format payload bytes.
	Encode(pcm []int16) ([]byte, error)
	// Decode converts wire-format payload bytes to PCM samples.
	Decode(payload []byte) ([]int16, error)
	// PayloadType returns the RTP payload type this codec produces.
	PayloadType() uint8
	// Close releases codec resources.
	Close() error
}

// NewCodec selects a Codec implementation by RTP payload type, so callers
// never need a type switch of their own.
func NewCodec(payloadType uint8, clockRate uint32) (Codec, error) {
	logrus.WithFields(logrus.Fields{
		"function":     "codec.NewCodec",
		"payload_type": payloadType,
		"clock_rate":   clockRate,
	}).Debug("selecting codec implementation")

	switch payloadType {
	case PayloadTypePCMU:
		return newG711(payloadType, muLaw), nil
	case PayloadTypePCMA:
		return newG711(payloadType, aLaw), nil
	case PayloadTypeOpus:
		return newOpusCodec(clockRate), nil
	default:
		return nil, fmt.Errorf("codec: unsupported payload type %d", payloadType)
	}
}

func int16ToBytesLE(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func bytesLEToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
