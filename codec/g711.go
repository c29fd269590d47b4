package codec

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zaf/g711"
)

// law selects the G.711 companding scheme.
type law int

const (
	muLaw law = iota
	aLaw
)

// g711Codec adapts github.com/zaf/g711's functional encode/decode pair to
// the Codec interface. It holds no state beyond its fixed payload type
// and companding scheme:
// G.711 has no lookahead and no internal filter memory, so create/reset
// have nothing to do.
type g711Codec struct {
	payloadType uint8
	scheme      law
}

func newG711(payloadType uint8, scheme law) *g711Codec {
	return &g711Codec{payloadType: payloadType, scheme: scheme}
}

// Encode converts linear PCM to 8-bit companded G.711 samples.
func (c *g711Codec) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	linear := int16ToBytesLE(pcm)

	var encoded []byte
	switch c.scheme {
	case muLaw:
		encoded = g711.EncodeUlaw(linear)
	case aLaw:
		encoded = g711.EncodeAlaw(linear)
	default:
		return nil, fmt.Errorf("codec: unknown G.711 scheme")
	}

	logrus.WithFields(logrus.Fields{
		"function":     "g711Codec.Encode",
		"payload_type": c.payloadType,
		"input_samples": len(pcm),
		"output_bytes":  len(encoded),
	}).Debug("encoded G.711 frame")

	return encoded, nil
}

// Decode converts 8-bit companded G.711 samples to linear PCM.
func (c *g711Codec) Decode(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var linear []byte
	switch c.scheme {
	case muLaw:
		linear = g711.DecodeUlaw(payload)
	case aLaw:
		linear = g711.DecodeAlaw(payload)
	default:
		return nil, fmt.Errorf("codec: unknown G.711 scheme")
	}

	return bytesLEToInt16(linear), nil
}

// PayloadType returns the static RTP payload type (0 for PCMU, 8 for PCMA).
func (c *g711Codec) PayloadType() uint8 { return c.payloadType }

// Close is a no-op; G.711 holds no resources.
func (c *g711Codec) Close() error { return nil }
