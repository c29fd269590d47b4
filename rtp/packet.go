package rtp

import (
	"fmt"

	"github.com/pion/rtp"
)

// ParsedPacket is the result of parsing an incoming RTP packet: the
// header fields a Session's receive-side accounting needs, plus a
// zero-copy view of the payload.
type ParsedPacket struct {
	SSRC           uint32
	SequenceNumber uint16
	Timestamp      uint32
	Marker         bool
	PayloadType    uint8
	Payload        []byte
}

// createPacket builds and marshals one RTP packet with the given payload,
// timestamp, and marker bit, using the session's payload type, SSRC, and
// the next send sequence number. It does not mutate session counters;
// callers advance those after a successful send.
func createPacket(payloadType uint8, ssrc uint32, seq uint16, timestamp uint32, marker bool, payload []byte) ([]byte, error) {
	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Padding:        false,
			Extension:      false,
			Marker:         marker,
			PayloadType:    payloadType,
			SequenceNumber: seq,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}

	data, err := packet.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	return data, nil
}

// parsePacket unmarshals raw RTP bytes into a ParsedPacket. It rejects
// anything that isn't a well-formed RTP v2 header.
func parsePacket(data []byte) (ParsedPacket, error) {
	if len(data) < 12 {
		return ParsedPacket{}, fmt.Errorf("%w: packet shorter than minimum RTP header (%d bytes)", ErrInvalidPacket, len(data))
	}

	packet := &rtp.Packet{}
	if err := packet.Unmarshal(data); err != nil {
		return ParsedPacket{}, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	if packet.Version != 2 {
		return ParsedPacket{}, fmt.Errorf("%w: unsupported RTP version %d", ErrInvalidPacket, packet.Version)
	}

	return ParsedPacket{
		SSRC:           packet.SSRC,
		SequenceNumber: packet.SequenceNumber,
		Timestamp:      packet.Timestamp,
		Marker:         packet.Marker,
		PayloadType:    packet.PayloadType,
		Payload:        packet.Payload,
	}, nil
}
