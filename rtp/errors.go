package rtp

import "errors"

// Sentinel errors returned by packet framing and parsing. Session methods
// wrap these with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrInvalidPacket indicates a malformed RTP or RTCP packet: wrong
	// version, truncated header, or an internally inconsistent length.
	ErrInvalidPacket = errors.New("rtp: invalid packet")

	// ErrBufferTooSmall indicates a caller-supplied buffer could not hold
	// a serialized packet.
	ErrBufferTooSmall = errors.New("rtp: buffer too small")

	// ErrNoRemoteSSRC indicates an operation that requires a previously
	// observed remote SSRC (e.g. building an RR) was attempted before any
	// packet had been received.
	ErrNoRemoteSSRC = errors.New("rtp: no remote SSRC observed yet")
)
