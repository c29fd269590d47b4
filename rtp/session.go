package rtp

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config parameterizes a Session.
type Config struct {
	// SSRC is this session's local synchronization source. Zero means
	// "generate one" via the configured SSRCProvider.
	SSRC uint32

	// PayloadType is written into the RTP header of every packet built by
	// CreatePacket (7 bits); CreatePacketWithPayloadType overrides it.
	PayloadType uint8

	// ClockRate is the media clock rate in Hz (e.g. 8000 for PCMU, 48000
	// for Opus), used to convert wall-clock arrival times into RTP
	// timestamp units for jitter estimation.
	ClockRate uint32

	// CNAME is the RTCP SDES canonical name to advertise. Empty means
	// "generate a random one, stable for the session's lifetime."
	CNAME string
}

// Statistics is a snapshot of a Session's send/receive counters.
type Statistics struct {
	PacketsSent uint64
	BytesSent   uint64

	PacketsReceived  uint64
	BytesReceived    uint64
	PacketsLost      uint64
	PacketsReordered uint64
	FractionLost     float64
	Jitter           float64 // RTP clock units, per RFC 3550 §6.4.1

	SSRCChanges uint64
	RemoteLeft  bool
	RTTMillis   float64
}

// Session tracks one local SSRC's send-side counters and one remote
// SSRC's receive-side accounting, per RFC 3550.
type Session struct {
	mu sync.Mutex

	payloadType uint8
	clockRate   uint32
	cname       string

	timeProvider TimeProvider
	ssrcProvider SSRCProvider
	sessionStart time.Time

	localSSRC    uint32
	sendSeq      uint16
	lastSendTS   uint32
	packetsSent  uint64
	bytesSent    uint64

	remoteSSRC    uint32
	hasRemoteSSRC bool
	recv          receiveStats
	ssrcChanges   uint64
	remoteLeft    bool

	lastSRSentAt           time.Time
	lastSRNTPMiddle        uint32
	lastSRRemoteNTPMiddle  uint32
	lastSRRemoteArrival    time.Time
	rttMS                  float64
}

// NewSession constructs a Session using the default time and SSRC
// providers.
func NewSession(cfg Config) (*Session, error) {
	return NewSessionWithProviders(cfg, DefaultTimeProvider{}, DefaultSSRCProvider{})
}

// NewSessionWithProviders constructs a Session with injectable providers,
// for deterministic tests.
func NewSessionWithProviders(cfg Config, tp TimeProvider, sp SSRCProvider) (*Session, error) {
	if cfg.ClockRate == 0 {
		return nil, fmt.Errorf("rtp: clock rate must be positive")
	}
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	if sp == nil {
		sp = DefaultSSRCProvider{}
	}

	ssrc := cfg.SSRC
	if ssrc == 0 {
		var err error
		ssrc, err = sp.GenerateSSRC()
		if err != nil {
			return nil, fmt.Errorf("rtp: failed to generate SSRC: %w", err)
		}
	}

	cname := cfg.CNAME
	if cname == "" {
		var err error
		cname, err = generateCNAME()
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		payloadType:  cfg.PayloadType,
		clockRate:    cfg.ClockRate,
		cname:        cname,
		timeProvider: tp,
		ssrcProvider: sp,
		sessionStart: tp.Now(),
		localSSRC:    ssrc,
	}

	logrus.WithFields(logrus.Fields{
		"function":     "rtp.NewSession",
		"local_ssrc":   ssrc,
		"payload_type": cfg.PayloadType,
		"clock_rate":   cfg.ClockRate,
	}).Info("RTP session created")

	return s, nil
}

func generateCNAME() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rtp: failed to generate CNAME: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// LocalSSRC returns this session's local synchronization source.
func (s *Session) LocalSSRC() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localSSRC
}

// CreatePacket builds and marshals one outgoing RTP packet using the
// session's configured audio payload type, advancing the send sequence
// number and send-side counters on success.
func (s *Session) CreatePacket(payload []byte, timestamp uint32, marker bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPacketLocked(s.payloadType, payload, timestamp, marker)
}

// CreatePacketWithPayloadType builds and marshals one outgoing RTP
// packet using an explicit payload type instead of the session's
// configured audio payload type. This lets a secondary payload (e.g. an
// RFC 4733 telephone-event) mux onto the same SSRC and sequence-number
// space as the audio stream, per §4.3.3.
func (s *Session) CreatePacketWithPayloadType(payloadType uint8, payload []byte, timestamp uint32, marker bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPacketLocked(payloadType, payload, timestamp, marker)
}

func (s *Session) createPacketLocked(payloadType uint8, payload []byte, timestamp uint32, marker bool) ([]byte, error) {
	data, err := createPacket(payloadType, s.localSSRC, s.sendSeq, timestamp, marker, payload)
	if err != nil {
		return nil, err
	}

	s.sendSeq++
	s.lastSendTS = timestamp
	s.packetsSent++
	s.bytesSent += uint64(len(payload))

	return data, nil
}

// sendTimestampHint returns the RTP timestamp of the most recently sent
// packet, used as the RTPTime field in outgoing SR reports.
func (s *Session) sendTimestampHint() uint32 {
	return s.lastSendTS
}

// ReceivePacket parses an incoming RTP packet, updates receive-side
// accounting, and returns the payload. A remote SSRC change resets
// accounting and is counted in Statistics.SSRCChanges rather than
// rejected, per the session-restart policy for reconnecting peers.
func (s *Session) ReceivePacket(data []byte) ([]byte, error) {
	parsed, accepted, err := s.receiveParsed(data)
	if err != nil || !accepted {
		return nil, err
	}
	return parsed.Payload, nil
}

// ReceivePacketParsed parses an incoming RTP packet and updates
// receive-side accounting exactly like ReceivePacket, but returns the full
// ParsedPacket (sequence number, timestamp, marker bit) rather than just
// the payload. Callers that need to forward sequencing fields to a jitter
// buffer's Put should use this instead of ReceivePacket. accepted is false
// when the packet fell outside the receiver's accepted window; the caller
// should count it without forwarding anything downstream.
func (s *Session) ReceivePacketParsed(data []byte) (packet ParsedPacket, accepted bool, err error) {
	return s.receiveParsed(data)
}

func (s *Session) receiveParsed(data []byte) (ParsedPacket, bool, error) {
	parsed, err := parsePacket(data)
	if err != nil {
		return ParsedPacket{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasRemoteSSRC && parsed.SSRC != s.remoteSSRC {
		logrus.WithFields(logrus.Fields{
			"function": "rtp.Session.ReceivePacket",
			"old_ssrc": s.remoteSSRC,
			"new_ssrc": parsed.SSRC,
		}).Warn("remote SSRC changed, resetting receive accounting")
		s.recv.reset()
		s.ssrcChanges++
	}
	s.remoteSSRC = parsed.SSRC
	s.hasRemoteSSRC = true
	s.remoteLeft = false

	arrivalRTP := s.arrivalRTPNow()
	accepted := s.recv.observe(parsed.SequenceNumber, parsed.Timestamp, arrivalRTP, len(parsed.Payload))
	if !accepted {
		return ParsedPacket{}, false, nil
	}

	return parsed, true, nil
}

func (s *Session) arrivalRTPNow() int64 {
	elapsed := s.timeProvider.Now().Sub(s.sessionStart)
	return elapsed.Milliseconds() * int64(s.clockRate) / 1000
}

// Statistics returns a snapshot of the session's current counters.
func (s *Session) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Statistics{
		PacketsSent:      s.packetsSent,
		BytesSent:        s.bytesSent,
		PacketsReceived:  s.recv.packetsReceived,
		BytesReceived:    s.recv.bytesReceived,
		PacketsLost:      s.recv.lost(),
		PacketsReordered: s.recv.packetsReordered,
		FractionLost:     s.recv.fractionLost(),
		Jitter:           s.recv.jitter,
		SSRCChanges:      s.ssrcChanges,
		RemoteLeft:       s.remoteLeft,
		RTTMillis:        s.rttMS,
	}
}

// BuildSR assembles a compound SR+SDES RTCP packet for this session to
// send now.
func (s *Session) BuildSR() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildSRSDES(s.timeProvider.Now())
}

// BuildRR assembles a compound RR+SDES RTCP packet. Returns
// ErrNoRemoteSSRC if no packet has been received yet.
func (s *Session) BuildRR() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildRR(s.timeProvider.Now())
}

// BuildBye assembles a BYE RTCP packet announcing session teardown.
func (s *Session) BuildBye(reason string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildBye(reason)
}

// ProcessRTCP parses an incoming compound RTCP packet, updating RTT
// estimation from any SR/RR addressed to this session.
func (s *Session) ProcessRTCP(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processRTCP(data, s.timeProvider.Now())
}

// Close releases session resources. Session holds no resources beyond
// Go-managed memory; Close exists for symmetry with the other long-lived
// media components.
func (s *Session) Close() error {
	return nil
}
