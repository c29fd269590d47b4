package rtp

import (
	"fmt"
	"time"

	"github.com/pion/rtcp"
)

const ntpEpochOffset = 2208988800 // seconds between 1900-01-01 and 1970-01-01

// ntpTimestamp converts a wall-clock time to a 64-bit NTP timestamp
// (32.32 fixed point, seconds since 1900-01-01).
func ntpTimestamp(t time.Time) uint64 {
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64(float64(t.Nanosecond()) / 1e9 * (1 << 32))
	return secs | frac
}

// ntpMiddle32 extracts the middle 32 bits of a 64-bit NTP timestamp, the
// form used as LSR in RTCP RR reports.
func ntpMiddle32(ntp uint64) uint32 {
	return uint32(ntp >> 16)
}

// buildSRSDES assembles a compound SR+SDES RTCP packet reporting this
// session's send-side counters and (if available) reception of the
// current remote source.
func (s *Session) buildSRSDES(now time.Time) ([]byte, error) {
	ntp := ntpTimestamp(now)

	sr := &rtcp.SenderReport{
		SSRC:        s.localSSRC,
		NTPTime:     ntp,
		RTPTime:     s.sendTimestampHint(),
		PacketCount: uint32(s.packetsSent),
		OctetCount:  uint32(s.bytesSent),
	}
	if s.hasRemoteSSRC {
		sr.Reports = []rtcp.ReceptionReport{s.buildReceptionReport(now)}
	}

	s.lastSRNTPMiddle = ntpMiddle32(ntp)
	s.lastSRSentAt = now

	sdes := s.buildSDES()

	return marshalCompound(sr, sdes)
}

// buildRR assembles a compound RR+SDES RTCP packet. Returns ErrNoRemoteSSRC
// if no packet from a remote source has been observed yet.
func (s *Session) buildRR(now time.Time) ([]byte, error) {
	if !s.hasRemoteSSRC {
		return nil, ErrNoRemoteSSRC
	}

	rr := &rtcp.ReceiverReport{
		SSRC:    s.localSSRC,
		Reports: []rtcp.ReceptionReport{s.buildReceptionReport(now)},
	}
	sdes := s.buildSDES()

	return marshalCompound(rr, sdes)
}

func (s *Session) buildReceptionReport(now time.Time) rtcp.ReceptionReport {
	frac := uint8(s.recv.fractionLost() * 256)
	lsr, dlsr := uint32(0), uint32(0)
	if s.lastSRRemoteNTPMiddle != 0 {
		lsr = s.lastSRRemoteNTPMiddle
		elapsed := now.Sub(s.lastSRRemoteArrival)
		dlsr = uint32(elapsed.Seconds() * 65536)
	}

	return rtcp.ReceptionReport{
		SSRC:               s.remoteSSRC,
		FractionLost:       frac,
		TotalLost:          uint32(s.recv.lost()),
		LastSequenceNumber: s.recv.extendedMaxSeq(),
		Jitter:             uint32(s.recv.jitter),
		LastSenderReport:   lsr,
		Delay:              dlsr,
	}
}

func (s *Session) buildSDES() *rtcp.SourceDescription {
	return &rtcp.SourceDescription{
		Chunks: []rtcp.SourceDescriptionChunk{
			{
				Source: s.localSSRC,
				Items: []rtcp.SourceDescriptionItem{
					{Type: rtcp.SDESCNAME, Text: s.cname},
				},
			},
		},
	}
}

// buildBye assembles a BYE RTCP packet announcing session teardown.
func (s *Session) buildBye(reason string) ([]byte, error) {
	bye := &rtcp.Goodbye{
		Sources: []uint32{s.localSSRC},
		Reason:  reason,
	}
	data, err := bye.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	return data, nil
}

func marshalCompound(packets ...rtcp.Packet) ([]byte, error) {
	data, err := rtcp.Marshal(packets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	return data, nil
}

// processRTCP parses an incoming compound RTCP packet and folds any SR
// addressed from the tracked remote SSRC into RTT tracking.
func (s *Session) processRTCP(data []byte, now time.Time) error {
	packets, err := rtcp.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}

	for _, p := range packets {
		switch pkt := p.(type) {
		case *rtcp.SenderReport:
			s.onRemoteSR(pkt, now)
		case *rtcp.ReceiverReport:
			s.onRemoteRR(pkt, now)
		case *rtcp.Goodbye:
			s.onRemoteBye(pkt)
		}
	}
	return nil
}

func (s *Session) onRemoteSR(sr *rtcp.SenderReport, now time.Time) {
	if sr.SSRC != s.remoteSSRC {
		return
	}
	s.lastSRRemoteNTPMiddle = ntpMiddle32(sr.NTPTime)
	s.lastSRRemoteArrival = now
}

func (s *Session) onRemoteRR(rr *rtcp.ReceiverReport, now time.Time) {
	for _, rep := range rr.Reports {
		if rep.SSRC != s.localSSRC {
			continue
		}
		if rep.LastSenderReport == 0 {
			continue
		}
		nowMiddle := ntpMiddle32(ntpTimestamp(now))
		rttNTP := int64(nowMiddle) - int64(rep.LastSenderReport) - int64(rep.Delay)
		if rttNTP < 0 {
			continue
		}
		s.rttMS = float64(rttNTP) * 1000.0 / 65536.0
	}
}

func (s *Session) onRemoteBye(bye *rtcp.Goodbye) {
	for _, src := range bye.Sources {
		if src == s.remoteSSRC {
			s.remoteLeft = true
		}
	}
}
