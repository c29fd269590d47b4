package pipeline

import (
	"fmt"

	"github.com/opd-ai/rtvoice/dtmf"
)

// SendDTMFEvent emits one RFC 4733 telephone-event packet (§4.3.3) for
// digit, muxed onto the session's SSRC at the configured
// TelephoneEventPayloadType instead of going through the audio encode
// path. It does not advance the capture-tick RTP timestamp: the event's
// timestamp marks when the tone started, which per RFC 4733 stays fixed
// across an event's packets while Duration reports elapsed samples.
func (p *Pipeline) SendDTMFEvent(digit byte, durationSamples uint16, volume uint8, end bool) error {
	if !p.cfg.TelephoneEventEnabled {
		return fmt.Errorf("pipeline: telephone-event support is not enabled")
	}

	code, err := dtmf.EventCodeForDigit(digit)
	if err != nil {
		return err
	}

	payload, err := dtmf.EncodeTelephoneEvent(dtmf.TelephoneEvent{
		Event:    code,
		End:      end,
		Volume:   volume,
		Duration: durationSamples,
	})
	if err != nil {
		return err
	}

	packet, err := p.cfg.Session.CreatePacketWithPayloadType(p.cfg.TelephoneEventPayloadType, payload, p.rtpTimestamp, end)
	if err != nil {
		return fmt.Errorf("pipeline: telephone-event pack: %w", err)
	}

	if p.cfg.Protector != nil {
		protected, err := p.cfg.Protector.Protect(packet)
		if err != nil {
			return fmt.Errorf("pipeline: telephone-event SRTP protect: %w", err)
		}
		packet = protected
	}

	if p.cfg.Stats != nil {
		p.cfg.Stats.RecordSent(1, uint64(len(packet)))
	}

	return p.cfg.EncodedOut(packet)
}

// telephoneEventFromPacket decodes an inbound telephone-event packet and
// dispatches it to OnTelephoneEvent, reporting whether the packet was
// consumed as a telephone-event (in which case it must not also be
// forwarded to the jitter buffer).
func (p *Pipeline) telephoneEventFromPacket(payloadType uint8, payload []byte) (bool, error) {
	if !p.cfg.TelephoneEventEnabled || payloadType != p.cfg.TelephoneEventPayloadType {
		return false, nil
	}

	ev, err := dtmf.DecodeTelephoneEvent(payload)
	if err != nil {
		return true, err
	}
	if p.cfg.OnTelephoneEvent != nil {
		p.cfg.OnTelephoneEvent(ev)
	}
	return true, nil
}
