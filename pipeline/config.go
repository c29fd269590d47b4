package pipeline

import (
	"fmt"

	"github.com/opd-ai/rtvoice/codec"
	"github.com/opd-ai/rtvoice/dsp"
	"github.com/opd-ai/rtvoice/dtmf"
	"github.com/opd-ai/rtvoice/jitter"
	"github.com/opd-ai/rtvoice/mediaprotect"
	"github.com/opd-ai/rtvoice/ring"
	"github.com/opd-ai/rtvoice/rtp"
	"github.com/opd-ai/rtvoice/stats"
)

// CaptureDevice pulls one frame of captured PCM from a real microphone.
// Implementations return the number of samples actually filled.
type CaptureDevice interface {
	Read(buf []int16) (int, error)
}

// PlaybackDevice pushes one frame of PCM to a real speaker/output.
type PlaybackDevice interface {
	Write(buf []int16) error
}

// EncodedDataFunc is the capture-side emit callback: one wire-ready,
// possibly SRTP-protected RTP packet per successful capture tick.
type EncodedDataFunc func(packet []byte) error

// Config wires together every collaborator a Pipeline needs. Session,
// Jitter, PLC, and Codec are required; the DSP blocks, Protector, device
// handles, and Stats are optional and may be nil.
type Config struct {
	Session *rtp.Session
	Jitter  *jitter.Buffer
	PLC     *jitter.PLC
	Codec   codec.Codec

	// FrameSamples is F: the number of PCM samples processed per tick,
	// at the codec's native sample rate.
	FrameSamples int

	// Optional DSP chain. A nil block means that stage is skipped
	// entirely rather than running as an identity pass, so a pipeline
	// built without e.g. an Equalizer pays nothing for it.
	AEC        *dsp.AEC
	Denoiser   *dsp.Denoiser
	AGC        *dsp.AGC
	VAD        *dsp.VAD
	CNG        *dsp.ComfortNoiseGenerator
	Equalizer  *dsp.Equalizer
	Compressor *dsp.Dynamics

	// Protector installs SRTP when non-nil. A Protector with no key
	// installed on either direction behaves as a pass-through, per
	// mediaprotect's own Enabled/no-op contract.
	Protector *mediaprotect.Context

	// Stats, when non-nil, receives packet/byte counters as the tick
	// runs. A nil Stats means the pipeline still runs, it just isn't
	// observed.
	Stats *stats.Collector

	// CaptureDevice and PlaybackDevice are optional real hardware
	// endpoints. When nil, the pipeline reads capture frames from (and
	// writes playback frames to) the PushCapture/PullPlayback rings
	// instead, for device-less callers such as tests or a bot.
	CaptureDevice  CaptureDevice
	PlaybackDevice PlaybackDevice

	// EncodedOut receives one packet per successful capture tick. Required.
	EncodedOut EncodedDataFunc

	// OnStateChange, when non-nil, is invoked after every lifecycle
	// transition.
	OnStateChange StateChangeFunc

	// TelephoneEventEnabled turns on the RFC 4733 out-of-band DTMF path
	// (§4.3.3): SendDTMFEvent becomes usable, and inbound packets whose
	// payload type matches TelephoneEventPayloadType are decoded as
	// telephone-events and routed to OnTelephoneEvent instead of the
	// jitter buffer.
	TelephoneEventEnabled     bool
	TelephoneEventPayloadType uint8
	OnTelephoneEvent          func(dtmf.TelephoneEvent)

	// DeviceLessRingFrames sizes the push/pull rings in frames when no
	// device is configured; zero uses a conventional default of 8.
	DeviceLessRingFrames int
}

func (c Config) validate() error {
	if c.Session == nil || c.Jitter == nil || c.PLC == nil || c.Codec == nil {
		return fmt.Errorf("%w: session, jitter buffer, PLC, and codec are required", ErrInvalidConfig)
	}
	if c.FrameSamples <= 0 {
		return fmt.Errorf("%w: frame samples must be positive", ErrInvalidConfig)
	}
	if c.EncodedOut == nil {
		return fmt.Errorf("%w: EncodedOut callback is required", ErrInvalidConfig)
	}
	return nil
}

func deviceLessRingCapacity(frames, frameSamples int) int {
	if frames <= 0 {
		frames = 8
	}
	return frames * frameSamples
}

func newDeviceLessRing(frames, frameSamples int) (*ring.Buffer[int16], error) {
	return ring.New[int16](deviceLessRingCapacity(frames, frameSamples))
}
