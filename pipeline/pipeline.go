package pipeline

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtvoice/jitter"
	"github.com/opd-ai/rtvoice/ring"
)

// Wire-format frame tags distinguishing an encoded-audio payload from a
// comfort-noise SID descriptor on the RTP payload this pipeline builds
// and consumes. This is a private sub-protocol between this pipeline's
// own capture and playback sides (the same simplification the codec
// facade already makes for its Opus encode half), not a standard.
const (
	frameTagAudio byte = 0x00
	frameTagSID   byte = 0x01
)

// Pipeline drives one call's capture tick, playback tick, and network
// ingress, per the fixed step order each was built against.
type Pipeline struct {
	cfg Config
	sm  *stateMachine

	intents intentQueue

	rtpTimestamp uint32

	captureScratch []int16
	aecRefScratch  []int16
	aecRef         *aecReference
	encodeScratch  []byte
	playbackOut    []int16

	captureRing  *ring.Buffer[int16]
	playbackRing *ring.Buffer[int16]

	muted          bool
	playbackVolume float64
	bitrateHintBPS int

	aecEnabled     bool
	denoiseEnabled bool
	agcEnabled     bool
	cngEnabled     bool

	currentStretchRate float64

	invalidPackets uint64
}

// New validates cfg and constructs a Pipeline in the Stopped state.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var captureRing, playbackRing *ring.Buffer[int16]
	if cfg.CaptureDevice == nil {
		r, err := newDeviceLessRing(cfg.DeviceLessRingFrames, cfg.FrameSamples)
		if err != nil {
			return nil, fmt.Errorf("pipeline: capture ring: %w", err)
		}
		captureRing = r
	}
	if cfg.PlaybackDevice == nil {
		r, err := newDeviceLessRing(cfg.DeviceLessRingFrames, cfg.FrameSamples)
		if err != nil {
			return nil, fmt.Errorf("pipeline: playback ring: %w", err)
		}
		playbackRing = r
	}

	p := &Pipeline{
		cfg:                cfg,
		sm:                 newStateMachine(cfg.OnStateChange),
		captureScratch:     make([]int16, cfg.FrameSamples),
		aecRefScratch:      make([]int16, cfg.FrameSamples),
		aecRef:             newAECReference(cfg.FrameSamples),
		encodeScratch:      make([]byte, 0, cfg.FrameSamples*2+128),
		playbackOut:        make([]int16, cfg.FrameSamples),
		captureRing:        captureRing,
		playbackRing:       playbackRing,
		playbackVolume:     1.0,
		aecEnabled:         cfg.AEC != nil,
		denoiseEnabled:     cfg.Denoiser != nil,
		agcEnabled:         cfg.AGC != nil,
		cngEnabled:         cfg.CNG != nil,
		currentStretchRate: 1.0,
	}

	logrus.WithFields(logrus.Fields{
		"function":      "pipeline.New",
		"frame_samples": cfg.FrameSamples,
		"srtp":          cfg.Protector != nil,
	}).Info("pipeline constructed")

	return p, nil
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State { return p.sm.get() }

// Start moves Stopped -> Starting -> Running. It opens no device and
// creates no codec (both are supplied to New), so there is no setup step
// that can fail here; it returns ErrInvalidTransition when the pipeline
// is not Stopped.
func (p *Pipeline) Start() error {
	if err := p.sm.transition(Starting); err != nil {
		return err
	}
	return p.sm.transition(Running)
}

// Stop moves Running -> Stopping -> Stopped, or Error -> Stopped directly.
func (p *Pipeline) Stop() error {
	cur := p.sm.get()
	if cur == Error {
		return p.sm.transition(Stopped)
	}
	if err := p.sm.transition(Stopping); err != nil {
		return err
	}
	return p.sm.transition(Stopped)
}

// Fail forces the pipeline into Error from any state, for a caller that
// detects a fatal device failure outside a tick call.
func (p *Pipeline) Fail() error {
	return p.sm.transition(Error)
}

// PushCapture feeds device-less captured PCM into the capture ring, for
// callers with no real microphone. Returns the number of samples
// actually accepted; a short write means the ring is full and the
// caller is producing faster than ticks are consuming.
func (p *Pipeline) PushCapture(samples []int16) (int, error) {
	if p.captureRing == nil {
		return 0, fmt.Errorf("pipeline: capture device is configured, PushCapture unused")
	}
	return p.captureRing.Write(samples), nil
}

// PullPlayback drains device-less played-back PCM for callers with no
// real speaker. Returns the number of samples actually filled.
func (p *Pipeline) PullPlayback(out []int16) (int, error) {
	if p.playbackRing == nil {
		return 0, fmt.Errorf("pipeline: playback device is configured, PullPlayback unused")
	}
	return p.playbackRing.Read(out), nil
}

// InvalidPacketCount returns how many inbound packets failed SRTP
// unprotect or RTP parsing and were silently dropped.
func (p *Pipeline) InvalidPacketCount() uint64 { return p.invalidPackets }

// CaptureTick runs one full capture-side tick: device/ring read through
// mute, AEC, denoise, AGC, VAD/CNG-or-encode, RTP pack, SRTP protect,
// and emit, per §4.8.2.
func (p *Pipeline) CaptureTick() error {
	if p.sm.get() != Running {
		return ErrNotRunning
	}
	p.drainIntents()

	frame := p.captureScratch
	if err := p.readCapture(frame); err != nil {
		return err
	}

	if p.muted {
		for i := range frame {
			frame[i] = 0
		}
	}

	if p.aecEnabled && p.cfg.AEC != nil {
		p.aecRef.loadInto(p.aecRefScratch)
		if err := p.cfg.AEC.Process(frame, p.aecRefScratch); err != nil {
			return fmt.Errorf("pipeline: AEC: %w", err)
		}
	}

	if p.denoiseEnabled && p.cfg.Denoiser != nil {
		if _, err := p.cfg.Denoiser.Process(frame); err != nil {
			return fmt.Errorf("pipeline: denoiser: %w", err)
		}
	}

	voiced := true
	if p.cfg.VAD != nil {
		result, err := p.cfg.VAD.Process(frame)
		if err != nil {
			return fmt.Errorf("pipeline: VAD: %w", err)
		}
		voiced = result.IsSpeech
	}

	if p.agcEnabled && p.cfg.AGC != nil {
		if err := p.cfg.AGC.Process(frame, voiced); err != nil {
			return fmt.Errorf("pipeline: AGC: %w", err)
		}
	}

	payload, ok, err := p.encodeOrSID(frame, voiced)
	if err != nil {
		return fmt.Errorf("pipeline: encode: %w", err)
	}
	if !ok {
		p.rtpTimestamp += uint32(len(frame))
		return nil
	}

	packet, err := p.cfg.Session.CreatePacket(payload, p.rtpTimestamp, false)
	if err != nil {
		return fmt.Errorf("pipeline: RTP pack: %w", err)
	}
	p.rtpTimestamp += uint32(len(frame))

	if p.cfg.Protector != nil {
		protected, err := p.cfg.Protector.Protect(packet)
		if err != nil {
			return fmt.Errorf("pipeline: SRTP protect: %w", err)
		}
		packet = protected
	}

	if p.cfg.Stats != nil {
		p.cfg.Stats.RecordSent(1, uint64(len(packet)))
	}

	return p.cfg.EncodedOut(packet)
}

func (p *Pipeline) readCapture(frame []int16) error {
	if p.cfg.CaptureDevice != nil {
		n, err := p.cfg.CaptureDevice.Read(frame)
		if err != nil {
			return fmt.Errorf("pipeline: capture device: %w", err)
		}
		for i := n; i < len(frame); i++ {
			frame[i] = 0
		}
		return nil
	}
	n := p.captureRing.Read(frame)
	for i := n; i < len(frame); i++ {
		frame[i] = 0
	}
	return nil
}

// encodeOrSID implements capture tick step 6: encode PCM normally, or,
// if CNG is enabled and the frame is non-speech, emit a SID descriptor
// instead. ok is false only when encoding itself failed; every silent or
// voiced frame otherwise produces exactly one payload.
func (p *Pipeline) encodeOrSID(frame []int16, voiced bool) ([]byte, bool, error) {
	if p.cngEnabled && p.cfg.CNG != nil && p.cfg.VAD != nil && !voiced {
		level := frameLevelDB(frame)
		p.encodeScratch = append(p.encodeScratch[:0], frameTagSID, sidLevelByte(level))
		return p.encodeScratch, true, nil
	}

	encoded, err := p.cfg.Codec.Encode(frame)
	if err != nil {
		return nil, false, err
	}
	p.encodeScratch = append(p.encodeScratch[:0], frameTagAudio)
	p.encodeScratch = append(p.encodeScratch, encoded...)
	return p.encodeScratch, true, nil
}

// PlaybackTick runs one full playback-side tick: jitter buffer get,
// decode-or-conceal-or-CNG, post-DSP, volume, AEC reference capture,
// device/ring write, and playout-rate check, per §4.8.3.
func (p *Pipeline) PlaybackTick() error {
	if p.sm.get() != Running {
		return ErrNotRunning
	}

	out := p.playbackOut
	result := p.cfg.Jitter.Get()

	if result.Status == jitter.StatusLost {
		copy(out, p.cfg.PLC.Conceal(len(out)))
	} else {
		if err := p.decodeFrame(result.Payload, out); err != nil {
			return fmt.Errorf("pipeline: decode: %w", err)
		}
	}

	if p.cfg.Equalizer != nil {
		if err := p.cfg.Equalizer.Process(out); err != nil {
			return fmt.Errorf("pipeline: equalizer: %w", err)
		}
	}
	if p.denoiseEnabled && p.cfg.Denoiser != nil {
		if _, err := p.cfg.Denoiser.Process(out); err != nil {
			return fmt.Errorf("pipeline: denoiser: %w", err)
		}
	}
	if p.cfg.Compressor != nil {
		if err := p.cfg.Compressor.Process(out, nil); err != nil {
			return fmt.Errorf("pipeline: compressor: %w", err)
		}
	}

	applyVolume(out, p.playbackVolume)

	p.aecRef.store(out)

	if err := p.writePlayback(out); err != nil {
		return err
	}

	if p.cfg.Jitter != nil {
		rate := p.cfg.Jitter.GetPlayoutRate(0.02)
		const deadBand = 0.01
		if rate-p.currentStretchRate > deadBand || p.currentStretchRate-rate > deadBand {
			p.currentStretchRate = rate
		}
	}

	return nil
}

func (p *Pipeline) decodeFrame(payload []byte, out []int16) error {
	if len(payload) == 0 {
		for i := range out {
			out[i] = 0
		}
		return nil
	}

	switch payload[0] {
	case frameTagSID:
		level := sidLevelFromByte(payload[1])
		if p.cfg.CNG != nil {
			if err := p.cfg.CNG.SetLevel(level); err != nil {
				return err
			}
			return p.cfg.CNG.Process(out)
		}
		for i := range out {
			out[i] = 0
		}
		return nil
	default:
		pcm, err := p.cfg.Codec.Decode(payload[1:])
		if err != nil {
			return err
		}
		n := copy(out, pcm)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		p.cfg.PLC.UpdateGoodFrame(out)
		return nil
	}
}

func (p *Pipeline) writePlayback(frame []int16) error {
	if p.cfg.PlaybackDevice != nil {
		return p.cfg.PlaybackDevice.Write(frame)
	}
	p.playbackRing.Write(frame)
	return nil
}

// ReceivePacket implements network ingress per §4.8.4: SRTP unprotect,
// fail-silent RTP parse, then forward to the jitter buffer.
func (p *Pipeline) ReceivePacket(data []byte) error {
	if p.cfg.Protector != nil {
		unprotected, err := p.cfg.Protector.Unprotect(data)
		if err != nil {
			p.invalidPackets++
			return nil
		}
		data = unprotected
	}

	parsed, accepted, err := p.cfg.Session.ReceivePacketParsed(data)
	if err != nil {
		p.invalidPackets++
		return nil
	}
	if !accepted {
		return nil
	}

	if p.cfg.Stats != nil {
		p.cfg.Stats.RecordReceived(1, uint64(len(data)))
	}

	if consumed, err := p.telephoneEventFromPacket(parsed.PayloadType, parsed.Payload); consumed {
		if err != nil {
			p.invalidPackets++
		}
		return nil
	}

	p.cfg.Jitter.Put(parsed.Payload, parsed.Timestamp, parsed.SequenceNumber, parsed.Marker)
	return nil
}

func applyVolume(samples []int16, gain float64) {
	for i, s := range samples {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		samples[i] = int16(v)
	}
}

func frameLevelDB(frame []int16) float64 {
	var sumSq float64
	for _, s := range frame {
		v := float64(s)
		sumSq += v * v
	}
	if len(frame) == 0 || sumSq == 0 {
		return -90
	}
	rms := sumSq / float64(len(frame))
	return 10 * math.Log10(rms/(32768.0*32768.0))
}

// sidLevelByte and sidLevelFromByte encode a dBFS noise level into a
// single byte, matching RFC 3389's one-byte-per-band level encoding
// closely enough for this pipeline's single-band comfort noise.
func sidLevelByte(levelDB float64) byte {
	if levelDB > 0 {
		levelDB = 0
	}
	if levelDB < -127 {
		levelDB = -127
	}
	return byte(-levelDB)
}

func sidLevelFromByte(b byte) float64 {
	return -float64(b)
}
