package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// DenoiserConfig configures stationary-noise suppression.
type DenoiserConfig struct {
	SampleRate uint32

	// Aggressiveness in [0,1] scales how much of the estimated noise
	// floor is subtracted from the envelope; 0 passes audio through
	// unchanged, 1 subtracts the full estimated floor.
	Aggressiveness float64

	// NoiseAdaptRate blends each non-speech frame's mean magnitude into
	// the tracked noise floor.
	NoiseAdaptRate float64
}

// DefaultDenoiserConfig returns moderate suppression settings.
func DefaultDenoiserConfig(sampleRate uint32) DenoiserConfig {
	return DenoiserConfig{SampleRate: sampleRate, Aggressiveness: 0.7, NoiseAdaptRate: 0.02}
}

func (c DenoiserConfig) validate() error {
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: denoiser sample rate must be > 0", ErrInvalidParam)
	}
	if c.Aggressiveness < 0 || c.Aggressiveness > 1 {
		return fmt.Errorf("%w: denoiser aggressiveness must be in [0,1]", ErrInvalidParam)
	}
	if c.NoiseAdaptRate <= 0 || c.NoiseAdaptRate >= 1 {
		return fmt.Errorf("%w: denoiser noise adapt rate must be in (0,1)", ErrInvalidParam)
	}
	return nil
}

// Denoiser performs time-domain stationary-noise reduction: it tracks a
// slowly adapting noise-floor envelope and applies spectral-subtraction
// style gain reduction, one smoothed gain per frame, without an FFT. It reports a
// speech probability derived from the same envelope so callers that need
// both a denoiser and a VAD can share one estimate.
type Denoiser struct {
	cfg DenoiserConfig

	noiseEnvelope float64
	smoothedGain  float64
	closed        bool
}

// NewDenoiser constructs a Denoiser block.
func NewDenoiser(cfg DenoiserConfig) (*Denoiser, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewDenoiser", "error": err.Error()}).Error("denoiser config rejected")
		return nil, err
	}
	return &Denoiser{cfg: cfg, smoothedGain: 1.0}, nil
}

// Process reduces stationary noise in samples in place and returns the
// estimated speech probability for the frame, 0..1.
func (d *Denoiser) Process(samples []int16) (float64, error) {
	if d == nil || d.closed {
		return 0, ErrNotInitialized
	}
	if len(samples) == 0 {
		return 0, nil
	}

	envelope := frameEnvelope(samples)
	if d.noiseEnvelope == 0 {
		d.noiseEnvelope = envelope
	}

	var speechProb float64
	if envelope > d.noiseEnvelope*3 {
		speechProb = 1.0
	} else {
		d.noiseEnvelope += (envelope - d.noiseEnvelope) * d.cfg.NoiseAdaptRate
		if envelope > 1e-9 {
			speechProb = math.Min(1.0, envelope/(d.noiseEnvelope*3))
		}
	}

	targetGain := 1.0
	if envelope > 1e-9 {
		subtracted := envelope - d.cfg.Aggressiveness*d.noiseEnvelope
		if subtracted < 0 {
			subtracted = 0
		}
		targetGain = subtracted / envelope
	}
	// Smooth the gain across frames to avoid musical-noise artifacts
	// from gain jumping frame to frame.
	d.smoothedGain += (targetGain - d.smoothedGain) * 0.3

	for i, s := range samples {
		samples[i] = clampInt16(float64(s) * d.smoothedGain)
	}

	return speechProb, nil
}

// Reset clears the adapted noise floor and gain, keeping configuration.
func (d *Denoiser) Reset() error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	d.noiseEnvelope = 0
	d.smoothedGain = 1.0
	return nil
}

// Close marks the block unusable.
func (d *Denoiser) Close() error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	d.closed = true
	return nil
}

func frameEnvelope(samples []int16) float64 {
	var sum float64
	for _, s := range samples {
		v := math.Abs(float64(s))
		sum += v
	}
	return sum / float64(len(samples))
}
