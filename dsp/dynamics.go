package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// DynamicsMode selects which dynamics-processing curve Dynamics applies.
type DynamicsMode int

const (
	// DynamicsCompressor reduces gain above the threshold by Ratio:1.
	DynamicsCompressor DynamicsMode = iota
	// DynamicsLimiter is a compressor with an effectively infinite ratio:
	// level above the threshold is clamped rather than scaled down.
	DynamicsLimiter
	// DynamicsGate mutes the signal when its envelope falls below the
	// threshold.
	DynamicsGate
	// DynamicsExpander reduces gain below the threshold by Ratio:1,
	// widening dynamic range instead of compressing it.
	DynamicsExpander
)

// DetectorType selects how Dynamics measures the input envelope.
type DetectorType int

const (
	DetectorPeak DetectorType = iota
	DetectorRMS
	DetectorTruePeak
)

// DynamicsConfig configures a compressor, limiter, gate, or expander.
type DynamicsConfig struct {
	Mode     DynamicsMode
	Detector DetectorType

	ThresholdDB float64
	Ratio       float64 // unused by DynamicsLimiter
	KneeDB      float64 // width of the soft-knee region around ThresholdDB

	AttackMS  float64
	ReleaseMS float64
	MakeupDB  float64

	SampleRate uint32
}

// DefaultDynamicsConfig returns settings typical of a voice bus
// compressor: moderate ratio, fast attack, musical release.
func DefaultDynamicsConfig(mode DynamicsMode, sampleRate uint32) DynamicsConfig {
	return DynamicsConfig{
		Mode:        mode,
		Detector:    DetectorRMS,
		ThresholdDB: -18,
		Ratio:       4,
		KneeDB:      6,
		AttackMS:    5,
		ReleaseMS:   80,
		MakeupDB:    0,
		SampleRate:  sampleRate,
	}
}

func (c DynamicsConfig) validate() error {
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: dynamics sample rate must be > 0", ErrInvalidParam)
	}
	if c.Mode != DynamicsLimiter && c.Ratio < 1 {
		return fmt.Errorf("%w: dynamics ratio must be >= 1", ErrInvalidParam)
	}
	if c.KneeDB < 0 {
		return fmt.Errorf("%w: dynamics knee must be >= 0", ErrInvalidParam)
	}
	if c.AttackMS < 0 || c.ReleaseMS < 0 {
		return fmt.Errorf("%w: dynamics attack/release must be >= 0", ErrInvalidParam)
	}
	return nil
}

// Dynamics implements a compressor, limiter, gate, or expander, selected
// by DynamicsConfig.Mode, sharing one envelope follower and gain-curve
// evaluator. An optional sidechain signal can drive the envelope
// detector independently of the signal being processed.
type Dynamics struct {
	cfg DynamicsConfig

	envelopeDB float64
	attackCoef float64
	releaseCoef float64
	closed     bool
}

// NewDynamics constructs a Dynamics block.
func NewDynamics(cfg DynamicsConfig) (*Dynamics, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewDynamics", "error": err.Error()}).Error("dynamics config rejected")
		return nil, err
	}
	d := &Dynamics{cfg: cfg, envelopeDB: -120}
	d.attackCoef = timeConstantCoef(cfg.AttackMS, cfg.SampleRate)
	d.releaseCoef = timeConstantCoef(cfg.ReleaseMS, cfg.SampleRate)
	return d, nil
}

func timeConstantCoef(ms float64, sampleRate uint32) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (ms / 1000.0 * float64(sampleRate)))
}

// Process applies the configured dynamics curve to samples in place. If
// sidechain is non-nil it must be the same length as samples and drives
// the envelope detector in place of samples; pass nil to detect from
// samples directly.
func (d *Dynamics) Process(samples []int16, sidechain []int16) error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	if sidechain != nil && len(sidechain) != len(samples) {
		return fmt.Errorf("%w: dynamics sidechain length mismatch", ErrInvalidParam)
	}
	detect := samples
	if sidechain != nil {
		detect = sidechain
	}

	for i := range samples {
		level := levelDB(d.cfg.Detector, detect, i)

		if level > d.envelopeDB {
			d.envelopeDB = blend(d.envelopeDB, level, d.attackCoef)
		} else {
			d.envelopeDB = blend(d.envelopeDB, level, d.releaseCoef)
		}

		gainDB := d.gainReductionDB(d.envelopeDB) + d.cfg.MakeupDB
		gain := math.Pow(10, gainDB/20)
		samples[i] = clampInt16(float64(samples[i]) * gain)
	}

	return nil
}

func blend(prev, target, coef float64) float64 {
	return coef*prev + (1-coef)*target
}

func levelDB(detector DetectorType, samples []int16, i int) float64 {
	switch detector {
	case DetectorPeak, DetectorTruePeak:
		v := math.Abs(float64(samples[i]) / 32768.0)
		if v < 1e-9 {
			return -120
		}
		return 20 * math.Log10(v)
	default: // DetectorRMS over a short trailing window
		start := i - 31
		if start < 0 {
			start = 0
		}
		var sumSquares float64
		n := 0
		for j := start; j <= i; j++ {
			v := float64(samples[j]) / 32768.0
			sumSquares += v * v
			n++
		}
		rms := math.Sqrt(sumSquares / float64(n))
		if rms < 1e-9 {
			return -120
		}
		return 20 * math.Log10(rms)
	}
}

// gainReductionDB evaluates the configured curve at the given envelope
// level and returns the gain, in dB, to apply (negative attenuates,
// positive boosts, 0 is unity).
func (d *Dynamics) gainReductionDB(levelDB float64) float64 {
	t := d.cfg.ThresholdDB
	knee := d.cfg.KneeDB

	switch d.cfg.Mode {
	case DynamicsCompressor, DynamicsLimiter:
		ratio := d.cfg.Ratio
		if d.cfg.Mode == DynamicsLimiter {
			ratio = 1000
		}
		if knee > 0 && levelDB > t-knee/2 && levelDB < t+knee/2 {
			x := levelDB - t + knee/2
			over := x * x / (2 * knee) * (1/ratio - 1)
			return over
		}
		if levelDB <= t {
			return 0
		}
		over := levelDB - t
		return over/ratio - over

	case DynamicsExpander:
		if levelDB >= t {
			return 0
		}
		under := t - levelDB
		return -(under*d.cfg.Ratio - under)

	case DynamicsGate:
		if levelDB >= t {
			return 0
		}
		return -120

	default:
		return 0
	}
}

// Reset clears the envelope follower, keeping configuration.
func (d *Dynamics) Reset() error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	d.envelopeDB = -120
	return nil
}

// Close marks the block unusable.
func (d *Dynamics) Close() error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	d.closed = true
	return nil
}
