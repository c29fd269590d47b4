package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// AGCMode selects the gain-control strategy.
type AGCMode int

const (
	// AGCFixed applies a constant linear gain; no adaptation.
	AGCFixed AGCMode = iota
	// AGCAdaptive follows a peak envelope toward a target level, with
	// separate attack/release rates.
	AGCAdaptive
	// AGCDigital is Adaptive restricted to gain <= 1.0: it can attenuate
	// but never amplify, so it can run after a limiter without undoing it.
	AGCDigital
	// AGCLimiter applies FixedGain without adaptation, then clamps every
	// sample to a ceiling of full scale divided by MaxGain.
	AGCLimiter
)

// AGCConfig configures an AGC block.
type AGCConfig struct {
	Mode AGCMode

	// FixedGain is the linear gain used directly in AGCFixed, and the
	// starting gain for the adaptive modes.
	FixedGain float64

	// TargetLevel is the desired peak level, 0..1, for the adaptive modes.
	TargetLevel float64

	// AttackRate and ReleaseRate are linear gain deltas applied per
	// sample while moving toward the desired gain; attack must be >=
	// release so the block responds to loud transients faster than it
	// relaxes after them.
	AttackRate  float64
	ReleaseRate float64

	MinGain float64
	MaxGain float64
}

// DefaultAGCConfig returns the settings tuned for voice communication:
// comfortable listening level, fast-enough attack for speech onsets,
// slower release to avoid pumping between words.
func DefaultAGCConfig(mode AGCMode) AGCConfig {
	return AGCConfig{
		Mode:        mode,
		FixedGain:   1.0,
		TargetLevel: 0.3,
		AttackRate:  0.001,
		ReleaseRate: 0.0001,
		MinGain:     0.1,
		MaxGain:     4.0,
	}
}

func (c AGCConfig) validate() error {
	if c.MinGain < 0 || c.MaxGain < c.MinGain {
		return fmt.Errorf("%w: agc gain bounds [%f,%f]", ErrInvalidParam, c.MinGain, c.MaxGain)
	}
	if c.FixedGain < c.MinGain || c.FixedGain > c.MaxGain {
		return fmt.Errorf("%w: agc fixed gain %f outside [%f,%f]", ErrInvalidParam, c.FixedGain, c.MinGain, c.MaxGain)
	}
	if c.Mode != AGCFixed && (c.TargetLevel <= 0 || c.TargetLevel > 1.0) {
		return fmt.Errorf("%w: agc target level %f must be in (0,1]", ErrInvalidParam, c.TargetLevel)
	}
	if c.Mode != AGCFixed && (c.AttackRate < 0 || c.ReleaseRate < 0 || c.ReleaseRate > c.AttackRate) {
		return fmt.Errorf("%w: agc attack/release rates invalid", ErrInvalidParam)
	}
	return nil
}

// AGC implements automatic gain control in the Fixed, Adaptive, Digital
// and Limiter modes named by the block contract. It never raises gain on
// a frame the caller has flagged as pure noise via Process(samples, false).
type AGC struct {
	cfg         AGCConfig
	currentGain float64
	peakLevel   float64
	closed      bool
}

// NewAGC constructs an AGC block. Construction validates cfg; an invalid
// config returns ErrInvalidParam and a nil block.
func NewAGC(cfg AGCConfig) (*AGC, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewAGC", "error": err.Error()}).Error("agc config rejected")
		return nil, err
	}
	return &AGC{cfg: cfg, currentGain: cfg.FixedGain}, nil
}

// Process applies gain control to samples in place. voiced indicates whether the caller's VAD classified this frame
// as speech; when false, gain is allowed to decrease but never increase,
// so the block does not amplify noise floors during silence.
func (a *AGC) Process(samples []int16, voiced bool) error {
	if a == nil || a.closed {
		return ErrNotInitialized
	}
	if len(samples) == 0 {
		return nil
	}

	switch a.cfg.Mode {
	case AGCFixed:
		applyGain(samples, a.currentGain)
		return nil
	case AGCLimiter:
		applyGain(samples, a.currentGain)
		limitPeaks(samples, a.cfg.MaxGain)
		return nil
	}

	peak := peakLevel(samples)
	if peak > a.peakLevel {
		a.peakLevel += (peak - a.peakLevel) * 0.1
	} else {
		a.peakLevel += (peak - a.peakLevel) * 0.01
	}

	desired := a.cfg.MaxGain
	if a.peakLevel > 0.001 {
		desired = a.cfg.TargetLevel / a.peakLevel
	}
	if desired < a.cfg.MinGain {
		desired = a.cfg.MinGain
	}
	if desired > a.cfg.MaxGain {
		desired = a.cfg.MaxGain
	}
	if a.cfg.Mode == AGCDigital && desired > 1.0 {
		desired = 1.0
	}

	if !voiced && desired > a.currentGain {
		desired = a.currentGain
	}

	if desired > a.currentGain {
		a.currentGain += a.cfg.AttackRate * float64(len(samples))
		if a.currentGain > desired {
			a.currentGain = desired
		}
	} else {
		a.currentGain -= a.cfg.ReleaseRate * float64(len(samples))
		if a.currentGain < desired {
			a.currentGain = desired
		}
	}

	applyGain(samples, a.currentGain)
	return nil
}

// CurrentGain returns the linear gain currently being applied.
func (a *AGC) CurrentGain() float64 { return a.currentGain }

// Reset restores the block to its starting gain and clears the smoothed
// peak envelope, without discarding configuration.
func (a *AGC) Reset() error {
	if a == nil || a.closed {
		return ErrNotInitialized
	}
	a.currentGain = a.cfg.FixedGain
	a.peakLevel = 0
	return nil
}

// Close marks the block unusable. AGC holds no external resources.
func (a *AGC) Close() error {
	if a == nil || a.closed {
		return ErrNotInitialized
	}
	a.closed = true
	return nil
}

func peakLevel(samples []int16) float64 {
	var peak float64
	for _, s := range samples {
		v := math.Abs(float64(s) / 32768.0)
		if v > peak {
			peak = v
		}
	}
	return peak
}

func applyGain(samples []int16, gain float64) {
	for i, s := range samples {
		v := float64(s) * gain
		samples[i] = clampInt16(v)
	}
}

func limitPeaks(samples []int16, ceilingGain float64) {
	ceiling := 32767.0 / ceilingGain
	for i, s := range samples {
		v := float64(s)
		if v > ceiling {
			samples[i] = int16(ceiling)
		} else if v < -ceiling {
			samples[i] = int16(-ceiling)
		}
	}
}

func clampInt16(v float64) int16 {
	if v > 32767.0 {
		return 32767
	}
	if v < -32768.0 {
		return -32768
	}
	return int16(v)
}
