package dsp

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// AECConfig configures acoustic echo cancellation.
type AECConfig struct {
	// FilterTaps is the adaptive filter length, in samples, and bounds
	// the longest echo tail the canceller can model.
	FilterTaps int

	// StepSize controls NLMS adaptation speed; larger converges faster
	// but is less stable against double-talk.
	StepSize float64

	// Regularization avoids division by a near-zero reference energy.
	Regularization float64
}

// DefaultAECConfig returns settings for an 8ms tail at 8kHz (64 taps).
func DefaultAECConfig() AECConfig {
	return AECConfig{FilterTaps: 64, StepSize: 0.3, Regularization: 1e-6}
}

func (c AECConfig) validate() error {
	if c.FilterTaps <= 0 {
		return fmt.Errorf("%w: aec filter taps must be > 0", ErrInvalidParam)
	}
	if c.StepSize <= 0 || c.StepSize > 2 {
		return fmt.Errorf("%w: aec step size must be in (0,2]", ErrInvalidParam)
	}
	if c.Regularization <= 0 {
		return fmt.Errorf("%w: aec regularization must be > 0", ErrInvalidParam)
	}
	return nil
}

// AEC cancels acoustic echo from a captured (near-end) signal given the
// far-end reference that produced it, using a normalized LMS adaptive
// filter. All filter state is preallocated at construction; Process never
// allocates.
type AEC struct {
	cfg AECConfig

	weights []float64
	history []float64 // circular buffer of the most recent far-end samples
	pos     int
	closed  bool
}

// NewAEC constructs an AEC block.
func NewAEC(cfg AECConfig) (*AEC, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewAEC", "error": err.Error()}).Error("aec config rejected")
		return nil, err
	}
	return &AEC{
		cfg:     cfg,
		weights: make([]float64, cfg.FilterTaps),
		history: make([]float64, cfg.FilterTaps),
	}, nil
}

// Process cancels echo from captured in place using farEnd as the
// reference signal that produced the echo; both slices must be the same
// length. It returns ErrInvalidParam on a length mismatch.
func (a *AEC) Process(captured []int16, farEnd []int16) error {
	if a == nil || a.closed {
		return ErrNotInitialized
	}
	if len(captured) != len(farEnd) {
		return fmt.Errorf("%w: aec captured/farEnd length mismatch", ErrInvalidParam)
	}

	taps := len(a.weights)
	for i := range captured {
		a.history[a.pos] = float64(farEnd[i]) / 32768.0

		var estimate, energy float64
		idx := a.pos
		for t := 0; t < taps; t++ {
			x := a.history[idx]
			estimate += a.weights[t] * x
			energy += x * x
			idx--
			if idx < 0 {
				idx = taps - 1
			}
		}

		near := float64(captured[i]) / 32768.0
		err := near - estimate
		captured[i] = clampInt16(err * 32768.0)

		mu := a.cfg.StepSize * err / (energy + a.cfg.Regularization)
		idx = a.pos
		for t := 0; t < taps; t++ {
			a.weights[t] += mu * a.history[idx]
			idx--
			if idx < 0 {
				idx = taps - 1
			}
		}

		a.pos++
		if a.pos >= taps {
			a.pos = 0
		}
	}

	return nil
}

// Reset clears the adaptive filter and reference history, keeping
// configuration.
func (a *AEC) Reset() error {
	if a == nil || a.closed {
		return ErrNotInitialized
	}
	for i := range a.weights {
		a.weights[i] = 0
		a.history[i] = 0
	}
	a.pos = 0
	return nil
}

// Close marks the block unusable.
func (a *AEC) Close() error {
	if a == nil || a.closed {
		return ErrNotInitialized
	}
	a.closed = true
	return nil
}
