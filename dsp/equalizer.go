package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// BandType selects a biquad filter topology, following the RBJ Audio EQ
// Cookbook formulas.
type BandType int

const (
	BandPeaking BandType = iota
	BandLowShelf
	BandHighShelf
	BandLowPass
	BandHighPass
)

// Band configures one stage of the equalizer cascade.
type Band struct {
	Type        BandType
	FrequencyHz float64
	GainDB      float64 // ignored by LowPass/HighPass
	Q           float64
	Enabled     bool
}

// EqualizerConfig configures a cascade of biquad bands applied in order.
type EqualizerConfig struct {
	SampleRate uint32
	Bands      []Band
}

func (c EqualizerConfig) validate() error {
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: equalizer sample rate must be > 0", ErrInvalidParam)
	}
	nyquist := float64(c.SampleRate) / 2
	for i, b := range c.Bands {
		if b.FrequencyHz <= 0 || b.FrequencyHz >= nyquist {
			return fmt.Errorf("%w: equalizer band %d frequency %f outside (0,%f)", ErrInvalidParam, i, b.FrequencyHz, nyquist)
		}
		if b.Q <= 0 {
			return fmt.Errorf("%w: equalizer band %d Q must be > 0", ErrInvalidParam, i)
		}
	}
	return nil
}

// biquad holds the coefficients and direct-form-II-transposed state for
// one second-order section.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

func (f *biquad) reset() {
	f.z1, f.z2 = 0, 0
}

func newBiquad(b Band, sampleRate uint32) biquad {
	w0 := 2 * math.Pi * b.FrequencyHz / float64(sampleRate)
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * b.Q)

	var b0, b1, b2, a0, a1, a2 float64

	switch b.Type {
	case BandLowPass:
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case BandHighPass:
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case BandLowShelf:
		a := math.Pow(10, b.GainDB/40)
		sq := math.Sqrt(a) * alpha * 2
		b0 = a * ((a + 1) - (a-1)*cosW0 + sq)
		b1 = 2 * a * ((a - 1) - (a+1)*cosW0)
		b2 = a * ((a + 1) - (a-1)*cosW0 - sq)
		a0 = (a + 1) + (a-1)*cosW0 + sq
		a1 = -2 * ((a - 1) + (a+1)*cosW0)
		a2 = (a + 1) + (a-1)*cosW0 - sq
	case BandHighShelf:
		a := math.Pow(10, b.GainDB/40)
		sq := math.Sqrt(a) * alpha * 2
		b0 = a * ((a + 1) + (a-1)*cosW0 + sq)
		b1 = -2 * a * ((a - 1) + (a+1)*cosW0)
		b2 = a * ((a + 1) + (a-1)*cosW0 - sq)
		a0 = (a + 1) - (a-1)*cosW0 + sq
		a1 = 2 * ((a - 1) - (a+1)*cosW0)
		a2 = (a + 1) - (a-1)*cosW0 - sq
	default: // BandPeaking
		a := math.Pow(10, b.GainDB/40)
		b0 = 1 + alpha*a
		b1 = -2 * cosW0
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cosW0
		a2 = 1 - alpha/a
	}

	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// Equalizer applies a cascade of biquad bands to PCM samples in place.
type Equalizer struct {
	cfg     EqualizerConfig
	filters []biquad
	closed  bool
}

// NewEqualizer constructs an Equalizer block, precomputing biquad
// coefficients for every enabled band.
func NewEqualizer(cfg EqualizerConfig) (*Equalizer, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewEqualizer", "error": err.Error()}).Error("equalizer config rejected")
		return nil, err
	}
	eq := &Equalizer{cfg: cfg}
	for _, b := range cfg.Bands {
		if !b.Enabled {
			continue
		}
		eq.filters = append(eq.filters, newBiquad(b, cfg.SampleRate))
	}
	return eq, nil
}

// Process filters samples in place through every enabled band, in order.
func (eq *Equalizer) Process(samples []int16) error {
	if eq == nil || eq.closed {
		return ErrNotInitialized
	}
	for i, s := range samples {
		x := float64(s)
		for fi := range eq.filters {
			x = eq.filters[fi].process(x)
		}
		samples[i] = clampInt16(x)
	}
	return nil
}

// Reset clears the filter memory of every band without recomputing
// coefficients.
func (eq *Equalizer) Reset() error {
	if eq == nil || eq.closed {
		return ErrNotInitialized
	}
	for i := range eq.filters {
		eq.filters[i].reset()
	}
	return nil
}

// Close marks the block unusable.
func (eq *Equalizer) Close() error {
	if eq == nil || eq.closed {
		return ErrNotInitialized
	}
	eq.closed = true
	return nil
}
