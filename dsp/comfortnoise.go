package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// ComfortNoiseConfig configures synthetic comfort noise generation, so
// silence-suppressed gaps don't sound unnaturally dead. It carries a
// single overall level, as in an RFC 3389 SID (Silence Insertion
// Descriptor); no per-band spectral information is configured.
type ComfortNoiseConfig struct {
	// NoiseLevelDB is the target RMS level of the generated noise,
	// relative to full scale.
	NoiseLevelDB float64
	// Seed makes generation deterministic for tests; two generators with
	// the same seed produce identical output.
	Seed uint32
}

func (c ComfortNoiseConfig) validate() error {
	if c.NoiseLevelDB > 0 {
		return fmt.Errorf("%w: comfort noise level must be <= 0 dBFS", ErrInvalidParam)
	}
	return nil
}

// ComfortNoiseGenerator synthesizes comfort noise matching a target
// level using a seeded linear-congruential generator shaped by a one-pole
// low-pass, so consecutive SID-driven frames sound continuous rather
// than like independent bursts of white noise.
type ComfortNoiseGenerator struct {
	cfg       ComfortNoiseConfig
	amplitude float64
	state     uint32
	lpState   float64
	closed    bool
}

// NewComfortNoiseGenerator constructs a ComfortNoiseGenerator block.
func NewComfortNoiseGenerator(cfg ComfortNoiseConfig) (*ComfortNoiseGenerator, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewComfortNoiseGenerator", "error": err.Error()}).Error("comfort noise config rejected")
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 0x2545F491
	}
	amplitude := dbToLinear(cfg.NoiseLevelDB) * 32768.0
	return &ComfortNoiseGenerator{cfg: cfg, amplitude: amplitude, state: seed}, nil
}

// Process fills samples with synthesized comfort noise, overwriting any
// existing contents.
func (g *ComfortNoiseGenerator) Process(samples []int16) error {
	if g == nil || g.closed {
		return ErrNotInitialized
	}
	for i := range samples {
		g.state = g.state*1664525 + 1013904223
		white := (float64(g.state>>8) / float64(1<<24)) * 2 - 1 // -1..1
		g.lpState += (white - g.lpState) * 0.5
		samples[i] = clampInt16(g.lpState * g.amplitude)
	}
	return nil
}

// SetLevel updates the target noise level in dBFS, for when a SID update
// reports a changed background noise level mid-call.
func (g *ComfortNoiseGenerator) SetLevel(levelDB float64) error {
	if g == nil || g.closed {
		return ErrNotInitialized
	}
	if levelDB > 0 {
		return fmt.Errorf("%w: comfort noise level must be <= 0 dBFS", ErrInvalidParam)
	}
	g.amplitude = dbToLinear(levelDB) * 32768.0
	return nil
}

// Reset restores the low-pass shaping state and PRNG seed, keeping the
// configured level.
func (g *ComfortNoiseGenerator) Reset() error {
	if g == nil || g.closed {
		return ErrNotInitialized
	}
	seed := g.cfg.Seed
	if seed == 0 {
		seed = 0x2545F491
	}
	g.state = seed
	g.lpState = 0
	return nil
}

// Close marks the block unusable.
func (g *ComfortNoiseGenerator) Close() error {
	if g == nil || g.closed {
		return ErrNotInitialized
	}
	g.closed = true
	return nil
}

func dbToLinear(db float64) float64 {
	if db <= -120 {
		return 0
	}
	return math.Pow(10, db/20)
}
