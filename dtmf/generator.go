package dtmf

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// digitFrequencies maps a valid DTMF digit to its (row, col) tone pair.
var digitFrequencies = map[byte][2]float64{
	'1': {697, 1209}, '2': {697, 1336}, '3': {697, 1477}, 'A': {697, 1633},
	'4': {770, 1209}, '5': {770, 1336}, '6': {770, 1477}, 'B': {770, 1633},
	'7': {852, 1209}, '8': {852, 1336}, '9': {852, 1477}, 'C': {852, 1633},
	'*': {941, 1209}, '0': {941, 1336}, '#': {941, 1477}, 'D': {941, 1633},
}

// IsValidDigit reports whether b is a recognized DTMF keypad symbol.
func IsValidDigit(b byte) bool {
	_, ok := digitFrequencies[b]
	return ok
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	SampleRate uint32
	Amplitude  float64 // 0-1, combined peak amplitude budget for the two tones
}

// DefaultGeneratorConfig returns a generator configuration using half
// full-scale amplitude, conventional for a comfortable playback level.
func DefaultGeneratorConfig(sampleRate uint32) GeneratorConfig {
	return GeneratorConfig{SampleRate: sampleRate, Amplitude: 0.5}
}

// Generator synthesizes DTMF tone pairs via two independent phase
// accumulators, one per tone in the pressed digit's row/column pair.
type Generator struct {
	cfg GeneratorConfig

	active     bool
	rowPhase   float64
	colPhase   float64
	rowStep    float64
	colStep    float64
}

// NewGenerator constructs a Generator for the given configuration.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.SampleRate == 0 {
		return nil, fmt.Errorf("dtmf: sample rate must be positive")
	}
	if cfg.Amplitude <= 0 || cfg.Amplitude > 1 {
		return nil, fmt.Errorf("dtmf: amplitude must be in (0, 1], got %f", cfg.Amplitude)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "dtmf.NewGenerator",
		"sample_rate": cfg.SampleRate,
	}).Debug("DTMF generator created")

	return &Generator{cfg: cfg}, nil
}

// StartDigit begins generating the tone pair for digit. It returns an error
// if digit is not a recognized DTMF symbol.
func (g *Generator) StartDigit(digit byte) error {
	freqs, ok := digitFrequencies[digit]
	if !ok {
		return fmt.Errorf("dtmf: %q is not a valid DTMF digit", digit)
	}
	g.rowStep = 2 * math.Pi * freqs[0] / float64(g.cfg.SampleRate)
	g.colStep = 2 * math.Pi * freqs[1] / float64(g.cfg.SampleRate)
	g.rowPhase = 0
	g.colPhase = 0
	g.active = true
	return nil
}

// Stop silences the generator; subsequent Generate calls produce silence
// until StartDigit is called again.
func (g *Generator) Stop() {
	g.active = false
}

// Active reports whether a tone pair is currently being generated.
func (g *Generator) Active() bool {
	return g.active
}

// Generate fills out with the next len(out) samples of the current tone
// pair, or silence if no digit is active. Each tone contributes half of
// the configured amplitude so the combined peak stays within budget.
func (g *Generator) Generate(out []int16) {
	if !g.active {
		for i := range out {
			out[i] = 0
		}
		return
	}

	half := g.cfg.Amplitude / 2 * 32767.0
	for i := range out {
		v := half*math.Sin(g.rowPhase) + half*math.Sin(g.colPhase)
		out[i] = int16(v)

		g.rowPhase += g.rowStep
		g.colPhase += g.colStep
		if g.rowPhase >= 2*math.Pi {
			g.rowPhase -= 2 * math.Pi
		}
		if g.colPhase >= 2*math.Pi {
			g.colPhase -= 2 * math.Pi
		}
	}
}

// GenerateDigit is a convenience that synthesizes a single digit press of
// durationMS followed by gapMS of silence, returning the full PCM burst.
func (g *Generator) GenerateDigit(digit byte, durationMS, gapMS float64) ([]int16, error) {
	if err := g.StartDigit(digit); err != nil {
		return nil, err
	}
	toneSamples := int(durationMS * float64(g.cfg.SampleRate) / 1000.0)
	gapSamples := int(gapMS * float64(g.cfg.SampleRate) / 1000.0)

	out := make([]int16, toneSamples+gapSamples)
	g.Generate(out[:toneSamples])
	g.Stop()
	g.Generate(out[toneSamples:])
	return out, nil
}
