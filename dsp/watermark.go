package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// WatermarkConfig configures spread-spectrum watermark embedding and
// detection. Embedder and detector must share the same Seed and
// ChipsPerBit for detection to correlate.
type WatermarkConfig struct {
	// Seed derives the pseudorandom chip sequence; it is the shared
	// secret between embedder and detector.
	Seed uint64
	// ChipsPerBit is how many samples carry one payload bit, trading
	// robustness for payload rate.
	ChipsPerBit int
	// AmplitudeDB sets the watermark level relative to full scale, kept
	// low enough to stay perceptually inaudible under voice content.
	AmplitudeDB float64
}

// DefaultWatermarkConfig returns settings for an inaudible, moderately
// robust watermark.
func DefaultWatermarkConfig(seed uint64) WatermarkConfig {
	return WatermarkConfig{Seed: seed, ChipsPerBit: 32, AmplitudeDB: -30}
}

func (c WatermarkConfig) validate() error {
	if c.ChipsPerBit < 1 {
		return fmt.Errorf("%w: watermark chips per bit must be >= 1", ErrInvalidParam)
	}
	if c.AmplitudeDB > 0 {
		return fmt.Errorf("%w: watermark amplitude must be <= 0 dBFS", ErrInvalidParam)
	}
	return nil
}

// chipGenerator produces a deterministic +-1 pseudorandom sequence from
// Seed, shared identically by embedder and detector.
type chipGenerator struct {
	state uint64
}

func newChipGenerator(seed uint64) chipGenerator {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return chipGenerator{state: seed}
}

func (g *chipGenerator) next() float64 {
	// splitmix64
	g.state += 0x9E3779B97F4A7C15
	z := g.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	if z&1 == 0 {
		return 1
	}
	return -1
}

// WatermarkEmbedder adds a spread-spectrum payload to PCM audio by
// adding a low-amplitude chip sequence per bit, inverted for a 0 bit and
// upright for a 1 bit.
type WatermarkEmbedder struct {
	cfg       WatermarkConfig
	amplitude float64
	chipGen   chipGenerator
	closed    bool
}

// NewWatermarkEmbedder constructs a WatermarkEmbedder block.
func NewWatermarkEmbedder(cfg WatermarkConfig) (*WatermarkEmbedder, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewWatermarkEmbedder", "error": err.Error()}).Error("watermark config rejected")
		return nil, err
	}
	return &WatermarkEmbedder{
		cfg:       cfg,
		amplitude: dbToLinear(cfg.AmplitudeDB) * 32768.0,
		chipGen:   newChipGenerator(cfg.Seed),
	}, nil
}

// Embed adds payload, a sequence of bits packed one per byte (0 or
// non-zero), to samples in place. samples must hold at least
// len(payload)*ChipsPerBit entries; bits beyond that capacity are
// silently dropped by returning early, matching the no-allocation
// contract rather than growing the buffer.
func (w *WatermarkEmbedder) Embed(samples []int16, payload []byte) error {
	if w == nil || w.closed {
		return ErrNotInitialized
	}
	pos := 0
	for _, bit := range payload {
		sign := -1.0
		if bit != 0 {
			sign = 1.0
		}
		for c := 0; c < w.cfg.ChipsPerBit; c++ {
			if pos >= len(samples) {
				return nil
			}
			chip := w.chipGen.next()
			samples[pos] = clampInt16(float64(samples[pos]) + sign*chip*w.amplitude)
			pos++
		}
	}
	return nil
}

// Reset rewinds the chip generator to its initial seed state, so the
// next Embed call reproduces the same sequence as a fresh embedder.
func (w *WatermarkEmbedder) Reset() error {
	if w == nil || w.closed {
		return ErrNotInitialized
	}
	w.chipGen = newChipGenerator(w.cfg.Seed)
	return nil
}

// Close marks the block unusable.
func (w *WatermarkEmbedder) Close() error {
	if w == nil || w.closed {
		return ErrNotInitialized
	}
	w.closed = true
	return nil
}

// WatermarkDetection reports the outcome of a WatermarkDetector.Detect
// call.
type WatermarkDetection struct {
	Detected    bool
	Confidence  float64
	Payload     []byte
	Correlation float64
}

// WatermarkDetector recovers a payload embedded by WatermarkEmbedder by
// correlating each bit's chip window against the same pseudorandom
// sequence.
type WatermarkDetector struct {
	cfg     WatermarkConfig
	chipGen chipGenerator
	closed  bool
}

// NewWatermarkDetector constructs a WatermarkDetector block. cfg must
// match the embedder's Seed, ChipsPerBit and AmplitudeDB for correlation
// to succeed.
func NewWatermarkDetector(cfg WatermarkConfig) (*WatermarkDetector, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewWatermarkDetector", "error": err.Error()}).Error("watermark config rejected")
		return nil, err
	}
	return &WatermarkDetector{cfg: cfg, chipGen: newChipGenerator(cfg.Seed)}, nil
}

// Detect correlates samples against the expected chip sequence and
// recovers payloadBits bits. It does not modify samples.
func (w *WatermarkDetector) Detect(samples []int16, payloadBits int) (WatermarkDetection, error) {
	if w == nil || w.closed {
		return WatermarkDetection{}, ErrNotInitialized
	}

	payload := make([]byte, 0, payloadBits)
	var totalCorrelation float64
	pos := 0

	for b := 0; b < payloadBits; b++ {
		var sum float64
		n := 0
		for c := 0; c < w.cfg.ChipsPerBit; c++ {
			if pos >= len(samples) {
				break
			}
			chip := w.chipGen.next()
			sum += float64(samples[pos]) * chip
			pos++
			n++
		}
		if n == 0 {
			break
		}
		correlation := sum / float64(n)
		totalCorrelation += math.Abs(correlation)
		bit := byte(0)
		if correlation > 0 {
			bit = 1
		}
		payload = append(payload, bit)
	}

	avgCorrelation := 0.0
	if len(payload) > 0 {
		avgCorrelation = totalCorrelation / float64(len(payload))
	}
	// Normalize against the embed amplitude so confidence is roughly
	// 0..1 regardless of AmplitudeDB.
	amplitude := dbToLinear(w.cfg.AmplitudeDB) * 32768.0
	confidence := 0.0
	if amplitude > 0 {
		confidence = math.Min(1.0, avgCorrelation/amplitude)
	}

	return WatermarkDetection{
		Detected:    len(payload) == payloadBits && confidence > 0.3,
		Confidence:  confidence,
		Payload:     payload,
		Correlation: avgCorrelation,
	}, nil
}

// Reset rewinds the chip generator to its initial seed state.
func (w *WatermarkDetector) Reset() error {
	if w == nil || w.closed {
		return ErrNotInitialized
	}
	w.chipGen = newChipGenerator(w.cfg.Seed)
	return nil
}

// Close marks the block unusable.
func (w *WatermarkDetector) Close() error {
	if w == nil || w.closed {
		return ErrNotInitialized
	}
	w.closed = true
	return nil
}
