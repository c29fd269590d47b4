// Package resample converts PCM audio between sample rates.
//
// The engine's DSP chain and Opus codec expect a fixed rate (typically
// 48 kHz); capture/playback devices rarely supply exactly that rate. This
// package bridges the difference with a linear-interpolation resampler,
// which is cheap enough to run unconditionally on every frame and good
// enough for voice: no external DSP library in the dependency pack offers
// a pure-Go windowed-sinc or polyphase resampler, so this is implemented
// directly, matching the teacher codebase's own choice for the same reason.
package resample

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts PCM samples between a fixed input and output rate.
//
// It keeps one trailing sample per channel across calls so that a stream
// split across many Process calls stays continuous at the boundary,
// rather than producing an audible click every frame.
type Resampler struct {
	inputRate   uint32
	outputRate  uint32
	channels    int
	quality     int
	lastSamples []int16
	position    float64
}

// Config holds the parameters needed to construct a Resampler.
type Config struct {
	InputRate  uint32 // Hz
	OutputRate uint32 // Hz
	Channels   int    // 1 (mono) or 2 (stereo)
	Quality    int    // 0-10, 0 = default (4); validated and reported by Quality(), but the linear interpolator does not use it.
}

// New constructs a Resampler from a Config.
func New(cfg Config) (*Resampler, error) {
	if cfg.InputRate == 0 || cfg.OutputRate == 0 {
		return nil, fmt.Errorf("resample: invalid sample rates: input=%d, output=%d", cfg.InputRate, cfg.OutputRate)
	}
	if cfg.Channels < 1 || cfg.Channels > 2 {
		return nil, fmt.Errorf("resample: unsupported channel count: %d (must be 1 or 2)", cfg.Channels)
	}

	quality := cfg.Quality
	if quality == 0 {
		quality = 4
	}
	if quality < 0 || quality > 10 {
		return nil, fmt.Errorf("resample: invalid quality %d (must be 0-10)", quality)
	}

	r := &Resampler{
		inputRate:   cfg.InputRate,
		outputRate:  cfg.OutputRate,
		channels:    cfg.Channels,
		quality:     quality,
		lastSamples: make([]int16, cfg.Channels),
	}

	logrus.WithFields(logrus.Fields{
		"function":    "resample.New",
		"input_rate":  r.inputRate,
		"output_rate": r.outputRate,
		"channels":    r.channels,
		"quality":     r.quality,
	}).Info("resampler created")

	return r, nil
}

// ProcessInt16 resamples interleaved int16 PCM from InputRate to OutputRate.
//
// The output length is within ±1 frame of in_len*OutputRate/InputRate, per
// the resampler length contract; callers that need an exact upper bound
// should use CalculateOutputSize.
func (r *Resampler) ProcessInt16(input []int16) ([]int16, error) {
	if len(input) == 0 {
		return nil, nil
	}
	if len(input)%r.channels != 0 {
		return nil, fmt.Errorf("resample: input length %d not aligned to %d channels", len(input), r.channels)
	}

	if r.inputRate == r.outputRate {
		out := make([]int16, len(input))
		copy(out, input)
		return out, nil
	}

	ratio := float64(r.inputRate) / float64(r.outputRate)
	inputFrames := len(input) / r.channels
	outputFrames := int(float64(inputFrames)/ratio + 0.5)
	output := make([]int16, 0, outputFrames*r.channels)

	for frame := 0; frame < outputFrames; frame++ {
		inputIndex := int(r.position)
		frac := r.position - float64(inputIndex)

		for ch := 0; ch < r.channels; ch++ {
			output = append(output, r.interpolate(input, inputIndex, frac, ch, inputFrames))
		}
		r.position += ratio
	}

	r.advance(input, inputFrames)
	return output, nil
}

// ProcessFloat resamples interleaved float32 PCM in [-1, 1] using the same
// interpolation path as ProcessInt16, scaled through the int16 domain so
// both entry points share one code path (and one set of edge cases).
func (r *Resampler) ProcessFloat(input []float32) ([]float32, error) {
	if len(input) == 0 {
		return nil, nil
	}
	asInt16 := make([]int16, len(input))
	for i, s := range input {
		asInt16[i] = floatToInt16(s)
	}
	resampled, err := r.ProcessInt16(asInt16)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(resampled))
	for i, s := range resampled {
		out[i] = float32(s) / 32768.0
	}
	return out, nil
}

func floatToInt16(s float32) int16 {
	v := s * 32768.0
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func (r *Resampler) interpolate(input []int16, inputIndex int, frac float64, ch, inputFrames int) int16 {
	switch {
	case inputIndex < 0:
		if len(r.lastSamples) > ch {
			return r.lastSamples[ch]
		}
		return 0
	case inputIndex >= inputFrames-1:
		if inputIndex < inputFrames {
			return input[inputIndex*r.channels+ch]
		}
		if len(input) > ch {
			return input[len(input)-r.channels+ch]
		}
		return 0
	default:
		s1 := input[inputIndex*r.channels+ch]
		s2 := input[(inputIndex+1)*r.channels+ch]
		return int16(float64(s1)*(1.0-frac) + float64(s2)*frac)
	}
}

func (r *Resampler) advance(input []int16, inputFrames int) {
	r.position -= float64(inputFrames)
	if len(input) >= r.channels {
		copy(r.lastSamples, input[len(input)-r.channels:])
	}
}

// InputRate returns the configured input sample rate.
func (r *Resampler) InputRate() uint32 { return r.inputRate }

// OutputRate returns the configured output sample rate.
func (r *Resampler) OutputRate() uint32 { return r.outputRate }

// Channels returns the configured channel count.
func (r *Resampler) Channels() int { return r.channels }

// Quality returns the configured quality setting.
func (r *Resampler) Quality() int { return r.quality }

// CalculateOutputSize returns ⌈inputSize·OutputRate/InputRate⌉, useful for
// pre-sizing caller buffers.
func (r *Resampler) CalculateOutputSize(inputSize int) int {
	if r.inputRate == r.outputRate {
		return inputSize
	}
	num := inputSize * int(r.outputRate)
	den := int(r.inputRate)
	return (num + den - 1) / den
}

// Reset clears interpolation memory, e.g. after a stream discontinuity.
func (r *Resampler) Reset() {
	r.position = 0
	for i := range r.lastSamples {
		r.lastSamples[i] = 0
	}
}

// Close releases resampler resources. The linear-interpolation
// implementation holds no resources beyond Go-managed memory; Close exists
// so callers can treat Resampler like the other DSP blocks uniformly.
func (r *Resampler) Close() error {
	return nil
}

// Common VoIP rate conversions, named for readability at call sites.

// NewNarrowbandToTarget builds a resampler from 8 kHz telephone audio.
func NewNarrowbandToTarget(outputRate uint32, channels int) (*Resampler, error) {
	return New(Config{InputRate: 8000, OutputRate: outputRate, Channels: channels, Quality: 4})
}

// NewWidebandToTarget builds a resampler from 16 kHz wideband audio.
func NewWidebandToTarget(outputRate uint32, channels int) (*Resampler, error) {
	return New(Config{InputRate: 16000, OutputRate: outputRate, Channels: channels, Quality: 4})
}

// NewTargetToPlayback builds a resampler from the codec's clock rate to a
// device playback rate.
func NewTargetToPlayback(codecRate, playbackRate uint32, channels int) (*Resampler, error) {
	return New(Config{InputRate: codecRate, OutputRate: playbackRate, Channels: channels, Quality: 4})
}
