package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// VADConfig configures voice-activity detection.
type VADConfig struct {
	SampleRate uint32

	// EnergyThresholdDB is the frame RMS energy, in dBFS, at or above
	// which a frame is considered speech.
	EnergyThresholdDB float64

	// HangoverFrames keeps the detector reporting speech for this many
	// additional frames after energy drops below threshold, so it rides
	// through brief dips inside a word instead of chopping it up.
	HangoverFrames int

	// NoiseAdaptRate blends the last frame's energy into the tracked
	// noise floor, used to derive SpeechProbability.
	NoiseAdaptRate float64
}

// DefaultVADConfig returns settings suitable for 10-20ms voice frames.
func DefaultVADConfig(sampleRate uint32) VADConfig {
	return VADConfig{
		SampleRate:        sampleRate,
		EnergyThresholdDB: -40.0,
		HangoverFrames:    5,
		NoiseAdaptRate:    0.05,
	}
}

func (c VADConfig) validate() error {
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: vad sample rate must be > 0", ErrInvalidParam)
	}
	if c.HangoverFrames < 0 {
		return fmt.Errorf("%w: vad hangover frames must be >= 0", ErrInvalidParam)
	}
	if c.NoiseAdaptRate <= 0 || c.NoiseAdaptRate >= 1 {
		return fmt.Errorf("%w: vad noise adapt rate must be in (0,1)", ErrInvalidParam)
	}
	return nil
}

// VADResult reports the outcome of one VAD.Process call.
type VADResult struct {
	IsSpeech         bool
	SpeechProbability float64
	EnergyDB         float64
	SpeechFrames     uint64
	SilenceFrames    uint64
}

// VAD classifies PCM frames as speech or silence by comparing each
// frame's RMS energy against a fixed threshold, with hangover so a
// detector riding a brief dip mid-word does not chop output into
// fragments. An adaptive noise floor, tracked during silence, only
// shapes the reported SpeechProbability.
type VAD struct {
	cfg VADConfig

	noiseFloorDB float64
	hangover     int
	speechFrames uint64
	silenceFrames uint64
	closed       bool
}

// NewVAD constructs a VAD block.
func NewVAD(cfg VADConfig) (*VAD, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewVAD", "error": err.Error()}).Error("vad config rejected")
		return nil, err
	}
	return &VAD{cfg: cfg, noiseFloorDB: -60.0}, nil
}

// Process classifies one frame. It does not modify samples.
func (v *VAD) Process(samples []int16) (VADResult, error) {
	if v == nil || v.closed {
		return VADResult{}, ErrNotInitialized
	}
	if len(samples) == 0 {
		return VADResult{}, nil
	}

	energyDB := frameEnergyDB(samples)

	aboveThreshold := energyDB >= v.cfg.EnergyThresholdDB
	isSpeech := aboveThreshold
	if aboveThreshold {
		v.hangover = v.cfg.HangoverFrames
	} else if v.hangover > 0 {
		v.hangover--
		isSpeech = true
	} else {
		// Only track noise floor during confirmed silence so voiced
		// frames never pull it upward.
		v.noiseFloorDB += (energyDB - v.noiseFloorDB) * v.cfg.NoiseAdaptRate
	}

	if isSpeech {
		v.speechFrames++
	} else {
		v.silenceFrames++
	}

	margin := energyDB - v.noiseFloorDB
	prob := 1.0 / (1.0 + math.Exp(-(margin-6)/4))

	return VADResult{
		IsSpeech:          isSpeech,
		SpeechProbability: prob,
		EnergyDB:          energyDB,
		SpeechFrames:      v.speechFrames,
		SilenceFrames:     v.silenceFrames,
	}, nil
}

// Reset clears accumulated statistics and the hangover counter, keeping
// configuration.
func (v *VAD) Reset() error {
	if v == nil || v.closed {
		return ErrNotInitialized
	}
	v.noiseFloorDB = -60.0
	v.hangover = 0
	v.speechFrames = 0
	v.silenceFrames = 0
	return nil
}

// Close marks the block unusable.
func (v *VAD) Close() error {
	if v == nil || v.closed {
		return ErrNotInitialized
	}
	v.closed = true
	return nil
}

func frameEnergyDB(samples []int16) float64 {
	var sumSquares float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	if rms < 1e-9 {
		return -120.0
	}
	return 20 * math.Log10(rms)
}
