package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDynamicsRejectsBadRatio(t *testing.T) {
	cfg := DefaultDynamicsConfig(DynamicsCompressor, 8000)
	cfg.Ratio = 0.5
	_, err := NewDynamics(cfg)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestDynamicsRejectsSidechainLengthMismatch(t *testing.T) {
	d, err := NewDynamics(DefaultDynamicsConfig(DynamicsCompressor, 8000))
	require.NoError(t, err)

	err = d.Process([]int16{1, 2, 3}, []int16{1, 2})
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestCompressorReducesLoudSignalGainBelowUnity(t *testing.T) {
	cfg := DefaultDynamicsConfig(DynamicsCompressor, 8000)
	cfg.ThresholdDB = -12
	cfg.Ratio = 4
	d, err := NewDynamics(cfg)
	require.NoError(t, err)

	loud := generateSineInt16(8000, 440, 800, 30000)
	out := append([]int16(nil), loud...)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Process(out, nil))
	}

	assert.Less(t, peakAbs(out), peakAbs(loud))
}

func TestGateSilencesBelowThreshold(t *testing.T) {
	cfg := DefaultDynamicsConfig(DynamicsGate, 8000)
	cfg.ThresholdDB = -20
	cfg.AttackMS = 0
	cfg.ReleaseMS = 0
	d, err := NewDynamics(cfg)
	require.NoError(t, err)

	quiet := make([]int16, 800)
	for i := range quiet {
		quiet[i] = 5
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Process(quiet, nil))
	}

	assert.Less(t, peakAbs(quiet), int16(5))
}

func TestExpanderWidensQuietSignalDownward(t *testing.T) {
	cfg := DefaultDynamicsConfig(DynamicsExpander, 8000)
	cfg.ThresholdDB = -10
	cfg.Ratio = 2
	d, err := NewDynamics(cfg)
	require.NoError(t, err)

	quiet := generateSineInt16(8000, 300, 800, 2000)
	out := append([]int16(nil), quiet...)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Process(out, nil))
	}

	assert.LessOrEqual(t, peakAbs(out), peakAbs(quiet))
}

func TestDynamicsResetClearsEnvelope(t *testing.T) {
	d, err := NewDynamics(DefaultDynamicsConfig(DynamicsCompressor, 8000))
	require.NoError(t, err)

	loud := generateSineInt16(8000, 440, 800, 30000)
	require.NoError(t, d.Process(loud, nil))

	require.NoError(t, d.Reset())
	assert.Equal(t, -120.0, d.envelopeDB)
}

func peakAbs(samples []int16) int16 {
	var peak int16
	for _, s := range samples {
		v := s
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
