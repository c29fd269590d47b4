package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEqualizerRejectsBadBandFrequency(t *testing.T) {
	_, err := NewEqualizer(EqualizerConfig{
		SampleRate: 8000,
		Bands:      []Band{{Type: BandPeaking, FrequencyHz: 5000, Q: 1, Enabled: true}},
	})
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestEqualizerLowPassAttenuatesHighFrequencyTone(t *testing.T) {
	eq, err := NewEqualizer(EqualizerConfig{
		SampleRate: 8000,
		Bands:      []Band{{Type: BandLowPass, FrequencyHz: 300, Q: 0.707, Enabled: true}},
	})
	require.NoError(t, err)

	tone := generateSineInt16(8000, 3000, 200, 10000)
	out := append([]int16(nil), tone...)
	require.NoError(t, eq.Process(out))

	assert.Less(t, energyOf(out), energyOf(tone))
}

func TestEqualizerDisabledBandIsSkipped(t *testing.T) {
	eq, err := NewEqualizer(EqualizerConfig{
		SampleRate: 8000,
		Bands:      []Band{{Type: BandLowPass, FrequencyHz: 300, Q: 0.707, Enabled: false}},
	})
	require.NoError(t, err)
	assert.Empty(t, eq.filters)

	samples := []int16{100, -100, 200}
	want := append([]int16(nil), samples...)
	require.NoError(t, eq.Process(samples))
	assert.Equal(t, want, samples)
}

func TestEqualizerResetClearsFilterMemory(t *testing.T) {
	eq, err := NewEqualizer(EqualizerConfig{
		SampleRate: 8000,
		Bands:      []Band{{Type: BandPeaking, FrequencyHz: 1000, GainDB: 6, Q: 1, Enabled: true}},
	})
	require.NoError(t, err)

	samples := generateSineInt16(8000, 1000, 100, 5000)
	require.NoError(t, eq.Process(samples))

	require.NoError(t, eq.Reset())
	for _, f := range eq.filters {
		assert.Equal(t, 0.0, f.z1)
		assert.Equal(t, 0.0, f.z2)
	}
}

func generateSineInt16(sampleRate uint32, freqHz float64, count int, amplitude float64) []int16 {
	out := make([]int16, count)
	for i := range out {
		tSec := float64(i) / float64(sampleRate)
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freqHz*tSec))
	}
	return out
}
