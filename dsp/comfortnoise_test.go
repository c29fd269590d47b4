package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComfortNoiseGeneratorRejectsPositiveLevel(t *testing.T) {
	_, err := NewComfortNoiseGenerator(ComfortNoiseConfig{NoiseLevelDB: 3})
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestComfortNoiseGeneratorProducesNonZeroOutput(t *testing.T) {
	g, err := NewComfortNoiseGenerator(ComfortNoiseConfig{NoiseLevelDB: -30, Seed: 12345})
	require.NoError(t, err)

	samples := make([]int16, 400)
	require.NoError(t, g.Process(samples))

	var nonZero int
	for _, s := range samples {
		if s != 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 0)
}

func TestComfortNoiseGeneratorIsDeterministicForSameSeed(t *testing.T) {
	g1, err := NewComfortNoiseGenerator(ComfortNoiseConfig{NoiseLevelDB: -30, Seed: 42})
	require.NoError(t, err)
	g2, err := NewComfortNoiseGenerator(ComfortNoiseConfig{NoiseLevelDB: -30, Seed: 42})
	require.NoError(t, err)

	out1 := make([]int16, 200)
	out2 := make([]int16, 200)
	require.NoError(t, g1.Process(out1))
	require.NoError(t, g2.Process(out2))

	assert.Equal(t, out1, out2)
}

func TestComfortNoiseGeneratorResetReproducesSequence(t *testing.T) {
	g, err := NewComfortNoiseGenerator(ComfortNoiseConfig{NoiseLevelDB: -30, Seed: 7})
	require.NoError(t, err)

	first := make([]int16, 200)
	require.NoError(t, g.Process(first))

	require.NoError(t, g.Reset())

	second := make([]int16, 200)
	require.NoError(t, g.Process(second))

	assert.Equal(t, first, second)
}

func TestComfortNoiseGeneratorSetLevelRejectsPositive(t *testing.T) {
	g, err := NewComfortNoiseGenerator(ComfortNoiseConfig{NoiseLevelDB: -30, Seed: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, g.SetLevel(5), ErrInvalidParam)
}
