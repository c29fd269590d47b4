package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAECRejectsBadConfig(t *testing.T) {
	cfg := DefaultAECConfig()
	cfg.FilterTaps = 0
	_, err := NewAEC(cfg)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestAECRejectsLengthMismatch(t *testing.T) {
	a, err := NewAEC(DefaultAECConfig())
	require.NoError(t, err)

	err = a.Process([]int16{1, 2}, []int16{1})
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestAECReducesPureEchoOverTime(t *testing.T) {
	cfg := DefaultAECConfig()
	cfg.FilterTaps = 8
	a, err := NewAEC(cfg)
	require.NoError(t, err)

	farEnd := make([]int16, 4000)
	for i := range farEnd {
		farEnd[i] = int16(8000 * math.Sin(float64(i)*0.1))
	}
	// Captured is a pure, undelayed echo of the far end: an idealized
	// acoustic path with gain 0.5 and no propagation delay.
	captured := make([]int16, len(farEnd))
	for i := range captured {
		captured[i] = int16(float64(farEnd[i]) * 0.5)
	}

	firstPassEnergy := energyOf(runAEC(t, a, append([]int16(nil), captured...), farEnd))

	for i := 0; i < 10; i++ {
		runAEC(t, a, append([]int16(nil), captured...), farEnd)
	}
	lastPassOut := runAEC(t, a, append([]int16(nil), captured...), farEnd)
	lastPassEnergy := energyOf(lastPassOut)

	assert.Less(t, lastPassEnergy, firstPassEnergy)
}

func runAEC(t *testing.T, a *AEC, captured, farEnd []int16) []int16 {
	t.Helper()
	require.NoError(t, a.Process(captured, farEnd))
	return captured
}

func energyOf(samples []int16) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return sum
}

func TestAECResetClearsFilterWeights(t *testing.T) {
	a, err := NewAEC(DefaultAECConfig())
	require.NoError(t, err)

	farEnd := make([]int16, 100)
	captured := make([]int16, 100)
	for i := range farEnd {
		farEnd[i] = int16(i * 10)
		captured[i] = int16(i * 5)
	}
	require.NoError(t, a.Process(captured, farEnd))

	require.NoError(t, a.Reset())
	for _, w := range a.weights {
		assert.Equal(t, 0.0, w)
	}
}
