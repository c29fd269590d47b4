package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{InputRate: 0, OutputRate: 48000, Channels: 1})
	require.Error(t, err)

	_, err = New(Config{InputRate: 8000, OutputRate: 48000, Channels: 3})
	require.Error(t, err)

	_, err = New(Config{InputRate: 8000, OutputRate: 48000, Channels: 1, Quality: 11})
	require.Error(t, err)
}

func TestDefaultQuality(t *testing.T) {
	r, err := New(Config{InputRate: 8000, OutputRate: 48000, Channels: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, r.Quality())
}

func TestSameRatePassthrough(t *testing.T) {
	r, err := New(Config{InputRate: 48000, OutputRate: 48000, Channels: 1})
	require.NoError(t, err)

	in := []int16{1, 2, 3, 4}
	out, err := r.ProcessInt16(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestOutputLengthBound(t *testing.T) {
	// P8: |resample(x, fin->fout)| in {floor(|x|*fout/fin), ceil(|x|*fout/fin)}.
	r, err := New(Config{InputRate: 8000, OutputRate: 48000, Channels: 1})
	require.NoError(t, err)

	in := make([]int16, 160) // 20ms at 8kHz
	out, err := r.ProcessInt16(in)
	require.NoError(t, err)

	exact := float64(len(in)) * 48000.0 / 8000.0
	lower := int(exact)
	upper := lower + 1
	assert.True(t, len(out) == lower || len(out) == upper, "got %d, want %d or %d", len(out), lower, upper)
}

func TestCalculateOutputSizeIsCeil(t *testing.T) {
	r, err := New(Config{InputRate: 8000, OutputRate: 48000, Channels: 1})
	require.NoError(t, err)
	assert.Equal(t, 6, r.CalculateOutputSize(1))
	assert.Equal(t, 960, r.CalculateOutputSize(160))
}

func TestMisalignedInputRejected(t *testing.T) {
	r, err := New(Config{InputRate: 8000, OutputRate: 48000, Channels: 2})
	require.NoError(t, err)
	_, err = r.ProcessInt16([]int16{1, 2, 3})
	require.Error(t, err)
}

func TestResetClearsInterpolationMemory(t *testing.T) {
	r, err := New(Config{InputRate: 8000, OutputRate: 16000, Channels: 1})
	require.NoError(t, err)

	_, err = r.ProcessInt16([]int16{100, 200, 300})
	require.NoError(t, err)

	r.Reset()
	assert.Equal(t, int16(0), r.lastSamples[0])
}

func TestProcessFloatRoundTripsThroughInt16Domain(t *testing.T) {
	r, err := New(Config{InputRate: 48000, OutputRate: 48000, Channels: 1})
	require.NoError(t, err)

	out, err := r.ProcessFloat([]float32{0.5, -0.5, 0.0})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 0.5, out[0], 0.001)
	assert.InDelta(t, -0.5, out[1], 0.001)
}

func TestEmptyInputReturnsImmediately(t *testing.T) {
	r, err := New(Config{InputRate: 8000, OutputRate: 48000, Channels: 1})
	require.NoError(t, err)

	out, err := r.ProcessInt16(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
