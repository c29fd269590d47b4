// Package dsp implements the DSP block contracts (C3): the fixed set of
// in-place PCM processing stages the pipeline threads audio through on
// both the capture and playback paths.
//
// # Shared contract
//
// Every block follows the same shape, independent of what the block
// actually does: a constructor validates its Config and returns a handle,
// Process runs on a caller-owned []int16 buffer without allocating, Reset
// clears accumulated filter/envelope state without discarding
// configuration, and Close releases any resources. Construction failure
// and use of a block before construction both return the sentinel errors
// in errors.go rather than panicking.
//
// # Blocks
//
// Denoiser, AEC, AGC, VAD, Resampler (package resample), Equalizer,
// Dynamics (compressor/limiter/gate/expander), time-domain effects
// (reverb/delay/chorus/flanger), a comfort-noise generator, and a
// watermark embedder/detector pair.
package dsp
