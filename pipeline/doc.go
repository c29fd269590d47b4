// Package pipeline orchestrates one call's full media path: capture,
// the DSP chain, the codec, the RTP session and jitter buffer, optional
// SRTP protection, and playback. It owns no hardware access itself —
// capture/playback are push/pull callbacks supplied at construction —
// but drives every tick in the fixed order the other packages in this
// module were built to support.
package pipeline
