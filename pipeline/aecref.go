package pipeline

import "sync"

// aecReference holds the most recent playback frame for use as the AEC
// far-end/echo reference. PlaybackTick stores into it every tick;
// CaptureTick loads from it every tick. These run on different
// goroutines in real capture/playback device usage, so the frame is
// guarded by a mutex rather than shared through a plain field, the same
// cross-tick discipline stateMachine applies to lifecycle state.
type aecReference struct {
	mu   sync.Mutex
	data []int16
}

func newAECReference(frameSamples int) *aecReference {
	return &aecReference{data: make([]int16, frameSamples)}
}

// store replaces the reference with a copy of frame.
func (r *aecReference) store(frame []int16) {
	r.mu.Lock()
	copy(r.data, frame)
	r.mu.Unlock()
}

// loadInto copies the current reference into out, which must be sized
// to the pipeline's frame length.
func (r *aecReference) loadInto(out []int16) {
	r.mu.Lock()
	copy(out, r.data)
	r.mu.Unlock()
}
