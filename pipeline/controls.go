package pipeline

import "sync"

// controlIntent is one queued control-plane mutation, applied by the
// capture tick at a point where no DSP block or codec call is in
// flight.
type controlIntent func(*Pipeline)

// intentQueue lets control methods (Mute, SetVolume, ...) run
// concurrently with the capture/playback ticks without taking the
// tick's own lock: writers only ever append to a slice behind a short
// mutex, and the tick drains the whole slice once per capture tick,
// before step 1, applying every intent on the tick's own goroutine.
// Readers (the tick) are preferred: a burst of control calls never
// blocks tick progress beyond one slice swap.
type intentQueue struct {
	mu      sync.Mutex
	pending []controlIntent
}

func (q *intentQueue) enqueue(fn controlIntent) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

func (q *intentQueue) drain() []controlIntent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	drained := q.pending
	q.pending = nil
	return drained
}

// SetMuted enqueues a mute/unmute for the next capture tick.
func (p *Pipeline) SetMuted(muted bool) {
	p.intents.enqueue(func(pl *Pipeline) { pl.muted = muted })
}

// SetVolume enqueues a playback volume change. gain is a linear
// multiplier applied to decoded/concealed PCM before the clip clamp in
// playback tick step 5; 1.0 leaves the signal unchanged.
func (p *Pipeline) SetVolume(gain float64) {
	p.intents.enqueue(func(pl *Pipeline) { pl.playbackVolume = gain })
}

// SetBitrateHint enqueues an advisory bitrate target in bits per
// second. The value is stored on the Pipeline only; it is not passed to
// the codec and does not change what Encode produces.
func (p *Pipeline) SetBitrateHint(bps int) {
	p.intents.enqueue(func(pl *Pipeline) { pl.bitrateHintBPS = bps })
}

// EnableAEC, EnableDenoise, and EnableAGC toggle whether the
// corresponding DSP block (if one was supplied in Config) runs on the
// next tick. Toggling a block that was never configured has no effect.
func (p *Pipeline) EnableAEC(enabled bool) {
	p.intents.enqueue(func(pl *Pipeline) { pl.aecEnabled = enabled })
}

func (p *Pipeline) EnableDenoise(enabled bool) {
	p.intents.enqueue(func(pl *Pipeline) { pl.denoiseEnabled = enabled })
}

func (p *Pipeline) EnableAGC(enabled bool) {
	p.intents.enqueue(func(pl *Pipeline) { pl.agcEnabled = enabled })
}

func (p *Pipeline) EnableCNG(enabled bool) {
	p.intents.enqueue(func(pl *Pipeline) { pl.cngEnabled = enabled })
}

// SetSRTPSendKey and SetSRTPRecvKey install SRTP key material for one
// direction. These bypass the intent queue: mediaprotect.Context guards
// its own key swap with its own mutex, so there is no tick-safety
// reason to defer them, and installing a key takes effect on the very
// next packet rather than the next tick boundary.
func (p *Pipeline) SetSRTPSendKey(masterKey, masterSalt []byte) error {
	if p.cfg.Protector == nil {
		return ErrInvalidConfig
	}
	return p.cfg.Protector.SetSendKey(masterKey, masterSalt)
}

func (p *Pipeline) SetSRTPRecvKey(masterKey, masterSalt []byte) error {
	if p.cfg.Protector == nil {
		return ErrInvalidConfig
	}
	return p.cfg.Protector.SetRecvKey(masterKey, masterSalt)
}

// drainIntents applies every queued control intent. Called by
// CaptureTick before step 1, per §4.8.5's "safe point before capture
// step 1."
func (p *Pipeline) drainIntents() {
	for _, fn := range p.intents.drain() {
		fn(p)
	}
}
