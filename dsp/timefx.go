package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Delay is a feedback delay line with wet/dry mixing, the building block
// for echo and slapback effects and the base the other time-domain
// effects in this file compose.
type Delay struct {
	cfg    DelayConfig
	buf    []int16
	pos    int
	closed bool
}

// DelayConfig configures a single feedback delay tap.
type DelayConfig struct {
	SampleRate uint32
	DelayMS    float64
	Feedback   float64 // 0..<1
	WetMix     float64 // 0..1, 0 = dry only, 1 = wet only
}

func (c DelayConfig) validate() error {
	if c.SampleRate == 0 || c.DelayMS <= 0 {
		return fmt.Errorf("%w: delay sample rate and delay ms must be > 0", ErrInvalidParam)
	}
	if c.Feedback < 0 || c.Feedback >= 1 {
		return fmt.Errorf("%w: delay feedback must be in [0,1)", ErrInvalidParam)
	}
	if c.WetMix < 0 || c.WetMix > 1 {
		return fmt.Errorf("%w: delay wet mix must be in [0,1]", ErrInvalidParam)
	}
	return nil
}

// NewDelay constructs a Delay block, preallocating its ring buffer.
func NewDelay(cfg DelayConfig) (*Delay, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewDelay", "error": err.Error()}).Error("delay config rejected")
		return nil, err
	}
	n := int(cfg.DelayMS / 1000.0 * float64(cfg.SampleRate))
	if n < 1 {
		n = 1
	}
	return &Delay{cfg: cfg, buf: make([]int16, n)}, nil
}

// Process applies the delay line to samples in place.
func (d *Delay) Process(samples []int16) error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	for i, s := range samples {
		delayed := d.buf[d.pos]
		out := float64(s)*(1-d.cfg.WetMix) + float64(delayed)*d.cfg.WetMix
		d.buf[d.pos] = clampInt16(float64(s) + float64(delayed)*d.cfg.Feedback)
		samples[i] = clampInt16(out)
		d.pos++
		if d.pos >= len(d.buf) {
			d.pos = 0
		}
	}
	return nil
}

// Reset clears the delay buffer, keeping configuration.
func (d *Delay) Reset() error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.pos = 0
	return nil
}

// Close marks the block unusable.
func (d *Delay) Close() error {
	if d == nil || d.closed {
		return ErrNotInitialized
	}
	d.closed = true
	return nil
}

// ReverbConfig configures a Schroeder reverberator: four parallel comb
// filters summed and passed through two series allpass stages.
type ReverbConfig struct {
	SampleRate uint32
	RoomSize   float64 // 0..1, scales comb feedback
	Damping    float64 // 0..1, low-pass applied inside each comb
	WetMix     float64 // 0..1
}

func (c ReverbConfig) validate() error {
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: reverb sample rate must be > 0", ErrInvalidParam)
	}
	if c.RoomSize < 0 || c.RoomSize > 1 || c.Damping < 0 || c.Damping > 1 || c.WetMix < 0 || c.WetMix > 1 {
		return fmt.Errorf("%w: reverb room size, damping and wet mix must be in [0,1]", ErrInvalidParam)
	}
	return nil
}

// combFilter is a feedback comb with a one-pole low-pass in the feedback
// path, the damping element of a Schroeder reverberator.
type combFilter struct {
	buf      []int16
	pos      int
	feedback float64
	damp     float64
	lastOut  float64
}

func newCombFilter(delaySamples int, feedback, damp float64) combFilter {
	if delaySamples < 1 {
		delaySamples = 1
	}
	return combFilter{buf: make([]int16, delaySamples), feedback: feedback, damp: damp}
}

func (c *combFilter) process(x float64) float64 {
	out := float64(c.buf[c.pos])
	c.lastOut = c.lastOut*c.damp + out*(1-c.damp)
	c.buf[c.pos] = clampInt16(x + c.lastOut*c.feedback)
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (c *combFilter) reset() {
	for i := range c.buf {
		c.buf[i] = 0
	}
	c.pos, c.lastOut = 0, 0
}

// allpassFilter diffuses the comb output into a denser, smoother tail.
type allpassFilter struct {
	buf []int16
	pos int
	g   float64
}

func newAllpassFilter(delaySamples int, g float64) allpassFilter {
	if delaySamples < 1 {
		delaySamples = 1
	}
	return allpassFilter{buf: make([]int16, delaySamples), g: g}
}

func (a *allpassFilter) process(x float64) float64 {
	bufOut := float64(a.buf[a.pos])
	y := -a.g*x + bufOut
	a.buf[a.pos] = clampInt16(x + a.g*bufOut)
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return y
}

func (a *allpassFilter) reset() {
	for i := range a.buf {
		a.buf[i] = 0
	}
	a.pos = 0
}

// combTuningsMS are the four parallel comb delays of the classic
// Schroeder/Freeverb topology, scaled to the configured sample rate.
var combTuningsMS = [4]float64{29.7, 37.1, 41.1, 43.7}
var allpassTuningsMS = [2]float64{5.0, 1.7}

// Reverb implements the Reverb block contract.
type Reverb struct {
	cfg      ReverbConfig
	combs    [4]combFilter
	allpass  [2]allpassFilter
	closed   bool
}

// NewReverb constructs a Reverb block.
func NewReverb(cfg ReverbConfig) (*Reverb, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewReverb", "error": err.Error()}).Error("reverb config rejected")
		return nil, err
	}
	r := &Reverb{cfg: cfg}
	feedback := 0.7 + 0.28*cfg.RoomSize
	for i, ms := range combTuningsMS {
		r.combs[i] = newCombFilter(int(ms/1000*float64(cfg.SampleRate)), feedback, cfg.Damping)
	}
	for i, ms := range allpassTuningsMS {
		r.allpass[i] = newAllpassFilter(int(ms/1000*float64(cfg.SampleRate)), 0.5)
	}
	return r, nil
}

// Process applies the reverberator to samples in place.
func (r *Reverb) Process(samples []int16) error {
	if r == nil || r.closed {
		return ErrNotInitialized
	}
	for i, s := range samples {
		x := float64(s)
		var wet float64
		for c := range r.combs {
			wet += r.combs[c].process(x)
		}
		wet /= float64(len(r.combs))
		for a := range r.allpass {
			wet = r.allpass[a].process(wet)
		}
		samples[i] = clampInt16(x*(1-r.cfg.WetMix) + wet*r.cfg.WetMix)
	}
	return nil
}

// Reset clears all comb and allpass state, keeping configuration.
func (r *Reverb) Reset() error {
	if r == nil || r.closed {
		return ErrNotInitialized
	}
	for i := range r.combs {
		r.combs[i].reset()
	}
	for i := range r.allpass {
		r.allpass[i].reset()
	}
	return nil
}

// Close marks the block unusable.
func (r *Reverb) Close() error {
	if r == nil || r.closed {
		return ErrNotInitialized
	}
	r.closed = true
	return nil
}

// ModulatedDelayConfig configures Chorus and Flanger, which share an LFO
// sweeping a single delay tap; they differ only in the typical delay
// range and feedback a caller configures.
type ModulatedDelayConfig struct {
	SampleRate   uint32
	CenterDelayMS float64
	DepthMS      float64
	RateHz       float64
	Feedback     float64 // 0..<1
	WetMix       float64 // 0..1
}

func (c ModulatedDelayConfig) validate() error {
	if c.SampleRate == 0 || c.CenterDelayMS <= 0 || c.DepthMS < 0 || c.RateHz <= 0 {
		return fmt.Errorf("%w: modulated delay parameters must be positive", ErrInvalidParam)
	}
	if c.CenterDelayMS-c.DepthMS <= 0 {
		return fmt.Errorf("%w: modulated delay depth must be less than center delay", ErrInvalidParam)
	}
	if c.Feedback < 0 || c.Feedback >= 1 || c.WetMix < 0 || c.WetMix > 1 {
		return fmt.Errorf("%w: modulated delay feedback must be in [0,1) and wet mix in [0,1]", ErrInvalidParam)
	}
	return nil
}

// ModulatedDelay implements both Chorus and Flanger: an LFO-swept
// fractional delay tap read from a ring buffer via linear interpolation,
// mixed with the dry signal.
type ModulatedDelay struct {
	cfg       ModulatedDelayConfig
	buf       []int16
	writePos  int
	phase     float64
	phaseStep float64
	closed    bool
}

// NewChorus returns a ModulatedDelay tuned for chorus: long center delay,
// shallow depth, slow rate.
func NewChorus(sampleRate uint32) (*ModulatedDelay, error) {
	return NewModulatedDelay(ModulatedDelayConfig{
		SampleRate: sampleRate, CenterDelayMS: 25, DepthMS: 8, RateHz: 0.8, Feedback: 0, WetMix: 0.5,
	})
}

// NewFlanger returns a ModulatedDelay tuned for flanging: short center
// delay, shallow depth, feedback for the characteristic comb-filtered
// sweep.
func NewFlanger(sampleRate uint32) (*ModulatedDelay, error) {
	return NewModulatedDelay(ModulatedDelayConfig{
		SampleRate: sampleRate, CenterDelayMS: 3, DepthMS: 2, RateHz: 0.25, Feedback: 0.5, WetMix: 0.5,
	})
}

// NewModulatedDelay constructs a ModulatedDelay block from an explicit
// config, for callers that need parameters other than the Chorus/Flanger
// presets.
func NewModulatedDelay(cfg ModulatedDelayConfig) (*ModulatedDelay, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "NewModulatedDelay", "error": err.Error()}).Error("modulated delay config rejected")
		return nil, err
	}
	maxDelaySamples := int((cfg.CenterDelayMS + cfg.DepthMS) / 1000 * float64(cfg.SampleRate)) + 2
	return &ModulatedDelay{
		cfg:       cfg,
		buf:       make([]int16, maxDelaySamples),
		phaseStep: 2 * math.Pi * cfg.RateHz / float64(cfg.SampleRate),
	}, nil
}

// Process applies the modulated delay to samples in place.
func (m *ModulatedDelay) Process(samples []int16) error {
	if m == nil || m.closed {
		return ErrNotInitialized
	}
	n := len(m.buf)
	for i, s := range samples {
		delayMS := m.cfg.CenterDelayMS + m.cfg.DepthMS*math.Sin(m.phase)
		delaySamples := delayMS / 1000 * float64(m.cfg.SampleRate)

		readPos := float64(m.writePos) - delaySamples
		for readPos < 0 {
			readPos += float64(n)
		}
		i0 := int(readPos) % n
		i1 := (i0 + 1) % n
		frac := readPos - math.Floor(readPos)
		wet := float64(m.buf[i0])*(1-frac) + float64(m.buf[i1])*frac

		m.buf[m.writePos] = clampInt16(float64(s) + wet*m.cfg.Feedback)
		samples[i] = clampInt16(float64(s)*(1-m.cfg.WetMix) + wet*m.cfg.WetMix)

		m.writePos++
		if m.writePos >= n {
			m.writePos = 0
		}
		m.phase += m.phaseStep
		if m.phase > 2*math.Pi {
			m.phase -= 2 * math.Pi
		}
	}
	return nil
}

// Reset clears the delay buffer and LFO phase, keeping configuration.
func (m *ModulatedDelay) Reset() error {
	if m == nil || m.closed {
		return ErrNotInitialized
	}
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.writePos, m.phase = 0, 0
	return nil
}

// Close marks the block unusable.
func (m *ModulatedDelay) Close() error {
	if m == nil || m.closed {
		return ErrNotInitialized
	}
	m.closed = true
	return nil
}
