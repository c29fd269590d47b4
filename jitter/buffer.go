package jitter

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status reports the outcome of a Get call.
type Status int

const (
	// StatusOK means a frame for the expected sequence number was
	// present and is returned in GetResult.Payload.
	StatusOK Status = iota
	// StatusLost means the expected sequence number's slot was empty;
	// the caller must conceal (see the PLC type) or produce silence.
	StatusLost
)

// GetResult is the outcome of one Get call.
type GetResult struct {
	Payload []byte
	Status  Status
}

type slot struct {
	present   bool
	sequence  uint16
	timestamp uint32
	marker    bool
	payload   []byte
}

// windowCapacity is how many Put-observed jitter samples accumulate
// before the percentile-based target delay is recomputed (§4.5.4: "every
// 50 gets" — the window is sized to the same cadence here).
const windowCapacity = 50

// Buffer is a bounded, sequence-indexed reordering buffer with adaptive
// delay control and playout-rate recommendation.
//
// A single mutex guards both Put and Get; the spec permits a
// finer-grained SPSC scheme but a single lightweight mutex is simpler and
// meets the same ordering invariants for a per-call jitter buffer sized
// in the tens to low hundreds of slots.
type Buffer struct {
	mu  sync.Mutex
	cfg Config

	samplesPerFrame uint32
	slots           []slot

	initialized bool
	nextSeq     uint16
	nextTS      uint32
	tickStart   time.Time

	packetsReceived      uint64
	packetsOutput        uint64
	packetsLost          uint64
	packetsLate          uint64
	packetsEarly         uint64
	packetsDuplicate     uint64
	packetsInterpolated  uint64

	currentDelayMS     float64
	targetDelayMS      float64
	minDelayObservedMS float64
	maxDelayObservedMS float64

	lastTransit int64
	hasTransit  bool
	jitterMS    float64
	jitterMaxMS float64

	window          []float64
	jitterPercentileMS float64

	accelerateCount   uint64
	decelerateCount   uint64
	lastStretchSign   int
	currentStretchRate float64
}

// New constructs a Buffer from Config.
func New(cfg Config) (*Buffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.TimeProvider == nil {
		cfg.TimeProvider = DefaultTimeProvider{}
	}

	b := &Buffer{
		cfg:                cfg,
		samplesPerFrame:    cfg.SamplesPerFrame(),
		slots:              make([]slot, cfg.Capacity),
		currentDelayMS:     cfg.InitialDelayMS,
		targetDelayMS:      cfg.InitialDelayMS,
		minDelayObservedMS: cfg.InitialDelayMS,
		maxDelayObservedMS: cfg.InitialDelayMS,
		currentStretchRate: 1.0,
		window:             make([]float64, 0, windowCapacity),
	}

	logrus.WithFields(logrus.Fields{
		"function":    "jitter.New",
		"capacity":    cfg.Capacity,
		"mode":        cfg.Mode,
		"clock_rate":  cfg.ClockRate,
		"frame_ms":    cfg.FrameDurationMS,
	}).Info("jitter buffer created")

	return b, nil
}

// Put stores one incoming frame, classifying it as accepted, late, or
// duplicate per §4.5.2.
func (b *Buffer) Put(payload []byte, ts uint32, seq uint16, marker bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		b.nextSeq = seq
		b.nextTS = ts
		b.tickStart = b.cfg.TimeProvider.Now()
		b.initialized = true
	}

	if signedDiff32(int64(ts), int64(b.nextTS)) < -2*int64(b.samplesPerFrame) {
		b.packetsLate++
		return
	}

	idx := int(seq) % len(b.slots)
	s := &b.slots[idx]
	if s.present && s.sequence == seq {
		b.packetsDuplicate++
		return
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)
	*s = slot{present: true, sequence: seq, timestamp: ts, marker: marker, payload: stored}

	b.packetsReceived++
	b.updatePutJitter(ts)
}

// signedDiff32 returns a - b for two 32-bit RTP timestamps as a signed
// difference under modular (2^32) arithmetic, so a timestamp just past
// the wrap compares as later than one just before it.
func signedDiff32(a, b int64) int64 {
	return int64(int32(uint32(a) - uint32(b)))
}

func (b *Buffer) updatePutJitter(ts uint32) {
	elapsed := b.cfg.TimeProvider.Now().Sub(b.tickStart)
	arrivalRTP := elapsed.Milliseconds() * int64(b.cfg.ClockRate) / 1000
	transit := arrivalRTP - int64(ts)

	if b.hasTransit {
		d := transit - b.lastTransit
		if d < 0 {
			d = -d
		}
		instantMS := float64(d) / float64(b.cfg.ClockRate) * 1000.0
		b.jitterMS += (instantMS - b.jitterMS) / 16.0
		if instantMS > b.jitterMaxMS {
			b.jitterMaxMS = instantMS
		}
		if len(b.window) < windowCapacity {
			b.window = append(b.window, instantMS)
		}
	}
	b.lastTransit = transit
	b.hasTransit = true
}

// Get dequeues the next expected frame in sequence order, applying
// adaptive delay control per §4.5.4.
func (b *Buffer) Get() GetResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := int(b.nextSeq) % len(b.slots)
	s := &b.slots[idx]

	var result GetResult
	if s.present && s.sequence == b.nextSeq {
		result = GetResult{Payload: s.payload, Status: StatusOK}
		*s = slot{}
		b.packetsOutput++
	} else {
		result = GetResult{Status: StatusLost}
		b.packetsLost++
	}

	b.nextSeq++
	b.nextTS += b.samplesPerFrame

	if b.cfg.Mode == Adaptive {
		b.adjustDelay(result.Status)
	}

	if b.currentDelayMS < b.minDelayObservedMS {
		b.minDelayObservedMS = b.currentDelayMS
	}
	if b.currentDelayMS > b.maxDelayObservedMS {
		b.maxDelayObservedMS = b.currentDelayMS
	}

	return result
}

// adjustDelay applies the slow percentile baseline and the fast ±10/-5ms
// trim, per the resolved ordering in §4.5.4.
func (b *Buffer) adjustDelay(status Status) {
	if len(b.window) >= windowCapacity {
		b.recomputeTarget()
	}

	if status == StatusLost {
		b.currentDelayMS = math.Min(b.currentDelayMS+10, b.cfg.MaxDelayMS)
	}
	if b.occupancy() > len(b.slots)/2 {
		b.currentDelayMS = math.Max(b.currentDelayMS-5, b.cfg.MinDelayMS)
	}

	if b.targetDelayMS > 0 {
		lower := math.Max(b.cfg.MinDelayMS, b.targetDelayMS-b.cfg.FrameDurationMS)
		upper := math.Min(b.cfg.MaxDelayMS, b.targetDelayMS+b.cfg.FrameDurationMS)
		if b.currentDelayMS < lower {
			b.currentDelayMS = lower
		}
		if b.currentDelayMS > upper {
			b.currentDelayMS = upper
		}
	}
}

func (b *Buffer) recomputeTarget() {
	p := percentile(b.window, b.cfg.JitterPercentile)
	b.jitterPercentileMS = p
	frames := math.Ceil(p / b.cfg.FrameDurationMS)
	target := frames * b.cfg.FrameDurationMS
	if target < b.cfg.MinDelayMS {
		target = b.cfg.MinDelayMS
	}
	if target > b.cfg.MaxDelayMS {
		target = b.cfg.MaxDelayMS
	}
	b.targetDelayMS = target
	b.window = b.window[:0]
}

func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func (b *Buffer) occupancy() int {
	n := 0
	for i := range b.slots {
		if b.slots[i].present {
			n++
		}
	}
	return n
}

// GetPlayoutRate returns the recommended time-stretch factor per §4.5.5:
// 1.0 is normal, >1.0 speeds playback up, <1.0 slows it down.
func (b *Buffer) GetPlayoutRate(k float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	level := b.occupancy()
	target := b.cfg.TargetBufferLevel

	var rate float64
	sign := 0
	switch {
	case level > target+1:
		rate = 1 + k
		sign = 1
	case level < target-1:
		rate = 1 - k
		sign = -1
	default:
		rate = 1.0
	}

	if sign == 1 && b.lastStretchSign != 1 {
		b.accelerateCount++
	}
	if sign == -1 && b.lastStretchSign != -1 {
		b.decelerateCount++
	}
	b.lastStretchSign = sign
	b.currentStretchRate = rate

	return rate
}

// Reset drops all buffered frames, restarts sequence/timestamp tracking
// and jitter sampling, and returns the current and target delays to
// InitialDelayMS. The cumulative packet counters, jitter estimates,
// observed delay extremes and playout-rate counters are kept. Validate is
// not re-run; the configuration stays the same.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.slots {
		b.slots[i] = slot{}
	}
	b.initialized = false
	b.hasTransit = false
	b.window = b.window[:0]
	b.currentDelayMS = b.cfg.InitialDelayMS
	b.targetDelayMS = b.cfg.InitialDelayMS
}
