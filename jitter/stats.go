package jitter

// Statistics is a snapshot of a Buffer's counters, per §4.5.7.
type Statistics struct {
	PacketsReceived     uint64
	PacketsOutput       uint64
	PacketsLost         uint64
	PacketsLate         uint64
	PacketsEarly        uint64
	PacketsDuplicate    uint64
	PacketsInterpolated uint64

	CurrentDelayMS     float64
	MinDelayObservedMS float64
	MaxDelayObservedMS float64

	LossRate float64

	JitterMS           float64
	JitterMaxMS        float64
	JitterPercentileMS float64
	TargetDelayMS      float64

	AccelerateCount    uint64
	DecelerateCount    uint64
	CurrentStretchRate float64

	BufferLevel  int
	BufferHealth float64 // occupancy / capacity, in [0, 1]
}

// Statistics returns a snapshot of the buffer's current counters.
func (b *Buffer) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := b.packetsOutput
	attempted := delivered + b.packetsLost
	lossRate := 0.0
	if attempted > 0 {
		lossRate = float64(b.packetsLost) / float64(attempted)
	}

	level := b.occupancy()

	return Statistics{
		PacketsReceived:     b.packetsReceived,
		PacketsOutput:       b.packetsOutput,
		PacketsLost:         b.packetsLost,
		PacketsLate:         b.packetsLate,
		PacketsEarly:        b.packetsEarly,
		PacketsDuplicate:    b.packetsDuplicate,
		PacketsInterpolated: b.packetsInterpolated,
		CurrentDelayMS:      b.currentDelayMS,
		MinDelayObservedMS:  b.minDelayObservedMS,
		MaxDelayObservedMS:  b.maxDelayObservedMS,
		LossRate:            lossRate,
		JitterMS:            b.jitterMS,
		JitterMaxMS:         b.jitterMaxMS,
		JitterPercentileMS:  b.jitterPercentileMS,
		TargetDelayMS:       b.targetDelayMS,
		AccelerateCount:     b.accelerateCount,
		DecelerateCount:     b.decelerateCount,
		CurrentStretchRate:  b.currentStretchRate,
		BufferLevel:         level,
		BufferHealth:        float64(level) / float64(len(b.slots)),
	}
}

// RecordInterpolated lets the PLC stage report that it concealed a loss
// via interpolation, so Statistics.PacketsInterpolated stays accurate
// even though concealment happens downstream of Get.
func (b *Buffer) RecordInterpolated() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.packetsInterpolated++
}
