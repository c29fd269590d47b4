package stats

import (
	"math"
	"sync"
	"sync/atomic"
)

// Collector accumulates per-session transport and RTP counters from the
// hot path using atomics, and produces a consistent multi-field snapshot
// under a short-held mutex for readers.
type Collector struct {
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	packetsLost     atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	jitterBits      atomic.Uint64 // math.Float64bits(jitterMS)
	rttBits         atomic.Uint64 // math.Float64bits(rttMS)

	snapshotMu sync.Mutex
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{}
}

// RecordSent adds to the outbound packet/byte counters.
func (c *Collector) RecordSent(packets, bytes uint64) {
	c.packetsSent.Add(packets)
	c.bytesSent.Add(bytes)
}

// RecordReceived adds to the inbound packet/byte counters.
func (c *Collector) RecordReceived(packets, bytes uint64) {
	c.packetsReceived.Add(packets)
	c.bytesReceived.Add(bytes)
}

// RecordLost adds to the lost-packet counter.
func (c *Collector) RecordLost(n uint64) {
	c.packetsLost.Add(n)
}

// SetJitterMS stores the current smoothed jitter estimate, in
// milliseconds, overwriting any previous value.
func (c *Collector) SetJitterMS(v float64) {
	c.jitterBits.Store(math.Float64bits(v))
}

// SetRTTMS stores the current round-trip estimate, in milliseconds,
// overwriting any previous value.
func (c *Collector) SetRTTMS(v float64) {
	c.rttBits.Store(math.Float64bits(v))
}

// Snapshot is a consistent, point-in-time copy of the collector's
// counters.
type Snapshot struct {
	PacketsSent     uint64
	PacketsReceived uint64
	PacketsLost     uint64
	BytesSent       uint64
	BytesReceived   uint64
	JitterMS        float64
	RTTMS           float64
}

// LossRate returns lost packets as a fraction of (received + lost).
func (s Snapshot) LossRate() float64 {
	total := s.PacketsReceived + s.PacketsLost
	if total == 0 {
		return 0
	}
	return float64(s.PacketsLost) / float64(total)
}

// Snapshot copies every counter under a short-held lock so readers never
// observe a torn mix of pre- and post-update fields relative to other
// snapshot readers.
func (c *Collector) Snapshot() Snapshot {
	c.snapshotMu.Lock()
	defer c.snapshotMu.Unlock()

	return Snapshot{
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		PacketsLost:     c.packetsLost.Load(),
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		JitterMS:        math.Float64frombits(c.jitterBits.Load()),
		RTTMS:           math.Float64frombits(c.rttBits.Load()),
	}
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	c.snapshotMu.Lock()
	defer c.snapshotMu.Unlock()

	c.packetsSent.Store(0)
	c.packetsReceived.Store(0)
	c.packetsLost.Store(0)
	c.bytesSent.Store(0)
	c.bytesReceived.Store(0)
	c.jitterBits.Store(0)
	c.rttBits.Store(0)
}
