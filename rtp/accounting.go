package rtp

// Bounds from RFC 3550 Appendix A.1.
const (
	maxDropout  = 3000
	maxMisorder = 100
	rtpSeqMod   = 1 << 16
)

// receiveStats implements the RFC 3550 Appendix A.1/A.8 source-state
// machine for one remote SSRC: sequence-number cycle tracking, jitter
// estimation, and the derived loss statistics.
type receiveStats struct {
	initialized bool

	baseSeq uint32
	maxSeq  uint16
	cycles  uint32
	badSeq  uint32

	packetsReceived  uint64
	bytesReceived    uint64
	packetsReordered uint64

	jitter       float64 // RFC 3550 §6.4.1 running estimate, RTP clock units
	lastTransit  int64
	hasTransit   bool
}

// reset reinitializes accounting as if this were the first packet of a
// new stream; used both for the first packet ever and for an SSRC change.
func (r *receiveStats) reset() {
	*r = receiveStats{}
}

// observe folds one incoming packet into the accounting state. arrivalRTP
// is the local receive time expressed in the stream's RTP clock units
// (local_ms * clockRate / 1000), used for the jitter estimator.
//
// Returns true if the packet should be counted as delivered payload
// (accepted), false if it was a restart candidate or too-old duplicate
// that must be silently discarded.
func (r *receiveStats) observe(seq uint16, ts uint32, arrivalRTP int64, payloadSize int) bool {
	if !r.initialized {
		r.initFirst(seq)
		r.updateJitter(ts, arrivalRTP)
		r.packetsReceived++
		r.bytesReceived += uint64(payloadSize)
		return true
	}

	delta := int32(int16(seq - r.maxSeq))

	switch {
	case delta >= 0 && delta <= maxDropout:
		if seq < r.maxSeq {
			r.cycles += rtpSeqMod
		}
		r.maxSeq = seq
	case delta < 0 && delta >= -maxMisorder:
		r.packetsReordered++
	case delta > maxDropout:
		r.badSeq = (uint32(seq) + 1) & (rtpSeqMod - 1)
		return false
	default:
		// delta < -maxMisorder: too old, discard.
		return false
	}

	r.updateJitter(ts, arrivalRTP)
	r.packetsReceived++
	r.bytesReceived += uint64(payloadSize)
	return true
}

func (r *receiveStats) initFirst(seq uint16) {
	r.initialized = true
	r.baseSeq = uint32(seq)
	r.maxSeq = seq
	r.cycles = 0
	r.badSeq = rtpSeqMod + 1
}

func (r *receiveStats) updateJitter(ts uint32, arrivalRTP int64) {
	transit := arrivalRTP - int64(ts)
	if r.hasTransit {
		d := transit - r.lastTransit
		if d < 0 {
			d = -d
		}
		r.jitter += (float64(d) - r.jitter) / 16.0
	}
	r.lastTransit = transit
	r.hasTransit = true
}

// extendedMaxSeq returns cycles + maxSeq as used by the loss formulas.
func (r *receiveStats) extendedMaxSeq() uint32 {
	return r.cycles + uint32(r.maxSeq)
}

// expected returns the number of packets that should have arrived between
// baseSeq and the current extended max sequence, inclusive.
func (r *receiveStats) expected() uint64 {
	return uint64(r.extendedMaxSeq()-r.baseSeq) + 1
}

// lost returns the cumulative number of packets lost, floored at zero.
func (r *receiveStats) lost() uint64 {
	exp := r.expected()
	if exp < r.packetsReceived {
		return 0
	}
	return exp - r.packetsReceived
}

// fractionLost returns the fraction of expected packets lost, in [0, 1].
func (r *receiveStats) fractionLost() float64 {
	exp := r.expected()
	if exp == 0 {
		return 0
	}
	l := r.lost()
	f := float64(l) / float64(exp)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
