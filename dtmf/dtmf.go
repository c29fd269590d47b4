// Package dtmf implements the DTMF codec pair: a Goertzel filter-bank
// detector and a two-tone phase-accumulator generator, per ITU-T Q.24 /
// the classic telephony keypad tone plan.
package dtmf

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Row and column tone frequencies for the 4x4 DTMF keypad matrix.
var (
	rowFrequencies = [4]float64{697, 770, 852, 941}
	colFrequencies = [4]float64{1209, 1336, 1477, 1633}
)

// digitTable maps (row, col) filter-bank index pairs to the digit they
// represent, in the standard keypad layout plus the A-D column used by
// signalling/military extensions.
var digitTable = [4][4]byte{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

// Event is a detected DTMF digit press.
type Event struct {
	Digit      byte // '0'-'9', '*', '#', 'A'-'D'
	OnSamples  int  // on-duration reached when the event fired (at least MinOnMS), in samples; not the full length of the press
	SampleRate uint32
}

// DurationMS returns the detected on-duration in milliseconds.
func (e Event) DurationMS() float64 {
	return float64(e.OnSamples) * 1000.0 / float64(e.SampleRate)
}

// goertzelFilter holds one second-order Goertzel recurrence's state.
type goertzelFilter struct {
	coeff float64
	s1    float64
	s2    float64
}

func newGoertzelFilter(freq float64, blockSize int, sampleRate uint32) goertzelFilter {
	k := (float64(blockSize) * freq) / float64(sampleRate)
	omega := 2 * math.Pi * k / float64(blockSize)
	return goertzelFilter{coeff: 2 * math.Cos(omega)}
}

func (g *goertzelFilter) update(sample float64) {
	s0 := sample + g.coeff*g.s1 - g.s2
	g.s2 = g.s1
	g.s1 = s0
}

func (g *goertzelFilter) power() float64 {
	return g.s1*g.s1 + g.s2*g.s2 - g.coeff*g.s1*g.s2
}

func (g *goertzelFilter) reset() {
	g.s1 = 0
	g.s2 = 0
}

// DetectorConfig configures a Detector.
type DetectorConfig struct {
	SampleRate            uint32  // typically 8000
	DetectionThreshold    float64 // minimum per-bank power to consider a tone present
	TwistThreshold        float64 // dB, high-group may exceed low-group by up to this much
	ReverseTwistThreshold float64 // dB, low-group may exceed high-group by up to this much
	MinOnMS               float64 // minimum continuous detection before an event fires
	MinOffMS              float64 // minimum continuous silence before the candidate resets
}

// DefaultDetectorConfig returns the conventional thresholds used throughout
// the telephony industry (twist +6/-8 dB, 40 ms on, 40 ms off).
func DefaultDetectorConfig(sampleRate uint32) DetectorConfig {
	return DetectorConfig{
		SampleRate:            sampleRate,
		DetectionThreshold:    1.0e6,
		TwistThreshold:        6.0,
		ReverseTwistThreshold: 8.0,
		MinOnMS:               40,
		MinOffMS:              40,
	}
}

// Detector runs an eight-filter Goertzel bank over a PCM stream and emits
// Events exactly once per key press, on the block where the on-duration
// gate is first satisfied.
type Detector struct {
	cfg        DetectorConfig
	blockSize  int
	rowFilters [4]goertzelFilter
	colFilters [4]goertzelFilter

	sampleInBlock int

	candidate   byte
	onSamples   int
	offSamples  int
	digitActive bool

	minOnSamples  int
	minOffSamples int
}

// NewDetector constructs a Detector for the given configuration.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.SampleRate == 0 {
		return nil, fmt.Errorf("dtmf: sample rate must be positive")
	}
	blockSize := int(cfg.SampleRate / 100) // ~10ms analysis block
	if blockSize < 8 {
		return nil, fmt.Errorf("dtmf: sample rate %d too low for a usable analysis block", cfg.SampleRate)
	}

	d := &Detector{
		cfg:           cfg,
		blockSize:     blockSize,
		minOnSamples:  int(cfg.MinOnMS * float64(cfg.SampleRate) / 1000.0),
		minOffSamples: int(cfg.MinOffMS * float64(cfg.SampleRate) / 1000.0),
	}
	for i, f := range rowFrequencies {
		d.rowFilters[i] = newGoertzelFilter(f, blockSize, cfg.SampleRate)
	}
	for i, f := range colFrequencies {
		d.colFilters[i] = newGoertzelFilter(f, blockSize, cfg.SampleRate)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "dtmf.NewDetector",
		"block_size": blockSize,
		"sample_rate": cfg.SampleRate,
	}).Debug("DTMF detector created")

	return d, nil
}

// Process feeds one frame of PCM through the detector and returns any
// digit events it emitted. The detector never fails; an input that
// contains no valid tone simply produces no events.
func (d *Detector) Process(samples []int16) []Event {
	var events []Event
	for _, s := range samples {
		x := float64(s)
		for i := range d.rowFilters {
			d.rowFilters[i].update(x)
		}
		for i := range d.colFilters {
			d.colFilters[i].update(x)
		}
		d.sampleInBlock++
		if d.sampleInBlock < d.blockSize {
			continue
		}
		d.sampleInBlock = 0
		if ev, ok := d.evaluateBlock(); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (d *Detector) evaluateBlock() (Event, bool) {
	rowPower := [4]float64{}
	colPower := [4]float64{}
	for i := range d.rowFilters {
		rowPower[i] = d.rowFilters[i].power()
		d.rowFilters[i].reset()
	}
	for i := range d.colFilters {
		colPower[i] = d.colFilters[i].power()
		d.colFilters[i].reset()
	}

	rowIdx, rowMax := argmax(rowPower[:])
	colIdx, colMax := argmax(colPower[:])

	detected := rowMax > d.cfg.DetectionThreshold && colMax > d.cfg.DetectionThreshold
	if detected {
		twist := 10 * math.Log10(colMax/rowMax)
		if twist > d.cfg.TwistThreshold || twist < -d.cfg.ReverseTwistThreshold {
			detected = false
		}
	}

	if !detected {
		return d.onBlockMiss()
	}
	digit := digitTable[rowIdx][colIdx]
	return d.onBlockHit(digit)
}

func (d *Detector) onBlockHit(digit byte) (Event, bool) {
	d.offSamples = 0
	if digit != d.candidate {
		d.candidate = digit
		d.onSamples = d.blockSize
		return Event{}, false
	}
	d.onSamples += d.blockSize
	if !d.digitActive && d.onSamples >= d.minOnSamples {
		d.digitActive = true
		return Event{Digit: digit, OnSamples: d.onSamples, SampleRate: d.cfg.SampleRate}, true
	}
	return Event{}, false
}

func (d *Detector) onBlockMiss() (Event, bool) {
	d.offSamples += d.blockSize
	if d.offSamples >= d.minOffSamples {
		d.candidate = 0
		d.onSamples = 0
		d.digitActive = false
	}
	return Event{}, false
}

// Reset clears all filter and candidate-tracking state.
func (d *Detector) Reset() {
	for i := range d.rowFilters {
		d.rowFilters[i].reset()
	}
	for i := range d.colFilters {
		d.colFilters[i].reset()
	}
	d.sampleInBlock = 0
	d.candidate = 0
	d.onSamples = 0
	d.offSamples = 0
	d.digitActive = false
}

func argmax(p []float64) (int, float64) {
	idx := 0
	max := p[0]
	for i := 1; i < len(p); i++ {
		if p[i] > max {
			max = p[i]
			idx = i
		}
	}
	return idx, max
}
