// Package ring provides a fixed-capacity, allocation-free single-producer/
// single-consumer queue used for the capture and playback rings in the
// media pipeline (see the pipeline package).
//
// A Buffer never blocks and never allocates once constructed: Write
// returns a short count when space runs out, Read returns a short count
// when data is unavailable, and callers are expected to treat a short
// result as an overrun/underrun rather than an error. This mirrors how
// a lock-free audio ring works against a real-time capture/playback
// callback, where blocking is not an option.
package ring

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Sample is the set of element types a Buffer can hold.
type Sample interface {
	~int16 | ~byte | ~float32
}

// Buffer is a fixed-capacity SPSC ring over a slice of Sample.
//
// One goroutine may call Write (the producer); a different goroutine may
// call Read (the consumer) concurrently without external locking, as long
// as there is exactly one of each. Read and Write indices are free-running
// counters taken modulo capacity, so wraparound never needs a branch on
// the indices themselves. The indices are atomic.Uint64, matching the
// hot-counter discipline used elsewhere in this module (see
// stats.Collector): each side only ever stores its own index and loads
// the other's, and Go's atomic load/store pair gives the happens-before
// edge the data slice itself needs, so the element writes a producer
// makes before its Store are visible to the consumer after its Load.
type Buffer[T Sample] struct {
	data     []T
	capacity uint64
	readIdx  atomic.Uint64
	writeIdx atomic.Uint64
}

// New creates a Buffer with room for capacity elements.
func New[T Sample](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		logrus.WithFields(logrus.Fields{
			"function": "ring.New",
			"capacity": capacity,
		}).Error("invalid ring buffer capacity")
		return nil, fmt.Errorf("ring: capacity must be positive, got %d", capacity)
	}

	return &Buffer[T]{
		data:     make([]T, capacity),
		capacity: uint64(capacity),
	}, nil
}

// Write copies as many elements of in as fit into the free space of the
// buffer and returns how many were written. A short write (written <
// len(in)) means the buffer is full; the caller must count that as an
// overrun, never silently drop it.
func (b *Buffer[T]) Write(in []T) int {
	avail := b.availableWrite()
	n := len(in)
	if uint64(n) > avail {
		n = int(avail)
	}
	writeIdx := b.writeIdx.Load()
	for i := 0; i < n; i++ {
		b.data[(writeIdx+uint64(i))%b.capacity] = in[i]
	}
	b.writeIdx.Store(writeIdx + uint64(n))
	return n
}

// Read copies as many elements as are available into out and returns how
// many were read. A short read (read < len(out)) means the buffer is
// empty; the caller must count that as an underrun.
func (b *Buffer[T]) Read(out []T) int {
	avail := b.availableRead()
	n := len(out)
	if uint64(n) > avail {
		n = int(avail)
	}
	readIdx := b.readIdx.Load()
	for i := 0; i < n; i++ {
		out[i] = b.data[(readIdx+uint64(i))%b.capacity]
	}
	b.readIdx.Store(readIdx + uint64(n))
	return n
}

// AvailableRead returns the number of elements ready to be read.
func (b *Buffer[T]) AvailableRead() int {
	return int(b.availableRead())
}

// AvailableWrite returns the number of elements of free space remaining.
func (b *Buffer[T]) AvailableWrite() int {
	return int(b.availableWrite())
}

func (b *Buffer[T]) availableRead() uint64 {
	return b.writeIdx.Load() - b.readIdx.Load()
}

func (b *Buffer[T]) availableWrite() uint64 {
	return b.capacity - b.availableRead()
}

// Capacity returns the fixed capacity the buffer was constructed with.
func (b *Buffer[T]) Capacity() int {
	return int(b.capacity)
}

// Reset drops all buffered data and returns the buffer to empty. Reset is
// not safe to call concurrently with Read or Write; it is intended for use
// between sessions, not mid-stream.
func (b *Buffer[T]) Reset() {
	b.readIdx.Store(0)
	b.writeIdx.Store(0)
}
