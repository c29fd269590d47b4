package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectorAccumulatesCounters(t *testing.T) {
	c := New()
	c.RecordSent(1, 160)
	c.RecordSent(1, 160)
	c.RecordReceived(1, 160)
	c.RecordLost(2)
	c.SetJitterMS(3.5)
	c.SetRTTMS(42.0)

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.PacketsSent)
	assert.Equal(t, uint64(320), snap.BytesSent)
	assert.Equal(t, uint64(1), snap.PacketsReceived)
	assert.Equal(t, uint64(2), snap.PacketsLost)
	assert.Equal(t, 3.5, snap.JitterMS)
	assert.Equal(t, 42.0, snap.RTTMS)
}

func TestSnapshotLossRate(t *testing.T) {
	snap := Snapshot{PacketsReceived: 98, PacketsLost: 2}
	assert.InDelta(t, 0.02, snap.LossRate(), 1e-9)
}

func TestSnapshotLossRateWithNoTraffic(t *testing.T) {
	var snap Snapshot
	assert.Equal(t, 0.0, snap.LossRate())
}

func TestCollectorResetZeroesAllFields(t *testing.T) {
	c := New()
	c.RecordSent(5, 800)
	c.SetJitterMS(10)

	c.Reset()
	snap := c.Snapshot()
	assert.Equal(t, Snapshot{}, snap)
}

func TestCollectorConcurrentUpdatesDoNotRace(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordSent(1, 160)
			c.RecordReceived(1, 160)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, uint64(50), snap.PacketsSent)
	assert.Equal(t, uint64(50), snap.PacketsReceived)
}
