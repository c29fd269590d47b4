package rtp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTimeProvider struct{ t time.Time }

func (f *fixedTimeProvider) Now() time.Time { return f.t }

func (f *fixedTimeProvider) advance(d time.Duration) { f.t = f.t.Add(d) }

type sequentialSSRCProvider struct{ next uint32 }

func (s *sequentialSSRCProvider) GenerateSSRC() (uint32, error) {
	s.next++
	return s.next, nil
}

func newTestSession(t *testing.T, clockRate uint32) (*Session, *fixedTimeProvider) {
	t.Helper()
	tp := &fixedTimeProvider{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := NewSessionWithProviders(Config{
		PayloadType: 0,
		ClockRate:   clockRate,
	}, tp, &sequentialSSRCProvider{})
	require.NoError(t, err)
	return s, tp
}

func TestCreateAndReceivePacketRoundTrip(t *testing.T) {
	s, _ := newTestSession(t, 8000)

	data, err := s.CreatePacket([]byte("hello"), 160, false)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	recv, _ := newTestSession(t, 8000)
	payload, err := recv.ReceivePacket(data)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)

	stats := recv.Statistics()
	assert.Equal(t, uint64(1), stats.PacketsReceived)
	assert.Equal(t, uint64(5), stats.BytesReceived)
}

func TestReceivePacketRejectsShortData(t *testing.T) {
	s, _ := newTestSession(t, 8000)
	_, err := s.ReceivePacket([]byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestSequenceWrapIncrementsCycles(t *testing.T) {
	s, _ := newTestSession(t, 8000)

	data1, err := s.CreatePacket(nil, 0, false)
	require.NoError(t, err)
	recv, _ := newTestSession(t, 8000)
	_, err = recv.ReceivePacket(data1)
	require.NoError(t, err)

	// Force the sequence number near wraparound, then wrap it.
	recv.recv.maxSeq = 65535
	seq := uint16(0)
	data2, err := createPacket(0, s.LocalSSRC(), seq, 160, false, nil)
	require.NoError(t, err)
	_, err = recv.ReceivePacket(data2)
	require.NoError(t, err)

	assert.Equal(t, uint32(1<<16), recv.recv.cycles)
}

func TestLargeDropoutNotCountedAsLoss(t *testing.T) {
	s, _ := newTestSession(t, 8000)
	recv, _ := newTestSession(t, 8000)

	data1, err := s.CreatePacket(nil, 0, false)
	require.NoError(t, err)
	_, err = recv.ReceivePacket(data1)
	require.NoError(t, err)

	farSeq := recv.recv.maxSeq + maxDropout + 500
	data2, err := createPacket(0, s.LocalSSRC(), farSeq, 160, false, nil)
	require.NoError(t, err)
	payload, err := recv.ReceivePacket(data2)
	require.NoError(t, err)
	assert.Nil(t, payload, "restart candidate must not be delivered")

	stats := recv.Statistics()
	assert.Equal(t, uint64(1), stats.PacketsReceived, "dropout candidate must not bump packetsReceived")
}

func TestRemoteSSRCChangeResetsAndCounts(t *testing.T) {
	sA, _ := newTestSession(t, 8000)
	sB, err := NewSessionWithProviders(Config{SSRC: sA.LocalSSRC() + 1, ClockRate: 8000}, nil, nil)
	require.NoError(t, err)
	recv, _ := newTestSession(t, 8000)

	dataA, err := sA.CreatePacket(nil, 0, false)
	require.NoError(t, err)
	_, err = recv.ReceivePacket(dataA)
	require.NoError(t, err)

	dataB, err := sB.CreatePacket(nil, 0, false)
	require.NoError(t, err)
	_, err = recv.ReceivePacket(dataB)
	require.NoError(t, err)

	stats := recv.Statistics()
	assert.Equal(t, uint64(1), stats.SSRCChanges)
	assert.Equal(t, sB.LocalSSRC(), recv.remoteSSRC)
}

func TestJitterAccumulatesOnVariableArrival(t *testing.T) {
	s, _ := newTestSession(t, 8000)
	recv, tp := newTestSession(t, 8000)

	ts := uint32(0)
	for i := 0; i < 5; i++ {
		data, err := createPacket(0, s.LocalSSRC(), uint16(i), ts, false, nil)
		require.NoError(t, err)
		_, err = recv.ReceivePacket(data)
		require.NoError(t, err)

		ts += 160
		tp.advance(time.Duration(20+10*(i%2)) * time.Millisecond)
	}

	stats := recv.Statistics()
	assert.Greater(t, stats.Jitter, 0.0)
}

func TestBuildRRFailsWithoutRemoteSSRC(t *testing.T) {
	s, _ := newTestSession(t, 8000)
	_, err := s.BuildRR()
	require.ErrorIs(t, err, ErrNoRemoteSSRC)
}

func TestRTCPSRRRRoundTrip(t *testing.T) {
	local, _ := newTestSession(t, 8000)
	remote, _ := newTestSession(t, 8000)

	// local sends media to remote so remote has a tracked SSRC.
	rtpData, err := local.CreatePacket([]byte("x"), 160, false)
	require.NoError(t, err)
	_, err = remote.ReceivePacket(rtpData)
	require.NoError(t, err)

	sr, err := local.BuildSR()
	require.NoError(t, err)
	require.NoError(t, remote.ProcessRTCP(sr))

	rr, err := remote.BuildRR()
	require.NoError(t, err)
	require.NoError(t, local.ProcessRTCP(rr))

	stats := local.Statistics()
	assert.GreaterOrEqual(t, stats.RTTMillis, 0.0)
}

func TestBuildByeMarksRemoteLeft(t *testing.T) {
	local, _ := newTestSession(t, 8000)
	remote, _ := newTestSession(t, 8000)

	rtpData, err := local.CreatePacket(nil, 0, false)
	require.NoError(t, err)
	_, err = remote.ReceivePacket(rtpData)
	require.NoError(t, err)

	bye, err := local.BuildBye("done")
	require.NoError(t, err)
	require.NoError(t, remote.ProcessRTCP(bye))

	assert.True(t, remote.Statistics().RemoteLeft)
}
