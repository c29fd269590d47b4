package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtvoice/codec"
	"github.com/opd-ai/rtvoice/dsp"
	"github.com/opd-ai/rtvoice/dtmf"
	"github.com/opd-ai/rtvoice/jitter"
	"github.com/opd-ai/rtvoice/mediaprotect"
	"github.com/opd-ai/rtvoice/rtp"
)

const testTelephoneEventPT = 101

const testFrameSamples = 160 // 20ms @ 8kHz

func newTestSession(t *testing.T) *rtp.Session {
	t.Helper()
	s, err := rtp.NewSession(rtp.Config{PayloadType: codec.PayloadTypePCMU, ClockRate: 8000})
	require.NoError(t, err)
	return s
}

func newTestJitter(t *testing.T) *jitter.Buffer {
	t.Helper()
	b, err := jitter.New(jitter.Config{
		ClockRate:         8000,
		FrameDurationMS:   20,
		Mode:              jitter.Fixed,
		MinDelayMS:        20,
		MaxDelayMS:        200,
		InitialDelayMS:    40,
		Capacity:          16,
		TargetBufferLevel: 4,
		JitterPercentile:  0.95,
	})
	require.NoError(t, err)
	return b
}

func newTestCodec(t *testing.T) codec.Codec {
	t.Helper()
	c, err := codec.NewCodec(codec.PayloadTypePCMU, 8000)
	require.NoError(t, err)
	return c
}

func newTestPipeline(t *testing.T) (*Pipeline, *[][]byte) {
	t.Helper()
	var emitted [][]byte
	cfg := Config{
		Session:      newTestSession(t),
		Jitter:       newTestJitter(t),
		PLC:          jitter.NewPLC(jitter.PLCConfig{Algorithm: jitter.Fade}),
		Codec:        newTestCodec(t),
		FrameSamples: testFrameSamples,
		EncodedOut: func(packet []byte) error {
			emitted = append(emitted, append([]byte(nil), packet...))
			return nil
		},
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p, &emitted
}

func toneFrame(n int, amplitude int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amplitude
		} else {
			out[i] = -amplitude
		}
	}
	return out
}

func TestStartStopTransitions(t *testing.T) {
	p, _ := newTestPipeline(t)
	assert.Equal(t, Stopped, p.State())

	require.NoError(t, p.Start())
	assert.Equal(t, Running, p.State())

	require.NoError(t, p.Stop())
	assert.Equal(t, Stopped, p.State())
}

func TestStartTwiceFromRunningIsRejected(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Start(), ErrInvalidTransition)
}

func TestFailEntersErrorFromAnyState(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())
	require.NoError(t, p.Fail())
	assert.Equal(t, Error, p.State())
	require.NoError(t, p.Stop())
	assert.Equal(t, Stopped, p.State())
}

func TestTicksRejectedOutsideRunning(t *testing.T) {
	p, _ := newTestPipeline(t)
	assert.ErrorIs(t, p.CaptureTick(), ErrNotRunning)
	assert.ErrorIs(t, p.PlaybackTick(), ErrNotRunning)
}

func TestCaptureTickEmitsOnePacketPerFrame(t *testing.T) {
	p, emitted := newTestPipeline(t)
	require.NoError(t, p.Start())

	n, err := p.PushCapture(toneFrame(testFrameSamples, 5000))
	require.NoError(t, err)
	require.Equal(t, testFrameSamples, n)

	require.NoError(t, p.CaptureTick())
	require.Len(t, *emitted, 1)
	assert.NotEmpty(t, (*emitted)[0])
}

func TestCaptureTickAdvancesRTPTimestampByFrameSize(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())

	for i := 0; i < 3; i++ {
		_, err := p.PushCapture(toneFrame(testFrameSamples, 1000))
		require.NoError(t, err)
		require.NoError(t, p.CaptureTick())
	}
	assert.Equal(t, uint32(3*testFrameSamples), p.rtpTimestamp)
}

func TestMutedCaptureStillEmitsButZeroesInput(t *testing.T) {
	p, emitted := newTestPipeline(t)
	require.NoError(t, p.Start())

	p.SetMuted(true)
	_, err := p.PushCapture(toneFrame(testFrameSamples, 8000))
	require.NoError(t, err)
	require.NoError(t, p.CaptureTick())

	require.Len(t, *emitted, 1)
	assert.NotEmpty(t, (*emitted)[0])
	for _, s := range p.captureScratch {
		assert.Equal(t, int16(0), s)
	}
}

func TestReceivePacketForwardsToJitterBufferAndPlaybackDecodes(t *testing.T) {
	p, emitted := newTestPipeline(t)
	require.NoError(t, p.Start())

	_, err := p.PushCapture(toneFrame(testFrameSamples, 6000))
	require.NoError(t, err)
	require.NoError(t, p.CaptureTick())
	require.Len(t, *emitted, 1)

	require.NoError(t, p.ReceivePacket((*emitted)[0]))
	require.NoError(t, p.PlaybackTick())

	out := make([]int16, testFrameSamples)
	n, err := p.PullPlayback(out)
	require.NoError(t, err)
	assert.Equal(t, testFrameSamples, n)
}

func TestPlaybackTickConcealsOnEmptyBuffer(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())

	require.NoError(t, p.PlaybackTick())
	out := make([]int16, testFrameSamples)
	n, err := p.PullPlayback(out)
	require.NoError(t, err)
	assert.Equal(t, testFrameSamples, n)
}

func TestReceivePacketSilentlyCountsGarbageBytes(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())

	err := p.ReceivePacket([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.InvalidPacketCount())
}

func TestControlIntentsApplyBeforeNextCaptureTick(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())

	p.SetVolume(0.5)
	p.SetMuted(true)
	assert.False(t, p.muted)

	_, err := p.PushCapture(toneFrame(testFrameSamples, 100))
	require.NoError(t, err)
	require.NoError(t, p.CaptureTick())

	assert.True(t, p.muted)
	assert.Equal(t, 0.5, p.playbackVolume)
}

func TestSRTPProtectAndUnprotectRoundTripThroughPipeline(t *testing.T) {
	sendCtx := mediaprotect.New()
	key := make([]byte, 16)
	salt := make([]byte, 14)
	for i := range key {
		key[i] = byte(i + 1)
	}
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	require.NoError(t, sendCtx.SetSendKey(key, salt))
	require.NoError(t, sendCtx.SetRecvKey(key, salt))

	var emitted [][]byte
	cfg := Config{
		Session:      newTestSession(t),
		Jitter:       newTestJitter(t),
		PLC:          jitter.NewPLC(jitter.PLCConfig{}),
		Codec:        newTestCodec(t),
		FrameSamples: testFrameSamples,
		Protector:    sendCtx,
		EncodedOut: func(packet []byte) error {
			emitted = append(emitted, append([]byte(nil), packet...))
			return nil
		},
	}
	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Start())

	_, err = p.PushCapture(toneFrame(testFrameSamples, 4000))
	require.NoError(t, err)
	require.NoError(t, p.CaptureTick())
	require.Len(t, emitted, 1)

	require.NoError(t, p.ReceivePacket(emitted[0]))
	assert.Equal(t, uint64(0), p.InvalidPacketCount())
}

func TestSendDTMFEventRejectedWhenNotEnabled(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())
	assert.Error(t, p.SendDTMFEvent('5', 800, 0, true))
}

func TestSendAndReceiveDTMFEventBypassesJitterBuffer(t *testing.T) {
	var emitted [][]byte
	var received []dtmf.TelephoneEvent

	cfg := Config{
		Session:      newTestSession(t),
		Jitter:       newTestJitter(t),
		PLC:          jitter.NewPLC(jitter.PLCConfig{}),
		Codec:        newTestCodec(t),
		FrameSamples: testFrameSamples,
		EncodedOut: func(packet []byte) error {
			emitted = append(emitted, append([]byte(nil), packet...))
			return nil
		},
		TelephoneEventEnabled:     true,
		TelephoneEventPayloadType: testTelephoneEventPT,
		OnTelephoneEvent: func(ev dtmf.TelephoneEvent) {
			received = append(received, ev)
		},
	}
	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Start())

	require.NoError(t, p.SendDTMFEvent('5', 800, 10, true))
	require.Len(t, emitted, 1)

	require.NoError(t, p.ReceivePacket(emitted[0]))
	require.Len(t, received, 1)
	assert.Equal(t, uint8(5), received[0].Event)
	assert.True(t, received[0].End)
	assert.Equal(t, uint16(800), received[0].Duration)

	// No audio payload should have reached the jitter buffer.
	assert.Equal(t, jitter.StatusLost, p.cfg.Jitter.Get().Status)
}

func TestConcurrentCaptureAndPlaybackTicksWithAECDoNotRace(t *testing.T) {
	aec, err := dsp.NewAEC(dsp.DefaultAECConfig())
	require.NoError(t, err)

	var emitted [][]byte
	var mu sync.Mutex
	cfg := Config{
		Session:      newTestSession(t),
		Jitter:       newTestJitter(t),
		PLC:          jitter.NewPLC(jitter.PLCConfig{Algorithm: jitter.Fade}),
		Codec:        newTestCodec(t),
		FrameSamples: testFrameSamples,
		AEC:          aec,
		EncodedOut: func(packet []byte) error {
			mu.Lock()
			emitted = append(emitted, append([]byte(nil), packet...))
			mu.Unlock()
			return nil
		},
	}
	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Start())

	const ticks = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < ticks; i++ {
			_, err := p.PushCapture(toneFrame(testFrameSamples, 2000))
			require.NoError(t, err)
			require.NoError(t, p.CaptureTick())
		}
	}()

	go func() {
		defer wg.Done()
		out := make([]int16, testFrameSamples)
		for i := 0; i < ticks; i++ {
			require.NoError(t, p.PlaybackTick())
			_, err := p.PullPlayback(out)
			require.NoError(t, err)
		}
	}()

	wg.Wait()
}

func TestEnableAGCToggleHasNoEffectWithoutConfiguredBlock(t *testing.T) {
	p, _ := newTestPipeline(t)
	require.NoError(t, p.Start())

	p.EnableAGC(true)
	_, err := p.PushCapture(toneFrame(testFrameSamples, 1000))
	require.NoError(t, err)
	require.NoError(t, p.CaptureTick())
	assert.True(t, p.agcEnabled)
}
