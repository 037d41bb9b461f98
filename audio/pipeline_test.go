package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// pipelineSettings is an in-memory FilterSettings for tests.
type pipelineSettings struct {
	mu         sync.Mutex
	echoCancel bool
	echoMode   int
	nsMode     int
	latencyMs  int
}

func (s *pipelineSettings) EchoCancellation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.echoCancel
}

func (s *pipelineSettings) EchoMode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.echoMode
}

func (s *pipelineSettings) NoiseSuppressionMode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nsMode
}

func (s *pipelineSettings) EchoLatencyMs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latencyMs
}

func (s *pipelineSettings) set(echoCancel bool, echoMode, nsMode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoCancel = echoCancel
	s.echoMode = echoMode
	s.nsMode = nsMode
}

// recordingCanceller records engine interactions for wiring tests.
type recordingCanceller struct {
	farendChunks  int
	processChunks int
	lastDelayMs   int
	configs       []EchoConfig
}

func (r *recordingCanceller) BufferFarend(samples []int16) error {
	r.farendChunks++
	return nil
}

func (r *recordingCanceller) Process(samples []int16, delayMs int) error {
	r.processChunks++
	r.lastDelayMs = delayMs
	return nil
}

func (r *recordingCanceller) SetConfig(cfg EchoConfig) error {
	r.configs = append(r.configs, cfg)
	return nil
}

func (r *recordingCanceller) Close() error { return nil }

type recordingSuppressor struct {
	chunks   int
	policies []int
}

func (r *recordingSuppressor) Process(samples []int16) error {
	r.chunks++
	return nil
}

func (r *recordingSuppressor) SetPolicy(mode int) error {
	r.policies = append(r.policies, mode)
	return nil
}

func (r *recordingSuppressor) Close() error { return nil }

func testPipeline(settings *pipelineSettings) (*Pipeline, *recordingCanceller, *recordingSuppressor) {
	p := NewPipeline(settings)
	aec := &recordingCanceller{}
	ns := &recordingSuppressor{}
	p.aec = aec
	p.ns = ns
	p.prevEchoMode = settings.EchoMode()
	p.prevNSMode = settings.NoiseSuppressionMode()
	return p, aec, ns
}

// TestProcessCaptureChunking verifies a 40ms native frame turns into four
// 10ms chunks at the filter rate, each run through both engines, with the
// delay hint covering latency plus the frame duration.
func TestProcessCaptureChunking(t *testing.T) {
	settings := &pipelineSettings{echoCancel: true, echoMode: 2, nsMode: 1, latencyMs: 80}
	p, aec, ns := testPipeline(settings)

	pcm := make([]int16, 1920) // 40 ms mono at 48 kHz
	p.ProcessCapture(pcm, NativeSampleRate)

	require.Equal(t, 4, ns.chunks)
	require.Equal(t, 4, aec.processChunks)
	require.Equal(t, 80+40, aec.lastDelayMs)
}

// TestProcessCaptureGating verifies disabled filtering, wrong rates and
// empty frames pass through without touching the engines.
func TestProcessCaptureGating(t *testing.T) {
	settings := &pipelineSettings{echoCancel: false, latencyMs: 80}
	p, aec, ns := testPipeline(settings)

	pcm := make([]int16, 1920)
	p.ProcessCapture(pcm, NativeSampleRate)
	require.Zero(t, ns.chunks, "disabled filter must not process")

	settings.set(true, 0, 0)
	p.prevEchoMode = 0
	p.prevNSMode = 0

	p.ProcessCapture(pcm, 44100)
	require.Zero(t, ns.chunks, "non-native rate must not process")

	p.ProcessCapture(nil, NativeSampleRate)
	require.Zero(t, ns.chunks, "empty frame must not process")

	p.ProcessCapture(pcm, NativeSampleRate)
	require.Equal(t, 4, ns.chunks)
	require.Equal(t, 4, aec.processChunks)
}

// TestProcessCaptureConfigChange verifies live settings changes reconfigure
// the engines between frames.
func TestProcessCaptureConfigChange(t *testing.T) {
	settings := &pipelineSettings{echoCancel: true, echoMode: 1, nsMode: 1, latencyMs: 40}
	p, aec, ns := testPipeline(settings)

	pcm := make([]int16, 480)
	p.ProcessCapture(pcm, NativeSampleRate)
	require.Empty(t, aec.configs, "unchanged settings must not reconfigure")

	settings.set(true, 3, 2)
	p.ProcessCapture(pcm, NativeSampleRate)

	require.Equal(t, []EchoConfig{{Mode: 3}}, aec.configs)
	require.Equal(t, []int{2}, ns.policies)
}

// TestBufferPlaybackGating verifies only mono native-rate frames of the
// expected lengths feed the far-end reference.
func TestBufferPlaybackGating(t *testing.T) {
	settings := &pipelineSettings{echoCancel: true, latencyMs: 80}
	p, aec, _ := testPipeline(settings)

	pcm := make([]int16, 2880)

	p.BufferPlayback(pcm, 1920, 1, NativeSampleRate)
	require.Equal(t, 4, aec.farendChunks, "40ms frame should buffer four chunks")

	p.BufferPlayback(pcm, 2880, 1, NativeSampleRate)
	require.Equal(t, 4+6, aec.farendChunks, "60ms frame should buffer six chunks")

	// Everything else is skipped.
	p.BufferPlayback(pcm, 960, 1, NativeSampleRate)
	p.BufferPlayback(pcm, 1920, 2, NativeSampleRate)
	p.BufferPlayback(pcm, 1920, 1, 44100)
	require.Equal(t, 10, aec.farendChunks)

	// Disabled filter buffers nothing.
	settings.set(false, 0, 0)
	p.BufferPlayback(pcm, 1920, 1, NativeSampleRate)
	require.Equal(t, 10, aec.farendChunks)
}

// TestProcessCaptureWithRealEngines runs the full chain end to end and
// verifies the frame keeps its length and the pipeline stays stable over
// consecutive frames.
func TestProcessCaptureWithRealEngines(t *testing.T) {
	settings := &pipelineSettings{echoCancel: true, echoMode: 2, nsMode: 2, latencyMs: 40}
	p := NewPipeline(settings)
	defer p.Close()

	playback := make([]int16, 1920)
	capture := make([]int16, 1920)
	for i := range playback {
		playback[i] = int16((i % 320) * 50)
		capture[i] = int16((i % 480) * 20)
	}

	for frame := 0; frame < 5; frame++ {
		p.BufferPlayback(playback, len(playback), 1, NativeSampleRate)
		buf := make([]int16, len(capture))
		copy(buf, capture)
		p.ProcessCapture(buf, NativeSampleRate)
		require.Len(t, buf, 1920)
	}
}

// TestPipelineClose verifies Close is safe to call and to call twice.
func TestPipelineClose(t *testing.T) {
	settings := &pipelineSettings{echoCancel: true, latencyMs: 40}
	p := NewPipeline(settings)
	p.ProcessCapture(make([]int16, 480), NativeSampleRate)
	p.Close()
	p.Close()
}
