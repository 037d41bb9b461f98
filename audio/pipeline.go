package audio

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Sample rates of the processing chain. Capture and playback run at the
// native rate; the filter engines run at the filter rate, a 3:1 conversion.
const (
	NativeSampleRate = 48000
	FilterSampleRate = 16000

	// filterChunk is 10 ms at the filter rate, the granule the engines
	// process.
	filterChunk = FilterSampleRate / 100
)

// farendFrameSamples lists the mono 48 kHz frame lengths accepted as echo
// reference: 40 ms and 60 ms frames, matching what the transport delivers.
var farendFrameSamples = map[int]bool{
	1920: true,
	2880: true,
}

// FilterSettings is the live configuration the pipeline consumes. Values are
// re-read on every captured frame, so settings changes apply between frames
// without restarting the pipeline.
type FilterSettings interface {
	EchoCancellation() bool
	EchoMode() int
	NoiseSuppressionMode() int
	EchoLatencyMs() int
}

// Pipeline is the capture-path DSP service: downsample to the filter rate,
// suppress noise and cancel echo in 10 ms chunks, upsample back. It owns its
// engines and resamplers and guards them with its own mutex, so the capture
// and playback paths can feed it concurrently.
//
// On any engine failure the pipeline degrades to passing audio through
// unfiltered; a bad filter is worse than no filter.
type Pipeline struct {
	mu sync.Mutex

	settings FilterSettings

	down *Resampler
	up   *Resampler

	aec EchoCanceller
	ns  NoiseSuppressor

	// Last configuration the engines were built with, compared against
	// live settings on each frame to detect changes.
	prevEchoMode int
	prevNSMode   int
}

// NewPipeline creates the DSP pipeline. Engines are created lazily on the
// first frame that needs them, so an always-disabled filter costs nothing.
func NewPipeline(settings FilterSettings) *Pipeline {
	logrus.WithFields(logrus.Fields{
		"function": "NewPipeline",
	}).Info("Creating audio DSP pipeline")

	return &Pipeline{
		settings: settings,
		down:     NewDownsampler(),
		up:       NewUpsampler(),
	}
}

// ProcessCapture runs the filter chain over one captured mono frame at the
// native rate, in place. Anything else passes through untouched: the filter
// disabled, a non-native rate, or a frame shorter than one 10 ms chunk.
//
// The frame is downsampled once, each 10 ms chunk is noise-suppressed and
// echo-cancelled with a delay hint of the configured latency plus the
// frame's own duration, and the result is upsampled back over the input.
// When any chunk fails the input is left as captured.
func (p *Pipeline) ProcessCapture(pcm []int16, rate uint32) {
	if p.settings == nil || !p.settings.EchoCancellation() {
		return
	}
	if rate != NativeSampleRate || len(pcm) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ensureEngines() {
		return
	}

	filtered, err := p.down.Process(pcm)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ProcessCapture",
			"error":    err.Error(),
		}).Debug("Downsampling failed, passing audio through")
		return
	}
	if len(filtered) < filterChunk {
		return
	}

	durationMs := len(pcm) * 1000 / NativeSampleRate
	delayMs := p.settings.EchoLatencyMs() + durationMs

	for off := 0; off+filterChunk <= len(filtered); off += filterChunk {
		chunk := filtered[off : off+filterChunk]
		if err := p.ns.Process(chunk); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ProcessCapture",
				"error":    err.Error(),
			}).Warn("Noise suppression failed, passing audio through")
			return
		}
		if err := p.aec.Process(chunk, delayMs); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ProcessCapture",
				"error":    err.Error(),
			}).Warn("Echo cancellation failed, passing audio through")
			return
		}
	}

	restored, err := p.up.Process(filtered)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ProcessCapture",
			"error":    err.Error(),
		}).Debug("Upsampling failed, passing audio through")
		return
	}
	if len(restored) != len(pcm) {
		logrus.WithFields(logrus.Fields{
			"function":      "ProcessCapture",
			"input_samples": len(pcm),
			"restored":      len(restored),
		}).Debug("Filtered length mismatch, passing audio through")
		return
	}

	copy(pcm, restored)
}

// BufferPlayback feeds one received frame into the echo canceller's far-end
// reference. Only mono frames at the native rate with one of the expected
// frame lengths qualify; everything else is silently skipped, playback never
// depends on this succeeding.
func (p *Pipeline) BufferPlayback(pcm []int16, sampleCount int, channels uint8, rate uint32) {
	if p.settings == nil || !p.settings.EchoCancellation() {
		return
	}
	if channels != 1 || rate != NativeSampleRate {
		return
	}
	if !farendFrameSamples[sampleCount] || sampleCount > len(pcm) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ensureEngines() {
		return
	}

	ref, err := p.down.Process(pcm[:sampleCount])
	if err != nil {
		return
	}

	for off := 0; off+filterChunk <= len(ref); off += filterChunk {
		if err := p.aec.BufferFarend(ref[off : off+filterChunk]); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "BufferPlayback",
				"error":    err.Error(),
			}).Debug("Farend buffering failed")
			return
		}
	}
}

// ensureEngines creates or reconfigures the filter engines to match live
// settings. Returns false when an engine cannot be brought up, in which case
// the caller passes audio through. Caller holds p.mu.
func (p *Pipeline) ensureEngines() bool {
	echoMode := p.settings.EchoMode()
	nsMode := p.settings.NoiseSuppressionMode()

	if p.aec == nil {
		aec, err := NewEchoCanceller(EchoConfig{Mode: echoMode})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ensureEngines",
				"error":    err.Error(),
			}).Warn("Echo canceller creation failed, filter disabled")
			return false
		}
		p.aec = aec
		p.prevEchoMode = echoMode
	} else if echoMode != p.prevEchoMode {
		if err := p.aec.SetConfig(EchoConfig{Mode: echoMode}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ensureEngines",
				"mode":     echoMode,
				"error":    err.Error(),
			}).Warn("Echo mode change rejected, keeping previous mode")
		} else {
			p.prevEchoMode = echoMode
		}
	}

	if p.ns == nil {
		ns, err := NewNoiseSuppressor(nsMode)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ensureEngines",
				"error":    err.Error(),
			}).Warn("Noise suppressor creation failed, filter disabled")
			return false
		}
		p.ns = ns
		p.prevNSMode = nsMode
	} else if nsMode != p.prevNSMode {
		if err := p.ns.SetPolicy(nsMode); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ensureEngines",
				"mode":     nsMode,
				"error":    err.Error(),
			}).Warn("Noise suppression mode change rejected, keeping previous mode")
		} else {
			p.prevNSMode = nsMode
		}
	}

	return true
}

// Close releases the filter engines. The pipeline must not be used after.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.aec != nil {
		p.aec.Close()
		p.aec = nil
	}
	if p.ns != nil {
		p.ns.Close()
		p.ns = nil
	}
}
