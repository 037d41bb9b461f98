package callcore

// Settings provides the live configuration the engine consumes. Every value
// is read at the moment it is needed, never cached at call start, so
// configuration changes made mid-call take effect between frames.
//
// The config package provides a viper-backed implementation; tests use
// in-memory fakes.
type Settings interface {
	// AudioBitrate returns the audio bit rate for new calls, in kbit/s.
	AudioBitrate() uint32

	// VideoFPS returns the configured screen/video frame-rate tier used
	// to select video encoder parameters.
	VideoFPS() int

	// EchoCancellation reports whether the echo/noise filter pipeline is
	// enabled for the capture and playback paths.
	EchoCancellation() bool

	// EchoMode returns the echo canceller's configured mode.
	EchoMode() int

	// NoiseSuppressionMode returns the noise suppressor's aggressiveness
	// (0 mild through 3 most aggressive).
	NoiseSuppressionMode() int

	// EchoLatencyMs returns the echo path latency hint in milliseconds.
	EchoLatencyMs() int
}
