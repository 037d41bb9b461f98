// Package config provides the viper-backed live settings provider for the
// call engine. Values come from defaults, an optional YAML config file, and
// environment variables, in that precedence order, and file changes are
// picked up while running so the engine sees new values on the next frame.
package config

// Config holds the call engine's configurable values.
type Config struct {
	// AudioBitrate is the audio bit rate for new calls, in kbit/s.
	AudioBitrate uint32 `mapstructure:"audio_bitrate" yaml:"audio_bitrate"`

	// VideoFPS selects the video encoder tier (30, 25 or 20).
	VideoFPS int `mapstructure:"video_fps" yaml:"video_fps"`

	// EchoCancellation enables the capture-path filter pipeline.
	EchoCancellation bool `mapstructure:"echo_cancellation" yaml:"echo_cancellation"`

	// EchoMode is the echo canceller aggressiveness (0-3).
	EchoMode int `mapstructure:"echo_mode" yaml:"echo_mode"`

	// NoiseSuppressionMode is the noise suppressor aggressiveness (0-3).
	NoiseSuppressionMode int `mapstructure:"noise_suppression_mode" yaml:"noise_suppression_mode"`

	// EchoLatencyMs is the acoustic round-trip hint fed to the echo
	// canceller, in milliseconds.
	EchoLatencyMs int `mapstructure:"echo_latency_ms" yaml:"echo_latency_ms"`
}

// Default returns the configuration used when no file or environment
// overrides exist.
func Default() Config {
	return Config{
		AudioBitrate:         64,
		VideoFPS:             20,
		EchoCancellation:     true,
		EchoMode:             3,
		NoiseSuppressionMode: 2,
		EchoLatencyMs:        80,
	}
}
