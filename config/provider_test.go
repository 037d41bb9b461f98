package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestLoadWritesDefaultConfig verifies a missing config file is created with
// the defaults and the provider serves them.
func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callcore.yaml")

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, p.Path())

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Default config file should have been written: %v", err)
	}

	def := Default()
	require.Equal(t, def.AudioBitrate, p.AudioBitrate())
	require.Equal(t, def.VideoFPS, p.VideoFPS())
	require.Equal(t, def.EchoCancellation, p.EchoCancellation())
	require.Equal(t, def.EchoMode, p.EchoMode())
	require.Equal(t, def.NoiseSuppressionMode, p.NoiseSuppressionMode())
	require.Equal(t, def.EchoLatencyMs, p.EchoLatencyMs())
}

// TestLoadReadsExistingConfig verifies file values override the defaults.
func TestLoadReadsExistingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callcore.yaml")

	cfg := Config{
		AudioBitrate:         128,
		VideoFPS:             30,
		EchoCancellation:     false,
		EchoMode:             1,
		NoiseSuppressionMode: 0,
		EchoLatencyMs:        120,
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, uint32(128), p.AudioBitrate())
	require.Equal(t, 30, p.VideoFPS())
	require.False(t, p.EchoCancellation())
	require.Equal(t, 1, p.EchoMode())
	require.Equal(t, 0, p.NoiseSuppressionMode())
	require.Equal(t, 120, p.EchoLatencyMs())
}

// TestLoadEnvOverride verifies CALLCORE_* environment variables take
// precedence over file values.
func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callcore.yaml")
	t.Setenv("CALLCORE_VIDEO_FPS", "25")
	t.Setenv("CALLCORE_AUDIO_BITRATE", "96")

	p, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 25, p.VideoFPS())
	require.Equal(t, uint32(96), p.AudioBitrate())
}

// TestStaticProvider verifies the fixed-configuration wrapper.
func TestStaticProvider(t *testing.T) {
	p := Static(Config{
		AudioBitrate:         48,
		VideoFPS:             20,
		EchoCancellation:     true,
		EchoMode:             2,
		NoiseSuppressionMode: 1,
		EchoLatencyMs:        60,
	})

	require.Empty(t, p.Path())
	require.Equal(t, uint32(48), p.AudioBitrate())
	require.Equal(t, 20, p.VideoFPS())
	require.True(t, p.EchoCancellation())

	snap := p.Snapshot()
	require.Equal(t, 2, snap.EchoMode)
	require.Equal(t, 1, snap.NoiseSuppressionMode)
	require.Equal(t, 60, snap.EchoLatencyMs)
}
