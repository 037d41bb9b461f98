package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "CALLCORE_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "callcore.yaml"
)

// Provider is the live settings source handed to the call engine. It
// implements the engine's Settings interface: every getter re-reads the
// current snapshot, so config-file edits apply between frames without a
// restart.
type Provider struct {
	mu  sync.RWMutex
	cfg Config

	path string
}

// Load builds the settings provider from defaults, an optional YAML config
// file, and CALLCORE_* environment variables, in that precedence order.
//
// When no config file exists at the resolved path, one is written with the
// defaults so users have something to edit. The file is then watched and
// re-read on change.
func Load(explicitPath string) (*Provider, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("audio_bitrate", cfg.AudioBitrate)
	v.SetDefault("video_fps", cfg.VideoFPS)
	v.SetDefault("echo_cancellation", cfg.EchoCancellation)
	v.SetDefault("echo_mode", cfg.EchoMode)
	v.SetDefault("noise_suppression_mode", cfg.NoiseSuppressionMode)
	v.SetDefault("echo_latency_ms", cfg.EchoLatencyMs)

	v.SetEnvPrefix("CALLCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Load",
					"path":     configPath,
					"error":    writeErr.Error(),
				}).Warn("Failed to write default config")
			} else {
				logrus.WithFields(logrus.Fields{
					"function": "Load",
					"path":     configPath,
				}).Info("Created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Load",
					"path":     configPath,
					"error":    readErr.Error(),
				}).Warn("Failed to read config after writing default")
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	p := &Provider{cfg: cfg, path: configPath}

	v.OnConfigChange(func(_ fsnotify.Event) {
		next := Default()
		if err := v.Unmarshal(&next); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     configPath,
				"error":    err.Error(),
			}).Warn("Ignoring config change, unmarshal failed")
			return
		}
		p.mu.Lock()
		p.cfg = next
		p.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     configPath,
		}).Info("Reloaded configuration")
	})
	v.WatchConfig()

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     configPath,
	}).Info("Configuration loaded")

	return p, nil
}

// Static wraps a fixed configuration as a Provider, for callers that manage
// configuration themselves.
func Static(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Path returns the config file path backing this provider, empty for a
// static provider.
func (p *Provider) Path() string {
	return p.path
}

// Snapshot returns a copy of the current configuration.
func (p *Provider) Snapshot() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// AudioBitrate returns the audio bit rate for new calls, in kbit/s.
func (p *Provider) AudioBitrate() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.AudioBitrate
}

// VideoFPS returns the configured video frame-rate tier.
func (p *Provider) VideoFPS() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.VideoFPS
}

// EchoCancellation reports whether the filter pipeline is enabled.
func (p *Provider) EchoCancellation() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.EchoCancellation
}

// EchoMode returns the echo canceller mode.
func (p *Provider) EchoMode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.EchoMode
}

// NoiseSuppressionMode returns the noise suppressor aggressiveness.
func (p *Provider) NoiseSuppressionMode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.NoiseSuppressionMode
}

// EchoLatencyMs returns the echo path latency hint in milliseconds.
func (p *Provider) EchoLatencyMs() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.EchoLatencyMs
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
