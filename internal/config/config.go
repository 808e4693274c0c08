// Package config provides the configuration structure for the speech-cache service.
package config

import (
	"errors"
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied after loading when the document leaves fields unset.
const (
	DefaultListenAddr         = ":8080"
	DefaultTimeoutSeconds     = 30
	DefaultAvailabilityPolicy = "best-effort"
)

// Static errors.
var (
	ErrNATSURLEmpty       = errors.New("nats url cannot be empty")
	ErrAudioBucketEmpty   = errors.New("audio bucket cannot be empty")
	ErrPublicBaseURLEmpty = errors.New("public base url cannot be empty")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	AudioBucket            string `toml:"audio_bucket"`
	SpeechRequestedSubject string `toml:"speech_requested_subject"`
	AudioCreatedSubject    string `toml:"audio_created_subject"`
}

// SynthesisConfig holds the configuration for the speech synthesis provider.
type SynthesisConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	DefaultVoiceID string `toml:"default_voice_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ServerConfig holds the configuration for the HTTP surface.
type ServerConfig struct {
	ListenAddr         string `toml:"listen_addr"`
	PublicBaseURL      string `toml:"public_base_url"`
	AvailabilityPolicy string `toml:"availability_policy"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS      NATSConfig      `toml:"nats"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Server    ServerConfig    `toml:"server"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the configuration for the speech-cache service and applies
// defaults for unset optional fields.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}

	if c.Server.AvailabilityPolicy == "" {
		c.Server.AvailabilityPolicy = DefaultAvailabilityPolicy
	}

	if c.Synthesis.TimeoutSeconds == 0 {
		c.Synthesis.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// Validate checks the fields the service cannot start without. Synthesis
// credentials are deliberately not checked here: their absence is surfaced
// per-request as a config error, so the service still serves already-cached
// audio and health checks.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return ErrNATSURLEmpty
	}

	if c.NATS.AudioBucket == "" {
		return ErrAudioBucketEmpty
	}

	if c.Server.PublicBaseURL == "" {
		return ErrPublicBaseURLEmpty
	}

	return nil
}

// SynthesisConfigured reports whether the provider credentials required for
// generating new audio are present.
func (c *Config) SynthesisConfigured() bool {
	return c.Synthesis.BaseURL != "" && c.Synthesis.APIKey != ""
}
