package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/sounder/types"
)

// Config represents a sounder.yaml configuration file.
// All values are optional and act as defaults for sounder flags.
// CLI flags always override config values.
type Config struct {
	Endpoint    string          `yaml:"endpoint"`
	ClientID    string          `yaml:"client_id"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
	Store       StoreConfig     `yaml:"store"`
	GraceWindow Duration        `yaml:"grace_window"`
	JournalDir  string          `yaml:"journal_dir"`
	Adapter     AdapterConfig   `yaml:"adapter"`
	Archive     ArchiveConfig   `yaml:"archive"`
}

// ReconnectConfig holds reconnection policy defaults from the config file.
type ReconnectConfig struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	BaseDelay         Duration `yaml:"base_delay"`
	MaxDelay          Duration `yaml:"max_delay"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
}

// Policy converts the config into a reconnect policy, filling unset
// fields from the default policy.
func (r *ReconnectConfig) Policy() types.ReconnectPolicy {
	p := types.DefaultReconnectPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay.Duration > 0 {
		p.BaseDelay = r.BaseDelay.Duration
	}
	if r.MaxDelay.Duration > 0 {
		p.MaxDelay = r.MaxDelay.Duration
	}
	if r.BackoffMultiplier > 0 {
		p.BackoffMultiplier = r.BackoffMultiplier
	}
	return p
}

// StoreConfig holds persistence defaults from the config file.
type StoreConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// ArchiveConfig holds archive defaults from the config file.
type ArchiveConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
