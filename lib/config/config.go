// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "TRACEWIRE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs.
	Development Environment = "development"
	// Production is for long-running encoders feeding an agent.
	Production Environment = "production"
)

// Default sizes, matching the encoder's own defaults.
const (
	DefaultDictionarySize    = 2 << 20
	DefaultMessageBufferSize = 2 << 20
	DefaultFlushInterval     = "1s"
	DefaultQueueSize         = 1024
)

// Config is the tracewire configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Encoder settings sit at the top level of the file.
	Encoder EncoderConfig `yaml:",inline"`

	// Spool configures where payloads are stored when they are not
	// written to a single output file.
	Spool SpoolConfig `yaml:"spool"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Empty and zero values leave the base value in place.
type ConfigOverrides struct {
	Encoder *EncoderConfig `yaml:"encoder,omitempty"`
	Spool   *SpoolConfig   `yaml:"spool,omitempty"`
}

// EncoderConfig configures trace encoding.
type EncoderConfig struct {
	// Endpoint is the agent wire version: "v0.5" or "v0.4".
	// Default: v0.5
	Endpoint string `yaml:"endpoint"`

	// DictionarySize is the initial capacity in bytes of the v0.5
	// string dictionary.
	DictionarySize int `yaml:"dictionary_size"`

	// MessageBufferSize caps the encoded traces of one payload, in
	// bytes.
	MessageBufferSize int `yaml:"message_buffer_size"`

	// FlushInterval is how often a long-running encoder flushes, as a
	// Go duration string.
	// Default: 1s
	FlushInterval string `yaml:"flush_interval"`

	// QueueSize is how many submitted traces may wait for the encoder.
	QueueSize int `yaml:"queue_size"`
}

// SpoolConfig configures the payload spool.
type SpoolConfig struct {
	// Dir is the spool directory.
	// Default: ${HOME}/.cache/tracewire/spool
	Dir string `yaml:"dir"`

	// Compression is "none", "lz4", or "zstd".
	// Default: none (development), zstd (production)
	Compression string `yaml:"compression"`
}

// Default returns the default configuration, also used as the base the
// config file is loaded over.
func Default() *Config {
	return &Config{
		Environment: Development,
		Encoder: EncoderConfig{
			Endpoint:          "v0.5",
			DictionarySize:    DefaultDictionarySize,
			MessageBufferSize: DefaultMessageBufferSize,
			FlushInterval:     DefaultFlushInterval,
			QueueSize:         DefaultQueueSize,
		},
		Spool: SpoolConfig{
			Dir:         "${HOME}/.cache/tracewire/spool",
			Compression: "none",
		},
	}
}

// Load loads configuration from the file named by TRACEWIRE_CONFIG.
// It fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your tracewire.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// matching environment overrides, and expands path variables. The
// result is not validated; call Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.ExpandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{Spool: &SpoolConfig{Compression: "zstd"}}
		}
	}

	if overrides == nil {
		return
	}

	if encoder := overrides.Encoder; encoder != nil {
		if encoder.Endpoint != "" {
			c.Encoder.Endpoint = encoder.Endpoint
		}
		if encoder.DictionarySize != 0 {
			c.Encoder.DictionarySize = encoder.DictionarySize
		}
		if encoder.MessageBufferSize != 0 {
			c.Encoder.MessageBufferSize = encoder.MessageBufferSize
		}
		if encoder.FlushInterval != "" {
			c.Encoder.FlushInterval = encoder.FlushInterval
		}
		if encoder.QueueSize != 0 {
			c.Encoder.QueueSize = encoder.QueueSize
		}
	}

	if spool := overrides.Spool; spool != nil {
		if spool.Dir != "" {
			c.Spool.Dir = spool.Dir
		}
		if spool.Compression != "" {
			c.Spool.Compression = spool.Compression
		}
	}
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. LoadFile calls it; callers that start from Default call it
// themselves.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	if c.Spool.Dir != "" {
		c.Spool.Dir = filepath.Clean(expandVars(c.Spool.Dir, vars))
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// FlushIntervalDuration parses FlushInterval.
func (c *EncoderConfig) FlushIntervalDuration() (time.Duration, error) {
	interval, err := time.ParseDuration(c.FlushInterval)
	if err != nil {
		return 0, fmt.Errorf("flush_interval: %w", err)
	}
	return interval, nil
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	endpoints := []string{"v0.5", "v0.4"}
	if !slices.Contains(endpoints, c.Encoder.Endpoint) {
		errs = append(errs, fmt.Errorf("endpoint must be one of: %v", endpoints))
	}
	if c.Encoder.DictionarySize <= 0 {
		errs = append(errs, fmt.Errorf("dictionary_size must be positive, got %d", c.Encoder.DictionarySize))
	}
	if c.Encoder.MessageBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("message_buffer_size must be positive, got %d", c.Encoder.MessageBufferSize))
	}
	if interval, err := c.Encoder.FlushIntervalDuration(); err != nil {
		errs = append(errs, err)
	} else if interval <= 0 {
		errs = append(errs, fmt.Errorf("flush_interval must be positive, got %s", interval))
	}
	if c.Encoder.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue_size must not be negative, got %d", c.Encoder.QueueSize))
	}

	compressions := []string{"none", "lz4", "zstd"}
	if !slices.Contains(compressions, c.Spool.Compression) {
		errs = append(errs, fmt.Errorf("spool.compression must be one of: %v", compressions))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
