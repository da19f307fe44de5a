/*
 * This file is part of ASIO Bridge (https://github.com/openasio/asio-bridge-go).
 * Copyright (C) 2025 OpenASIO Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SizePolicy names the buffer size resolution policy advertised through the
// buffer size range's granularity field.
type SizePolicy string

const (
	// SizePolicyGranular allows any size between min and max on the
	// granularity grid.
	SizePolicyGranular SizePolicy = "granular"
	// SizePolicyFixed allows only the preferred size (granularity 0).
	SizePolicyFixed SizePolicy = "fixed"
	// SizePolicyPow2 allows only powers of two (granularity -1).
	SizePolicyPow2 SizePolicy = "pow2"
)

// Config is the complete driver configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Stream  StreamConfig  `yaml:"stream"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
}

// DeviceConfig selects the backend host API and devices.
type DeviceConfig struct {
	// HostAPI selects a backend host API by display name. Empty means the
	// backend default.
	HostAPI string `yaml:"host_api"`
	// InputDevice and OutputDevice select devices by name within the host
	// API. Empty means the host API default. "none" disables the direction.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`
	// MaxInputChannels and MaxOutputChannels cap the channel counts exposed
	// to the host. 0 means all channels the device offers.
	MaxInputChannels  int `yaml:"max_input_channels"`
	MaxOutputChannels int `yaml:"max_output_channels"`
}

// StreamConfig controls buffer sizing and stream opening.
type StreamConfig struct {
	MinBufferFrames       int        `yaml:"min_buffer_frames"`
	MaxBufferFrames       int        `yaml:"max_buffer_frames"`
	PreferredBufferFrames int        `yaml:"preferred_buffer_frames"`
	BufferGranularity     int        `yaml:"buffer_granularity"`
	SizePolicy            SizePolicy `yaml:"size_policy"`
	// SuggestedLatencyMs is passed to the backend as the suggested stream
	// latency. 0 means the device's default low latency.
	SuggestedLatencyMs int `yaml:"suggested_latency_ms"`
	// SafetyMarginFrames widens the advertised minimum above the backend's
	// absolute floor.
	SafetyMarginFrames int `yaml:"safety_margin_frames"`
	// WASAPIExclusive attaches a WASAPI exclusive-mode extension block when
	// the resolved host API is WASAPI.
	WASAPIExclusive bool `yaml:"wasapi_exclusive"`
}

// LoggingConfig controls the process-wide logging sink.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// EventsConfig controls lifecycle event publishing over NATS.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Stream: StreamConfig{
			MinBufferFrames:       64,
			MaxBufferFrames:       8192,
			PreferredBufferFrames: 512,
			BufferGranularity:     64,
			SizePolicy:            SizePolicyGranular,
			SafetyMarginFrames:    0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Address: ":9120",
		},
		Events: EventsConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "asio.driver",
		},
	}
}

// Load reads and parses the configuration file, filling unset fields with
// defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}
	return nil
}

// Validate validates device selection.
func (d *DeviceConfig) Validate() error {
	if d.MaxInputChannels < 0 {
		return fmt.Errorf("max_input_channels cannot be negative, got %d", d.MaxInputChannels)
	}
	if d.MaxOutputChannels < 0 {
		return fmt.Errorf("max_output_channels cannot be negative, got %d", d.MaxOutputChannels)
	}
	if d.InputDevice == "none" && d.OutputDevice == "none" {
		return fmt.Errorf("input_device and output_device cannot both be disabled")
	}
	return nil
}

// Validate validates buffer sizing.
func (s *StreamConfig) Validate() error {
	if s.MinBufferFrames < 1 {
		return fmt.Errorf("min_buffer_frames must be at least 1, got %d", s.MinBufferFrames)
	}
	if s.MaxBufferFrames < s.MinBufferFrames {
		return fmt.Errorf("max_buffer_frames (%d) must be at least min_buffer_frames (%d)",
			s.MaxBufferFrames, s.MinBufferFrames)
	}
	if s.PreferredBufferFrames < s.MinBufferFrames || s.PreferredBufferFrames > s.MaxBufferFrames {
		return fmt.Errorf("preferred_buffer_frames (%d) must be within [%d, %d]",
			s.PreferredBufferFrames, s.MinBufferFrames, s.MaxBufferFrames)
	}

	switch s.SizePolicy {
	case SizePolicyGranular:
		if s.BufferGranularity < 1 {
			return fmt.Errorf("buffer_granularity must be at least 1 for the granular policy, got %d", s.BufferGranularity)
		}
		if (s.PreferredBufferFrames-s.MinBufferFrames)%s.BufferGranularity != 0 {
			return fmt.Errorf("preferred_buffer_frames (%d) is not reachable from min_buffer_frames (%d) with granularity %d",
				s.PreferredBufferFrames, s.MinBufferFrames, s.BufferGranularity)
		}
	case SizePolicyFixed:
		// Only the preferred size is legal; granularity is ignored.
	case SizePolicyPow2:
		if s.PreferredBufferFrames&(s.PreferredBufferFrames-1) != 0 {
			return fmt.Errorf("preferred_buffer_frames (%d) must be a power of two for the pow2 policy", s.PreferredBufferFrames)
		}
	default:
		return fmt.Errorf("size_policy must be one of [granular, fixed, pow2], got %q", s.SizePolicy)
	}

	if s.SuggestedLatencyMs < 0 {
		return fmt.Errorf("suggested_latency_ms cannot be negative, got %d", s.SuggestedLatencyMs)
	}
	if s.SafetyMarginFrames < 0 {
		return fmt.Errorf("safety_margin_frames cannot be negative, got %d", s.SafetyMarginFrames)
	}
	return nil
}

// Validate validates logging settings.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got %q", l.Format)
	}
	return nil
}

// Validate validates event publishing settings.
func (e *EventsConfig) Validate() error {
	if e.Enabled && e.URL == "" {
		return fmt.Errorf("url cannot be empty when events are enabled")
	}
	if e.Enabled && e.SubjectPrefix == "" {
		return fmt.Errorf("subject_prefix cannot be empty when events are enabled")
	}
	return nil
}

// SuggestedLatency returns the configured suggested latency as a
// time.Duration, or 0 when the device default should be used.
func (s *StreamConfig) SuggestedLatency() time.Duration {
	return time.Duration(s.SuggestedLatencyMs) * time.Millisecond
}

// Granularity returns the granularity value to advertise in the buffer size
// range for the configured policy.
func (s *StreamConfig) Granularity() int {
	switch s.SizePolicy {
	case SizePolicyFixed:
		return 0
	case SizePolicyPow2:
		return -1
	}
	return s.BufferGranularity
}
