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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate(), "defaults must be valid")

	assert.Equal(t, 64, cfg.Stream.MinBufferFrames)
	assert.Equal(t, 8192, cfg.Stream.MaxBufferFrames)
	assert.Equal(t, 512, cfg.Stream.PreferredBufferFrames)
	assert.Equal(t, SizePolicyGranular, cfg.Stream.SizePolicy)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoad(t *testing.T) {
	t.Run("missing_file_yields_defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("partial_file_keeps_defaults", func(t *testing.T) {
		path := writeConfig(t, `
device:
  host_api: "Windows WASAPI"
  output_device: "Speakers"
stream:
  preferred_buffer_frames: 256
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Windows WASAPI", cfg.Device.HostAPI)
		assert.Equal(t, "Speakers", cfg.Device.OutputDevice)
		assert.Equal(t, 256, cfg.Stream.PreferredBufferFrames)
		assert.Equal(t, 64, cfg.Stream.MinBufferFrames, "unset fields keep their defaults")
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("full_file", func(t *testing.T) {
		path := writeConfig(t, `
device:
  input_device: none
  max_output_channels: 2
stream:
  size_policy: pow2
  preferred_buffer_frames: 1024
  suggested_latency_ms: 20
  wasapi_exclusive: true
logging:
  level: debug
  format: json
metrics:
  enabled: true
  address: ":9300"
events:
  enabled: true
  url: "nats://broker:4222"
  subject_prefix: "audio.driver"
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "none", cfg.Device.InputDevice)
		assert.Equal(t, SizePolicyPow2, cfg.Stream.SizePolicy)
		assert.True(t, cfg.Stream.WASAPIExclusive)
		assert.Equal(t, 20*time.Millisecond, cfg.Stream.SuggestedLatency())
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, ":9300", cfg.Metrics.Address)
		assert.Equal(t, "audio.driver", cfg.Events.SubjectPrefix)
	})

	t.Run("malformed_yaml", func(t *testing.T) {
		path := writeConfig(t, "stream: [not a mapping")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("invalid_values", func(t *testing.T) {
		path := writeConfig(t, `
stream:
  min_buffer_frames: 0
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "valid_defaults",
			mutate:  func(cfg *Config) {},
			wantErr: "",
		},
		{
			name: "both_devices_disabled",
			mutate: func(cfg *Config) {
				cfg.Device.InputDevice = "none"
				cfg.Device.OutputDevice = "none"
			},
			wantErr: "cannot both be disabled",
		},
		{
			name: "negative_channel_cap",
			mutate: func(cfg *Config) {
				cfg.Device.MaxInputChannels = -1
			},
			wantErr: "max_input_channels cannot be negative",
		},
		{
			name: "max_below_min",
			mutate: func(cfg *Config) {
				cfg.Stream.MaxBufferFrames = 32
			},
			wantErr: "max_buffer_frames",
		},
		{
			name: "preferred_outside_range",
			mutate: func(cfg *Config) {
				cfg.Stream.PreferredBufferFrames = 16384
			},
			wantErr: "preferred_buffer_frames",
		},
		{
			name: "preferred_off_grid",
			mutate: func(cfg *Config) {
				cfg.Stream.PreferredBufferFrames = 100
			},
			wantErr: "not reachable",
		},
		{
			name: "pow2_preferred_not_power_of_two",
			mutate: func(cfg *Config) {
				cfg.Stream.SizePolicy = SizePolicyPow2
				cfg.Stream.PreferredBufferFrames = 448
			},
			wantErr: "power of two",
		},
		{
			name: "unknown_policy",
			mutate: func(cfg *Config) {
				cfg.Stream.SizePolicy = "adaptive"
			},
			wantErr: "size_policy",
		},
		{
			name: "bad_log_level",
			mutate: func(cfg *Config) {
				cfg.Logging.Level = "verbose"
			},
			wantErr: "level must be one of",
		},
		{
			name: "bad_log_format",
			mutate: func(cfg *Config) {
				cfg.Logging.Format = "xml"
			},
			wantErr: "format must be",
		},
		{
			name: "events_enabled_without_url",
			mutate: func(cfg *Config) {
				cfg.Events.Enabled = true
				cfg.Events.URL = ""
			},
			wantErr: "url cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGranularity(t *testing.T) {
	stream := StreamConfig{SizePolicy: SizePolicyGranular, BufferGranularity: 32}
	assert.Equal(t, 32, stream.Granularity())

	stream.SizePolicy = SizePolicyFixed
	assert.Equal(t, 0, stream.Granularity(), "fixed sizing advertises granularity 0")

	stream.SizePolicy = SizePolicyPow2
	assert.Equal(t, -1, stream.Granularity(), "power-of-two sizing advertises granularity -1")
}
