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

// Package device resolves the backend host API, devices and formats the
// driver exposes to the host application.
package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/openasio/asio-bridge-go/internal/asio"
	"github.com/openasio/asio-bridge-go/internal/backend"
	"github.com/openasio/asio-bridge-go/internal/config"
	"github.com/openasio/asio-bridge-go/internal/diag"
	"github.com/openasio/asio-bridge-go/internal/translate"
)

// DisabledDevice is the configuration value that disables one direction.
const DisabledDevice = "none"

// Selection is the resolved device set for one driver session. Once a
// session reports channel descriptors from a Selection, the Selection is
// never mutated.
type Selection struct {
	HostAPI backend.HostAPI

	HasInput  bool
	HasOutput bool
	Input     backend.Device
	Output    backend.Device

	InputChannels  int
	OutputChannels int

	SampleType        asio.SampleType
	DefaultSampleRate float64
}

// Resolver picks devices and answers format queries against the backend.
type Resolver struct {
	backend backend.Backend
	cfg     *config.Config
	log     *slog.Logger
}

// NewResolver creates a resolver over an initialized backend.
func NewResolver(b backend.Backend, cfg *config.Config, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{backend: b, cfg: cfg, log: log}
}

// Resolve selects the host API and devices according to the configuration.
// It fails with NotPresent when no usable device exists and with
// HardwareMalfunction when the backend reports a fault.
func (r *Resolver) Resolve() (*Selection, error) {
	hostAPIs, err := r.backend.HostAPIs()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating host APIs: %w", translate.ToASIO(err), err)
	}
	if len(hostAPIs) == 0 {
		return nil, fmt.Errorf("%w: backend exposes no host APIs", asio.ErrNotPresent)
	}

	devices, err := r.backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating devices: %w", translate.ToASIO(err), err)
	}

	api, err := r.selectHostAPI(hostAPIs, devices)
	if err != nil {
		return nil, err
	}
	r.log.Info("resolved host API", "description", diag.DescribeHostAPI(api))

	sel := &Selection{
		HostAPI: api,
		// PortAudio's native float32 layout on little-endian hosts. The
		// resolver never substitutes another type silently; a host that
		// needs a different layout is refused at format negotiation.
		SampleType: asio.Float32LSB,
	}

	if r.cfg.Device.InputDevice != DisabledDevice {
		dev, ok, err := r.selectDevice(api, devices, r.cfg.Device.InputDevice, true)
		if err != nil {
			return nil, err
		}
		if ok {
			sel.HasInput = true
			sel.Input = dev
			sel.InputChannels = capChannels(dev.MaxInputChannels, r.cfg.Device.MaxInputChannels)
			r.log.Info("resolved input device", "description", diag.DescribeDevice(dev))
		}
	}
	if r.cfg.Device.OutputDevice != DisabledDevice {
		dev, ok, err := r.selectDevice(api, devices, r.cfg.Device.OutputDevice, false)
		if err != nil {
			return nil, err
		}
		if ok {
			sel.HasOutput = true
			sel.Output = dev
			sel.OutputChannels = capChannels(dev.MaxOutputChannels, r.cfg.Device.MaxOutputChannels)
			r.log.Info("resolved output device", "description", diag.DescribeDevice(dev))
		}
	}

	if !sel.HasInput && !sel.HasOutput {
		return nil, fmt.Errorf("%w: no usable input or output device on host API %q",
			asio.ErrNotPresent, api.Name)
	}

	switch {
	case sel.HasOutput:
		sel.DefaultSampleRate = sel.Output.DefaultSampleRate
	case sel.HasInput:
		sel.DefaultSampleRate = sel.Input.DefaultSampleRate
	}

	return sel, nil
}

func (r *Resolver) selectHostAPI(hostAPIs []backend.HostAPI, devices []backend.Device) (backend.HostAPI, error) {
	if name := r.cfg.Device.HostAPI; name != "" {
		for _, api := range hostAPIs {
			if strings.EqualFold(api.Name, name) {
				return api, nil
			}
		}
		return backend.HostAPI{}, fmt.Errorf("%w: host API %q not found", asio.ErrNotPresent, name)
	}

	// No preference: follow the backend's default output device, then the
	// default input device, then the first host API that has any device.
	if dev, err := r.backend.DefaultOutputDevice(); err == nil {
		return hostAPIs[dev.HostAPI], nil
	}
	if dev, err := r.backend.DefaultInputDevice(); err == nil {
		return hostAPIs[dev.HostAPI], nil
	}
	for _, api := range hostAPIs {
		for _, dev := range devices {
			if dev.HostAPI == api.Index {
				return api, nil
			}
		}
	}
	return backend.HostAPI{}, fmt.Errorf("%w: no host API has any device", asio.ErrNotPresent)
}

// selectDevice returns (device, true, nil) on success and (zero, false, nil)
// when the direction has no default device and none was named.
func (r *Resolver) selectDevice(api backend.HostAPI, devices []backend.Device, name string, isInput bool) (backend.Device, bool, error) {
	channelsOf := func(dev backend.Device) int {
		if isInput {
			return dev.MaxInputChannels
		}
		return dev.MaxOutputChannels
	}

	if name != "" {
		for _, dev := range devices {
			if dev.HostAPI != api.Index || !strings.EqualFold(dev.Name, name) {
				continue
			}
			if channelsOf(dev) == 0 {
				direction := "output"
				if isInput {
					direction = "input"
				}
				return backend.Device{}, false, fmt.Errorf("%w: device %q has no %s channels",
					asio.ErrInvalidParameter, name, direction)
			}
			return dev, true, nil
		}
		return backend.Device{}, false, fmt.Errorf("%w: device %q not found on host API %q",
			asio.ErrNotPresent, name, api.Name)
	}

	defaultIndex := api.DefaultOutputDevice
	if isInput {
		defaultIndex = api.DefaultInputDevice
	}
	if defaultIndex < 0 || defaultIndex >= len(devices) {
		return backend.Device{}, false, nil
	}
	dev := devices[defaultIndex]
	if channelsOf(dev) == 0 {
		return backend.Device{}, false, nil
	}
	return dev, true, nil
}

// ChannelInfo reports the descriptor for one channel of the selection.
func (r *Resolver) ChannelInfo(sel *Selection, index int, isInput bool) (asio.ChannelInfo, error) {
	count := sel.OutputChannels
	prefix := "OUT"
	if isInput {
		count = sel.InputChannels
		prefix = "IN"
	}
	if index < 0 || index >= count {
		return asio.ChannelInfo{}, fmt.Errorf("%w: channel %d out of range (0..%d)",
			asio.ErrInvalidParameter, index, count-1)
	}

	return asio.ChannelInfo{
		Channel:    index,
		IsInput:    isInput,
		SampleType: sel.SampleType,
		Name:       fmt.Sprintf("%s %d", prefix, index),
	}, nil
}

// ProbeSampleRate reports whether the backend could run the selection at the
// given rate. It is best-effort and never mutates state.
func (r *Resolver) ProbeSampleRate(sel *Selection, rate float64) bool {
	if rate <= 0 {
		return false
	}
	params := r.StreamParams(sel, rate, r.cfg.Stream.PreferredBufferFrames)
	return r.backend.IsFormatSupported(params) == nil
}

// BufferSizeRange returns the frame count range advertised to the host,
// derived from the configured sizing and safety margin.
func (r *Resolver) BufferSizeRange() asio.BufferSizeRange {
	stream := &r.cfg.Stream

	if stream.SizePolicy == config.SizePolicyFixed {
		size := stream.PreferredBufferFrames
		return asio.BufferSizeRange{Min: size, Max: size, Preferred: size, Granularity: 0}
	}

	rng := asio.BufferSizeRange{
		Min:         stream.MinBufferFrames + stream.SafetyMarginFrames,
		Max:         stream.MaxBufferFrames,
		Preferred:   stream.PreferredBufferFrames,
		Granularity: stream.Granularity(),
	}
	if rng.Preferred < rng.Min {
		rng.Preferred = rng.Min
	}
	return rng
}

// ValidateBufferSize checks a host-requested frame count against the
// advertised range and the configured size policy.
func (r *Resolver) ValidateBufferSize(frames int) error {
	rng := r.BufferSizeRange()
	if frames < rng.Min || frames > rng.Max {
		return fmt.Errorf("%w: buffer size %d outside [%d, %d]",
			asio.ErrInvalidMode, frames, rng.Min, rng.Max)
	}

	switch r.cfg.Stream.SizePolicy {
	case config.SizePolicyFixed:
		if frames != rng.Preferred {
			return fmt.Errorf("%w: buffer size is fixed at %d frames", asio.ErrInvalidMode, rng.Preferred)
		}
	case config.SizePolicyPow2:
		if frames&(frames-1) != 0 {
			return fmt.Errorf("%w: buffer size %d is not a power of two", asio.ErrInvalidMode, frames)
		}
	default:
		if g := rng.Granularity; g > 0 && (frames-rng.Min)%g != 0 {
			return fmt.Errorf("%w: buffer size %d not on the %d-frame grid from %d",
				asio.ErrInvalidMode, frames, g, rng.Min)
		}
	}
	return nil
}

// StreamParams builds the backend parameters for opening (or probing) a
// stream on the selection.
func (r *Resolver) StreamParams(sel *Selection, rate float64, frames int) backend.StreamParams {
	params := backend.StreamParams{
		SampleRate:      rate,
		FramesPerBuffer: frames,
	}

	latency := r.cfg.Stream.SuggestedLatency()
	if sel.HasInput {
		inLatency := latency
		if inLatency == 0 {
			inLatency = sel.Input.DefaultLowInputLatency
		}
		params.Input = backend.DeviceParams{
			Device:   sel.Input.Index,
			Channels: sel.InputChannels,
			Latency:  inLatency,
		}
	}
	if sel.HasOutput {
		outLatency := latency
		if outLatency == 0 {
			outLatency = sel.Output.DefaultLowOutputLatency
		}
		params.Output = backend.DeviceParams{
			Device:   sel.Output.Index,
			Channels: sel.OutputChannels,
			Latency:  outLatency,
		}
	}

	if r.cfg.Stream.WASAPIExclusive && sel.HostAPI.Type == backend.WASAPI {
		params.HostAPISpecific = backend.WASAPIStreamInfo{Exclusive: true}
	}
	return params
}

func capChannels(available, limit int) int {
	if limit > 0 && limit < available {
		return limit
	}
	return available
}
