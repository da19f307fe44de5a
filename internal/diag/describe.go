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

// Package diag renders human-readable descriptions of backend objects for
// logs and the exerciser output. Nothing here runs on the real-time path.
package diag

import (
	"fmt"
	"strings"

	"github.com/openasio/asio-bridge-go/internal/backend"
)

// DescribeHostAPI renders one host API entry.
func DescribeHostAPI(api backend.HostAPI) string {
	return fmt.Sprintf("host API index %d (name: '%s', type: %s, default input device: %d, default output device: %d)",
		api.Index, api.Name, api.Type, api.DefaultInputDevice, api.DefaultOutputDevice)
}

// DescribeDevice renders one device entry.
func DescribeDevice(dev backend.Device) string {
	return fmt.Sprintf("device index %d (name: '%s', host API: %d, default sample rate: %g, "+
		"max input channels: %d, max output channels: %d, "+
		"input latency: %v (low) %v (high), output latency: %v (low) %v (high))",
		dev.Index, dev.Name, dev.HostAPI, dev.DefaultSampleRate,
		dev.MaxInputChannels, dev.MaxOutputChannels,
		dev.DefaultLowInputLatency, dev.DefaultHighInputLatency,
		dev.DefaultLowOutputLatency, dev.DefaultHighOutputLatency)
}

// DescribeStreamParameters renders the parameters a stream is opened with.
func DescribeStreamParameters(params backend.StreamParams) string {
	var b strings.Builder

	describeDirection := func(name string, p backend.DeviceParams) {
		if p.Channels == 0 {
			fmt.Fprintf(&b, "%s: none", name)
			return
		}
		fmt.Fprintf(&b, "%s: device index %d, %d channels, suggested latency %v",
			name, p.Device, p.Channels, p.Latency)
	}

	describeDirection("input", params.Input)
	b.WriteString("; ")
	describeDirection("output", params.Output)
	fmt.Fprintf(&b, "; sample rate: %g Hz; frames per buffer: %d", params.SampleRate, params.FramesPerBuffer)

	if params.HostAPISpecific != nil {
		fmt.Fprintf(&b, "; host API specific: %s", describeExtension(params.HostAPISpecific))
	}
	return b.String()
}

func describeExtension(ext backend.Extension) string {
	switch e := ext.(type) {
	case backend.WASAPIStreamInfo:
		return fmt.Sprintf("WASAPI (exclusive: %t, auto convert: %t)", e.Exclusive, e.AutoConvert)
	case backend.RawExtension:
		return fmt.Sprintf("%s raw block (%d bytes, version %d)", e.HostAPI, len(e.Data), e.Version)
	}
	return fmt.Sprintf("%s (unrecognized block)", ext.ExtensionHostAPI())
}

// DescribeStreamInfo renders an open stream's properties.
func DescribeStreamInfo(info backend.StreamInfo) string {
	return fmt.Sprintf("stream info with input latency %v, output latency %v, sample rate %g Hz",
		info.InputLatency, info.OutputLatency, info.SampleRate)
}

// DescribeTimeInfo renders one callback period's clock readings.
func DescribeTimeInfo(t backend.TimeInfo) string {
	return fmt.Sprintf("callback time info with input buffer ADC time %v, current time %v, output buffer DAC time %v",
		t.InputBufferADCTime, t.CurrentTime, t.OutputBufferDACTime)
}

// StreamFlagsString renders callback status flags as a bitfield listing.
func StreamFlagsString(flags backend.StreamFlags) string {
	names := []struct {
		flag backend.StreamFlags
		name string
	}{
		{backend.InputUnderflow, "InputUnderflow"},
		{backend.InputOverflow, "InputOverflow"},
		{backend.OutputUnderflow, "OutputUnderflow"},
		{backend.OutputOverflow, "OutputOverflow"},
		{backend.PrimingOutput, "PrimingOutput"},
	}

	var set []string
	for _, n := range names {
		if flags&n.flag != 0 {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, "|")
}
