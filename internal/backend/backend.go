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

package backend

import (
	"fmt"
	"time"
)

// Backend provides an abstraction layer over the underlying audio library.
// This enables dependency injection and makes testing hardware-independent.
type Backend interface {
	// Initialize the audio subsystem.
	Initialize() error

	// Terminate the audio subsystem.
	Terminate() error

	// Version returns the backend's version string.
	Version() string

	// HostAPIs enumerates the host APIs the backend can drive.
	HostAPIs() ([]HostAPI, error)

	// Devices enumerates all devices across all host APIs.
	Devices() ([]Device, error)

	// DefaultInputDevice returns the system default capture device.
	DefaultInputDevice() (Device, error)

	// DefaultOutputDevice returns the system default playback device.
	DefaultOutputDevice() (Device, error)

	// IsFormatSupported reports whether a stream could be opened with the
	// given parameters. It never mutates backend state.
	IsFormatSupported(params StreamParams) error

	// OpenStream opens (but does not start) a callback stream.
	OpenStream(params StreamParams, callbacks StreamCallbacks) (Stream, error)
}

// Stream is an open backend audio stream.
type Stream interface {
	// Start begins periodic invocation of the stream callback.
	Start() error

	// Stop halts the stream. It blocks until the backend confirms the audio
	// thread has quiesced: after Stop returns, the callback will not be
	// invoked again.
	Stop() error

	// Close releases the stream. The stream must be stopped first.
	Close() error

	// Info returns the latencies and actual rate of the open stream.
	Info() StreamInfo
}

// HostAPIType identifies a backend host API family.
type HostAPIType int

const (
	InDevelopment HostAPIType = iota
	DirectSound
	MME
	ASIO
	SoundManager
	CoreAudio
	OSS
	ALSA
	AL
	BeOS
	WDMKS
	JACK
	WASAPI
	AudioScienceHPI
)

var hostAPITypeNames = map[HostAPIType]string{
	InDevelopment:   "In development",
	DirectSound:     "DirectSound",
	MME:             "MME",
	ASIO:            "ASIO",
	SoundManager:    "SoundManager",
	CoreAudio:       "CoreAudio",
	OSS:             "OSS",
	ALSA:            "ALSA",
	AL:              "AL",
	BeOS:            "BeOS",
	WDMKS:           "WDMKS",
	JACK:            "JACK",
	WASAPI:          "WASAPI",
	AudioScienceHPI: "AudioScienceHPI",
}

// String returns the conventional display name of the host API type.
func (t HostAPIType) String() string {
	if name, ok := hostAPITypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("HostAPIType(%d)", int(t))
}

// HostAPI describes one host API exposed by the backend.
type HostAPI struct {
	Index int
	Type  HostAPIType
	Name  string

	// DefaultInputDevice and DefaultOutputDevice are device indexes, or -1
	// when the host API has no device in that direction.
	DefaultInputDevice  int
	DefaultOutputDevice int
}

// Device describes one audio device exposed by the backend.
type Device struct {
	Index             int
	Name              string
	HostAPI           int
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64

	DefaultLowInputLatency   time.Duration
	DefaultLowOutputLatency  time.Duration
	DefaultHighInputLatency  time.Duration
	DefaultHighOutputLatency time.Duration
}

// DeviceParams selects a device and channel count for one direction of a
// stream. A zero Channels value means the direction is unused.
type DeviceParams struct {
	Device   int
	Channels int
	Latency  time.Duration
}

// StreamParams carries everything needed to open a stream.
type StreamParams struct {
	Input           DeviceParams
	Output          DeviceParams
	SampleRate      float64
	FramesPerBuffer int

	// HostAPISpecific optionally attaches host-API-specific stream settings.
	// Implementations reject extensions they cannot honor.
	HostAPISpecific Extension
}

// StreamFlags reports per-period stream conditions to the callback.
type StreamFlags uint

const (
	// InputUnderflow indicates input data was lost before the callback ran.
	InputUnderflow StreamFlags = 1 << iota
	// InputOverflow indicates input data was discarded after the callback.
	InputOverflow
	// OutputUnderflow indicates the output buffer ran dry.
	OutputUnderflow
	// OutputOverflow indicates output data was discarded.
	OutputOverflow
	// PrimingOutput indicates the backend is gathering initial output.
	PrimingOutput
)

// TimeInfo carries the backend clock readings for one callback period.
type TimeInfo struct {
	InputBufferADCTime  time.Duration
	CurrentTime         time.Duration
	OutputBufferDACTime time.Duration
}

// ProcessFunc is the periodic stream callback. It runs on the backend's audio
// thread: it must not allocate, block, or log. in and out are non-interleaved
// (one slice per channel); either may be empty for a one-directional stream.
type ProcessFunc func(in, out [][]float32, t TimeInfo, flags StreamFlags)

// StreamCallbacks bundles the callbacks registered when opening a stream.
type StreamCallbacks struct {
	// Process is invoked once per buffer period.
	Process ProcessFunc

	// RateChanged, if non-nil, is invoked when the backend detects that the
	// device was reconfigured to a different rate outside the stream's
	// control. It is never invoked on the audio thread.
	RateChanged func(rate float64)
}

// StreamInfo reports the properties of an open stream.
type StreamInfo struct {
	InputLatency  time.Duration
	OutputLatency time.Duration
	SampleRate    float64
}
