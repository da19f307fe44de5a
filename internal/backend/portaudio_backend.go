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

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend implements Backend using the real PortAudio library.
type PortAudioBackend struct {
	initialized bool

	// Index maps rebuilt on Initialize. The PortAudio bindings hand out
	// cached pointers, so identity comparison is enough to recover indexes.
	deviceIndex  map[*portaudio.DeviceInfo]int
	hostAPIIndex map[*portaudio.HostApiInfo]int
	devices      []*portaudio.DeviceInfo
}

// NewPortAudioBackend creates a new PortAudio backend.
func NewPortAudioBackend() *PortAudioBackend {
	return &PortAudioBackend{}
}

// Initialize initializes the PortAudio subsystem and indexes its device and
// host API tables.
func (p *PortAudioBackend) Initialize() error {
	if p.initialized {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", translatePortAudioError(err))
	}

	if err := p.buildIndexes(); err != nil {
		_ = portaudio.Terminate()
		return err
	}

	p.initialized = true
	return nil
}

// Terminate terminates the PortAudio subsystem.
func (p *PortAudioBackend) Terminate() error {
	if !p.initialized {
		return nil
	}

	p.initialized = false
	p.deviceIndex = nil
	p.hostAPIIndex = nil
	p.devices = nil

	if err := portaudio.Terminate(); err != nil {
		return translatePortAudioError(err)
	}
	return nil
}

// Version returns the PortAudio version string.
func (p *PortAudioBackend) Version() string {
	return portaudio.VersionText()
}

func (p *PortAudioBackend) buildIndexes() error {
	devices, err := portaudio.Devices()
	if err != nil {
		return translatePortAudioError(err)
	}
	hostAPIs, err := portaudio.HostApis()
	if err != nil {
		return translatePortAudioError(err)
	}

	p.devices = devices
	p.deviceIndex = make(map[*portaudio.DeviceInfo]int, len(devices))
	for i, dev := range devices {
		p.deviceIndex[dev] = i
	}
	p.hostAPIIndex = make(map[*portaudio.HostApiInfo]int, len(hostAPIs))
	for i, api := range hostAPIs {
		p.hostAPIIndex[api] = i
	}
	return nil
}

// HostAPIs enumerates PortAudio host APIs.
func (p *PortAudioBackend) HostAPIs() ([]HostAPI, error) {
	if !p.initialized {
		return nil, Errorf(CodeNotInitialized, "PortAudio not initialized")
	}

	hostAPIs, err := portaudio.HostApis()
	if err != nil {
		return nil, translatePortAudioError(err)
	}

	result := make([]HostAPI, 0, len(hostAPIs))
	for i, api := range hostAPIs {
		result = append(result, HostAPI{
			Index:               i,
			Type:                convertHostAPIType(api.Type),
			Name:                api.Name,
			DefaultInputDevice:  p.lookupDevice(api.DefaultInputDevice),
			DefaultOutputDevice: p.lookupDevice(api.DefaultOutputDevice),
		})
	}
	return result, nil
}

// Devices enumerates PortAudio devices across all host APIs.
func (p *PortAudioBackend) Devices() ([]Device, error) {
	if !p.initialized {
		return nil, Errorf(CodeNotInitialized, "PortAudio not initialized")
	}

	result := make([]Device, 0, len(p.devices))
	for i, dev := range p.devices {
		result = append(result, p.convertDevice(i, dev))
	}
	return result, nil
}

// DefaultInputDevice returns the system default capture device.
func (p *PortAudioBackend) DefaultInputDevice() (Device, error) {
	if !p.initialized {
		return Device{}, Errorf(CodeNotInitialized, "PortAudio not initialized")
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Device{}, translatePortAudioError(err)
	}
	return p.convertDevice(p.lookupDevice(dev), dev), nil
}

// DefaultOutputDevice returns the system default playback device.
func (p *PortAudioBackend) DefaultOutputDevice() (Device, error) {
	if !p.initialized {
		return Device{}, Errorf(CodeNotInitialized, "PortAudio not initialized")
	}

	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return Device{}, translatePortAudioError(err)
	}
	return p.convertDevice(p.lookupDevice(dev), dev), nil
}

// IsFormatSupported probes whether a stream could be opened with the given
// parameters.
func (p *PortAudioBackend) IsFormatSupported(params StreamParams) error {
	if !p.initialized {
		return Errorf(CodeNotInitialized, "PortAudio not initialized")
	}

	paParams, err := p.convertStreamParams(params)
	if err != nil {
		return err
	}

	probe := func(in, out [][]float32) {}
	if err := portaudio.IsFormatSupported(paParams, probe); err != nil {
		return translatePortAudioError(err)
	}
	return nil
}

// OpenStream opens a non-interleaved float32 callback stream.
func (p *PortAudioBackend) OpenStream(params StreamParams, callbacks StreamCallbacks) (Stream, error) {
	if !p.initialized {
		return nil, Errorf(CodeNotInitialized, "PortAudio not initialized")
	}
	if callbacks.Process == nil {
		return nil, Errorf(CodeInternalError, "nil process callback")
	}

	paParams, err := p.convertStreamParams(params)
	if err != nil {
		return nil, err
	}

	process := callbacks.Process
	cb := func(in, out [][]float32, timeInfo portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		process(in, out, TimeInfo{
			InputBufferADCTime:  timeInfo.InputBufferAdcTime,
			CurrentTime:         timeInfo.CurrentTime,
			OutputBufferDACTime: timeInfo.OutputBufferDacTime,
		}, convertCallbackFlags(flags))
	}

	stream, err := portaudio.OpenStream(paParams, cb)
	if err != nil {
		return nil, translatePortAudioError(err)
	}

	return &portAudioStream{stream: stream}, nil
}

func (p *PortAudioBackend) convertDevice(index int, dev *portaudio.DeviceInfo) Device {
	return Device{
		Index:                    index,
		Name:                     dev.Name,
		HostAPI:                  p.hostAPIIndex[dev.HostApi],
		MaxInputChannels:         dev.MaxInputChannels,
		MaxOutputChannels:        dev.MaxOutputChannels,
		DefaultSampleRate:        dev.DefaultSampleRate,
		DefaultLowInputLatency:   dev.DefaultLowInputLatency,
		DefaultLowOutputLatency:  dev.DefaultLowOutputLatency,
		DefaultHighInputLatency:  dev.DefaultHighInputLatency,
		DefaultHighOutputLatency: dev.DefaultHighOutputLatency,
	}
}

func (p *PortAudioBackend) lookupDevice(dev *portaudio.DeviceInfo) int {
	if dev == nil {
		return -1
	}
	if i, ok := p.deviceIndex[dev]; ok {
		return i
	}
	return -1
}

func (p *PortAudioBackend) convertStreamParams(params StreamParams) (portaudio.StreamParameters, error) {
	var paParams portaudio.StreamParameters

	// The Go bindings expose no hostApiSpecificStreamInfo plumbing, so any
	// attached extension block cannot be forwarded to the native library.
	if params.HostAPISpecific != nil {
		return paParams, Errorf(CodeIncompatibleExtension,
			"PortAudio backend cannot forward %s stream settings",
			params.HostAPISpecific.ExtensionHostAPI())
	}

	if params.Input.Channels > 0 {
		dev, err := p.deviceAt(params.Input.Device)
		if err != nil {
			return paParams, err
		}
		paParams.Input = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: params.Input.Channels,
			Latency:  params.Input.Latency,
		}
	}
	if params.Output.Channels > 0 {
		dev, err := p.deviceAt(params.Output.Device)
		if err != nil {
			return paParams, err
		}
		paParams.Output = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: params.Output.Channels,
			Latency:  params.Output.Latency,
		}
	}

	paParams.SampleRate = params.SampleRate
	paParams.FramesPerBuffer = params.FramesPerBuffer
	return paParams, nil
}

func (p *PortAudioBackend) deviceAt(index int) (*portaudio.DeviceInfo, error) {
	if index < 0 || index >= len(p.devices) {
		return nil, Errorf(CodeInvalidDevice, "device index %d out of range", index)
	}
	return p.devices[index], nil
}

// portAudioStream implements Stream over a PortAudio callback stream.
type portAudioStream struct {
	stream *portaudio.Stream
}

// Start starts the stream.
func (s *portAudioStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return translatePortAudioError(err)
	}
	return nil
}

// Stop stops the stream. Pa_StopStream blocks until pending buffers finish,
// which is the quiescence guarantee Stream.Stop documents.
func (s *portAudioStream) Stop() error {
	if err := s.stream.Stop(); err != nil {
		return translatePortAudioError(err)
	}
	return nil
}

// Close closes the stream.
func (s *portAudioStream) Close() error {
	if err := s.stream.Close(); err != nil {
		return translatePortAudioError(err)
	}
	return nil
}

// Info returns the open stream's latencies and actual sample rate.
func (s *portAudioStream) Info() StreamInfo {
	info := s.stream.Info()
	if info == nil {
		return StreamInfo{}
	}
	return StreamInfo{
		InputLatency:  info.InputLatency,
		OutputLatency: info.OutputLatency,
		SampleRate:    info.SampleRate,
	}
}

func convertHostAPIType(t portaudio.HostApiType) HostAPIType {
	switch t {
	case portaudio.DirectSound:
		return DirectSound
	case portaudio.MME:
		return MME
	case portaudio.ASIO:
		return ASIO
	case portaudio.SoundManager:
		return SoundManager
	case portaudio.CoreAudio:
		return CoreAudio
	case portaudio.OSS:
		return OSS
	case portaudio.ALSA:
		return ALSA
	case portaudio.AL:
		return AL
	case portaudio.BeOS:
		return BeOS
	case portaudio.WDMKS:
		return WDMKS
	case portaudio.JACK:
		return JACK
	case portaudio.WASAPI:
		return WASAPI
	case portaudio.AudioScienceHPI:
		return AudioScienceHPI
	}
	return InDevelopment
}

func convertCallbackFlags(flags portaudio.StreamCallbackFlags) StreamFlags {
	var result StreamFlags
	if flags&portaudio.InputUnderflow != 0 {
		result |= InputUnderflow
	}
	if flags&portaudio.InputOverflow != 0 {
		result |= InputOverflow
	}
	if flags&portaudio.OutputUnderflow != 0 {
		result |= OutputUnderflow
	}
	if flags&portaudio.OutputOverflow != 0 {
		result |= OutputOverflow
	}
	if flags&portaudio.PrimingOutput != 0 {
		result |= PrimingOutput
	}
	return result
}

// translatePortAudioError maps a gordonklaus/portaudio error to a backend
// error. Unknown errors are classified as internal.
func translatePortAudioError(err error) error {
	if err == nil {
		return nil
	}

	if hostErr, ok := err.(portaudio.UnanticipatedHostError); ok {
		return &Error{Code: CodeUnanticipatedHostError, Message: hostErr.Text}
	}

	paErr, ok := err.(portaudio.Error)
	if !ok {
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}

	code := CodeUnknown
	switch paErr {
	case portaudio.NotInitialized:
		code = CodeNotInitialized
	case portaudio.InvalidChannelCount:
		code = CodeInvalidChannelCount
	case portaudio.InvalidSampleRate:
		code = CodeInvalidSampleRate
	case portaudio.InvalidDevice:
		code = CodeInvalidDevice
	case portaudio.InvalidFlag:
		code = CodeInvalidFlag
	case portaudio.SampleFormatNotSupported:
		code = CodeSampleFormatNotSupported
	case portaudio.BadIODeviceCombination:
		code = CodeBadIODeviceCombination
	case portaudio.InsufficientMemory:
		code = CodeInsufficientMemory
	case portaudio.BufferTooBig:
		code = CodeBufferTooBig
	case portaudio.BufferTooSmall:
		code = CodeBufferTooSmall
	case portaudio.DeviceUnavailable:
		code = CodeDeviceUnavailable
	case portaudio.IncompatibleHostApiSpecificStreamInfo:
		code = CodeIncompatibleExtension
	case portaudio.StreamIsStopped:
		code = CodeStreamIsStopped
	case portaudio.StreamIsNotStopped:
		code = CodeStreamIsNotStopped
	case portaudio.InputOverflowed:
		code = CodeInputOverflowed
	case portaudio.OutputUnderflowed:
		code = CodeOutputUnderflowed
	case portaudio.HostApiNotFound:
		code = CodeHostAPINotFound
	case portaudio.InvalidHostApi:
		code = CodeInvalidHostAPI
	case portaudio.TimedOut:
		code = CodeTimedOut
	case portaudio.InternalError:
		code = CodeInternalError
	}
	return &Error{Code: code, Message: paErr.Error()}
}
