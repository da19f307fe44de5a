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
	"sync"
	"time"
)

// MockBackend implements Backend for testing without hardware dependencies.
// Periods are driven manually from the test via MockStream.TriggerPeriod, so
// tests are deterministic and do not depend on wall-clock timing.
type MockBackend struct {
	mu          sync.Mutex
	initialized bool

	hostAPIs       []HostAPI
	devices        []Device
	supportedRates map[float64]bool

	initError      error
	openError      error
	formatError    error
	nextStartError error

	streams []*MockStream
}

// NewMockBackend creates a mock backend with a single duplex device (2 in,
// 2 out, default rate 48000, supported rates up to 96000) on one host API.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		hostAPIs: []HostAPI{
			{Index: 0, Type: WASAPI, Name: "Mock WASAPI", DefaultInputDevice: 0, DefaultOutputDevice: 0},
		},
		devices: []Device{
			{
				Index:                    0,
				Name:                     "Mock Duplex Device",
				HostAPI:                  0,
				MaxInputChannels:         2,
				MaxOutputChannels:        2,
				DefaultSampleRate:        48000,
				DefaultLowInputLatency:   10 * time.Millisecond,
				DefaultLowOutputLatency:  10 * time.Millisecond,
				DefaultHighInputLatency:  40 * time.Millisecond,
				DefaultHighOutputLatency: 40 * time.Millisecond,
			},
		},
		supportedRates: map[float64]bool{44100: true, 48000: true, 88200: true, 96000: true},
	}
}

// SetDevices replaces the mock device table.
func (m *MockBackend) SetDevices(hostAPIs []HostAPI, devices []Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostAPIs = hostAPIs
	m.devices = devices
}

// SetSupportedRates replaces the set of rates IsFormatSupported accepts.
func (m *MockBackend) SetSupportedRates(rates ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supportedRates = make(map[float64]bool, len(rates))
	for _, r := range rates {
		m.supportedRates[r] = true
	}
}

// SetInitError configures the backend to fail Initialize.
func (m *MockBackend) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initError = err
}

// SetOpenError configures the backend to fail OpenStream.
func (m *MockBackend) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openError = err
}

// SetNextStartError arms the next stream OpenStream returns to fail Start.
// Consumed by one OpenStream call; streams opened afterwards are unaffected.
func (m *MockBackend) SetNextStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStartError = err
}

// SetFormatError configures the backend to fail IsFormatSupported regardless
// of the probed rate.
func (m *MockBackend) SetFormatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formatError = err
}

// Streams returns every stream opened so far, including closed ones.
func (m *MockBackend) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*MockStream, len(m.streams))
	copy(result, m.streams)
	return result
}

// Initialize initializes the mock subsystem.
func (m *MockBackend) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initError != nil {
		return m.initError
	}
	m.initialized = true
	return nil
}

// Terminate terminates the mock subsystem.
func (m *MockBackend) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	return nil
}

// Version returns a fixed version string.
func (m *MockBackend) Version() string {
	return "MockAudio 1.0"
}

// HostAPIs returns the configured host API table.
func (m *MockBackend) HostAPIs() ([]HostAPI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, Errorf(CodeNotInitialized, "mock backend not initialized")
	}
	result := make([]HostAPI, len(m.hostAPIs))
	copy(result, m.hostAPIs)
	return result, nil
}

// Devices returns the configured device table.
func (m *MockBackend) Devices() ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, Errorf(CodeNotInitialized, "mock backend not initialized")
	}
	result := make([]Device, len(m.devices))
	copy(result, m.devices)
	return result, nil
}

// DefaultInputDevice returns the first device with input channels.
func (m *MockBackend) DefaultInputDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Device{}, Errorf(CodeNotInitialized, "mock backend not initialized")
	}
	for _, dev := range m.devices {
		if dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return Device{}, Errorf(CodeDeviceUnavailable, "no input device configured")
}

// DefaultOutputDevice returns the first device with output channels.
func (m *MockBackend) DefaultOutputDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Device{}, Errorf(CodeNotInitialized, "mock backend not initialized")
	}
	for _, dev := range m.devices {
		if dev.MaxOutputChannels > 0 {
			return dev, nil
		}
	}
	return Device{}, Errorf(CodeDeviceUnavailable, "no output device configured")
}

// IsFormatSupported accepts parameters whose rate is in the supported set and
// whose channel counts fit the addressed devices.
func (m *MockBackend) IsFormatSupported(params StreamParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Errorf(CodeNotInitialized, "mock backend not initialized")
	}
	if m.formatError != nil {
		return m.formatError
	}
	return m.validateParamsLocked(params)
}

// OpenStream opens a mock stream and captures its callbacks for the test to
// drive.
func (m *MockBackend) OpenStream(params StreamParams, callbacks StreamCallbacks) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, Errorf(CodeNotInitialized, "mock backend not initialized")
	}
	if m.openError != nil {
		return nil, m.openError
	}
	if callbacks.Process == nil {
		return nil, Errorf(CodeInternalError, "nil process callback")
	}
	if err := m.validateParamsLocked(params); err != nil {
		return nil, err
	}

	stream := &MockStream{
		params:     params,
		callbacks:  callbacks,
		open:       true,
		startError: m.nextStartError,
	}
	m.nextStartError = nil
	m.streams = append(m.streams, stream)
	return stream, nil
}

func (m *MockBackend) validateParamsLocked(params StreamParams) error {
	if params.Input.Channels == 0 && params.Output.Channels == 0 {
		return Errorf(CodeBadIODeviceCombination, "no channels requested")
	}
	if params.SampleRate <= 0 || !m.supportedRates[params.SampleRate] {
		return Errorf(CodeInvalidSampleRate, "rate %g not supported", params.SampleRate)
	}
	if params.Input.Channels > 0 {
		dev, err := m.deviceAtLocked(params.Input.Device)
		if err != nil {
			return err
		}
		if params.Input.Channels > dev.MaxInputChannels {
			return Errorf(CodeInvalidChannelCount, "%d input channels on %q", params.Input.Channels, dev.Name)
		}
	}
	if params.Output.Channels > 0 {
		dev, err := m.deviceAtLocked(params.Output.Device)
		if err != nil {
			return err
		}
		if params.Output.Channels > dev.MaxOutputChannels {
			return Errorf(CodeInvalidChannelCount, "%d output channels on %q", params.Output.Channels, dev.Name)
		}
	}
	return nil
}

func (m *MockBackend) deviceAtLocked(index int) (Device, error) {
	if index < 0 || index >= len(m.devices) {
		return Device{}, Errorf(CodeInvalidDevice, "device index %d out of range", index)
	}
	return m.devices[index], nil
}

// MockStream implements Stream with manually driven periods.
type MockStream struct {
	mu        sync.Mutex
	params    StreamParams
	callbacks StreamCallbacks
	open      bool
	started   bool

	startError error
	stopError  error

	clock    time.Duration
	periods  int
	inputGen func(frames int, in [][]float32)
	outputs  [][][]float32
}

// SetStartError configures the stream to fail Start.
func (s *MockStream) SetStartError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startError = err
}

// SetStopError configures the stream to fail Stop.
func (s *MockStream) SetStopError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopError = err
}

// SetInputGenerator installs a function that fills the captured-input slices
// for each triggered period.
func (s *MockStream) SetInputGenerator(gen func(frames int, in [][]float32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputGen = gen
}

// Params returns the parameters the stream was opened with.
func (s *MockStream) Params() StreamParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Started reports whether the stream is currently started.
func (s *MockStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Open reports whether the stream has not been closed yet.
func (s *MockStream) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Periods returns the number of periods delivered so far.
func (s *MockStream) Periods() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periods
}

// Outputs returns a copy of the per-period output buffers the callback
// produced.
func (s *MockStream) Outputs() [][][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([][][]float32, len(s.outputs))
	copy(result, s.outputs)
	return result
}

// Start starts the stream.
func (s *MockStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startError != nil {
		return s.startError
	}
	if !s.open {
		return Errorf(CodeInvalidDevice, "stream closed")
	}
	if s.started {
		return Errorf(CodeStreamIsNotStopped, "stream already started")
	}
	s.started = true
	return nil
}

// Stop stops the stream. After Stop returns no further TriggerPeriod will
// invoke the callback, mirroring the real backend's quiescence guarantee.
func (s *MockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopError != nil {
		return s.stopError
	}
	s.started = false
	return nil
}

// Close closes the stream.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.started = false
	return nil
}

// Info returns synthetic latency figures derived from the open parameters.
func (s *MockStream) Info() StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := time.Duration(0)
	if s.params.SampleRate > 0 {
		period = time.Duration(float64(s.params.FramesPerBuffer) / s.params.SampleRate * float64(time.Second))
	}
	return StreamInfo{
		InputLatency:  period,
		OutputLatency: period,
		SampleRate:    s.params.SampleRate,
	}
}

// TriggerPeriod simulates one backend callback period of the given frame
// count. It reports whether the callback was actually invoked (it is not when
// the stream is stopped or closed).
func (s *MockStream) TriggerPeriod(frames int) bool {
	s.mu.Lock()
	if !s.open || !s.started {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	return s.InjectPeriod(frames, 0)
}

// InjectPeriod invokes the stream callback unconditionally, regardless of
// started state. Tests use it to verify that a late-arriving backend callback
// is ignored after Stop returned.
func (s *MockStream) InjectPeriod(frames int, flags StreamFlags) bool {
	s.mu.Lock()
	process := s.callbacks.Process
	inChannels := s.params.Input.Channels
	outChannels := s.params.Output.Channels
	gen := s.inputGen
	rate := s.params.SampleRate
	clock := s.clock
	s.mu.Unlock()

	if process == nil {
		return false
	}

	in := make([][]float32, inChannels)
	for i := range in {
		in[i] = make([]float32, frames)
	}
	if gen != nil {
		gen(frames, in)
	}
	out := make([][]float32, outChannels)
	for i := range out {
		out[i] = make([]float32, frames)
	}

	period := time.Duration(0)
	if rate > 0 {
		period = time.Duration(float64(frames) / rate * float64(time.Second))
	}
	process(in, out, TimeInfo{
		InputBufferADCTime:  clock,
		CurrentTime:         clock,
		OutputBufferDACTime: clock + period,
	}, flags)

	s.mu.Lock()
	s.clock += period
	s.periods++
	s.outputs = append(s.outputs, out)
	s.mu.Unlock()
	return true
}

// TriggerRateChange simulates an external device reconfiguration to a new
// sample rate.
func (s *MockStream) TriggerRateChange(rate float64) {
	s.mu.Lock()
	cb := s.callbacks.RateChanged
	s.params.SampleRate = rate
	s.mu.Unlock()
	if cb != nil {
		cb(rate)
	}
}
