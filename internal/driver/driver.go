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

// Package driver implements the ASIO driver contract over an audio backend:
// the lifecycle state machine on the control path and the buffer relay on
// the backend's real-time thread.
//
// Control calls are assumed serialized by the host, matching the ASIO
// single-threaded-caller contract; the driver does not defend against
// concurrent control calls. The only state shared with the real-time thread
// is accessed through atomics.
package driver

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openasio/asio-bridge-go/internal/asio"
	"github.com/openasio/asio-bridge-go/internal/backend"
	"github.com/openasio/asio-bridge-go/internal/buffers"
	"github.com/openasio/asio-bridge-go/internal/config"
	"github.com/openasio/asio-bridge-go/internal/device"
	"github.com/openasio/asio-bridge-go/internal/diag"
	"github.com/openasio/asio-bridge-go/internal/events"
	"github.com/openasio/asio-bridge-go/internal/metrics"
	"github.com/openasio/asio-bridge-go/internal/translate"
)

// The ASIO entry point is a per-process singleton. The package-level slot is
// the sole global lookup; everything else is explicit object state.
var (
	instanceMu sync.Mutex
	instance   *Driver
)

// Options carries the optional collaborators of a driver instance.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Events  *events.Publisher
}

// Driver is one driver session: the state machine, the resolved device set,
// the buffer set and the open stream handle.
type Driver struct {
	cfg     *config.Config
	backend backend.Backend
	log     *slog.Logger
	metrics *metrics.Metrics
	events  *events.Publisher

	state    State
	resolver *device.Resolver
	sel      *device.Selection

	set          *buffers.BufferSet
	stream       backend.Stream
	callbacks    asio.Callbacks
	timeInfoMode bool
	frames       int

	// Channel maps from backend stream channel index to buffer set
	// position (-1 when the stream channel was not requested). Built on
	// CreateBuffers so the real-time path never searches.
	inMap  []int
	outMap []int

	// State shared with the real-time thread. running is the validity flag
	// the callback checks before touching the buffer set; it is set only
	// after set/callbacks/maps are in place and cleared before they are
	// torn down, so the atomic ordering makes the plain fields safe to
	// read once running is observed true.
	running        atomic.Bool
	outputPrimed   atomic.Bool
	sampleRateBits atomic.Uint64
	samplePosition atomic.Uint64
	lastPeriodTime atomic.Int64
	dropped        atomic.Uint64

	// bufferIndex is touched only by the real-time thread.
	bufferIndex int
}

// Open wires a new driver over the given backend and claims the process
// slot. It fails with InvalidMode when another instance is already active.
func Open(cfg *config.Config, b backend.Backend, opts Options) (*Driver, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	// The real-time path increments counters without nil checks, so a
	// driver without exported metrics still gets a private set.
	m := opts.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	d := &Driver{
		cfg:     cfg,
		backend: b,
		log:     log.With("component", "driver"),
		metrics: m,
		events:  opts.Events,
		state:   StateCreated,
	}

	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return nil, fmt.Errorf("%w: another driver instance is active", asio.ErrInvalidMode)
	}
	instance = d
	return d, nil
}

// Active returns the currently registered driver instance, or nil.
func Active() *Driver {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Name returns the driver display name reported to the host.
func (d *Driver) Name() string {
	return asio.DriverName
}

// Version returns the driver version reported to the host.
func (d *Driver) Version() int {
	return asio.DriverVersion
}

// Init initializes the backend and resolves the device set.
//
// It is legal from Created, Uninitialized and BuffersDisposed (the last so a
// host can renegotiate devices after disposing buffers without a full
// release cycle). It fails with NotPresent when no usable device exists and
// HardwareMalfunction when the backend reports a fault.
func (d *Driver) Init() error {
	switch d.state {
	case StateCreated, StateUninitialized, StateBuffersDisposed:
	default:
		return d.operationError(fmt.Errorf("%w: Init from %s", asio.ErrInvalidMode, d.state))
	}

	if err := d.backend.Initialize(); err != nil {
		return d.operationError(fmt.Errorf("%w: backend initialization: %w", translate.ToASIO(err), err))
	}
	d.log.Info("backend initialized", "version", d.backend.Version())

	resolver := device.NewResolver(d.backend, d.cfg, d.log)
	sel, err := resolver.Resolve()
	if err != nil {
		return d.operationError(err)
	}

	d.resolver = resolver
	d.sel = sel
	d.setSampleRate(sel.DefaultSampleRate)
	d.transition(StateInitialized, events.EventInitialized)
	d.log.Info("driver initialized",
		"name", asio.DriverName,
		"inputs", sel.InputChannels,
		"outputs", sel.OutputChannels,
		"sample_rate", sel.DefaultSampleRate,
	)
	return nil
}

// ChannelCounts returns the input and output channel counts of the resolved
// device set.
func (d *Driver) ChannelCounts() (inputs, outputs int, err error) {
	if !d.state.initialized() {
		return 0, 0, d.operationError(fmt.Errorf("%w: driver not initialized", asio.ErrNotPresent))
	}
	return d.sel.InputChannels, d.sel.OutputChannels, nil
}

// BufferSizeRange returns the legal per-callback frame counts.
func (d *Driver) BufferSizeRange() (asio.BufferSizeRange, error) {
	if !d.state.initialized() {
		return asio.BufferSizeRange{}, d.operationError(fmt.Errorf("%w: driver not initialized", asio.ErrNotPresent))
	}
	return d.resolver.BufferSizeRange(), nil
}

// SampleRate returns the currently negotiated rate.
func (d *Driver) SampleRate() (float64, error) {
	if !d.state.initialized() {
		return 0, d.operationError(fmt.Errorf("%w: driver not initialized", asio.ErrNotPresent))
	}
	return d.currentSampleRate(), nil
}

// CanSampleRate reports whether the backend could run the device set at the
// given rate. It never mutates state.
func (d *Driver) CanSampleRate(rate float64) (bool, error) {
	if !d.state.initialized() {
		return false, d.operationError(fmt.Errorf("%w: driver not initialized", asio.ErrNotPresent))
	}
	return d.resolver.ProbeSampleRate(d.sel, rate), nil
}

// SetSampleRate commits a new rate. While a stream is open it is reopened at
// the new rate, transparently restarting if it was running; on failure the
// prior rate (and stream) remain in effect.
func (d *Driver) SetSampleRate(rate float64) error {
	if !d.state.initialized() {
		return d.operationError(fmt.Errorf("%w: driver not initialized", asio.ErrNotPresent))
	}
	if rate <= 0 {
		return d.operationError(fmt.Errorf("%w: sample rate %g", asio.ErrInvalidParameter, rate))
	}
	if rate == d.currentSampleRate() {
		return nil
	}
	if !d.resolver.ProbeSampleRate(d.sel, rate) {
		return d.operationError(fmt.Errorf("%w: rate %g not supported by the device set", asio.ErrInvalidMode, rate))
	}

	if !d.state.buffersLive() {
		d.setSampleRate(rate)
		d.log.Info("sample rate set", "rate", rate)
		return nil
	}

	if err := d.reopenStream(rate); err != nil {
		return d.operationError(err)
	}
	d.setSampleRate(rate)
	d.log.Info("sample rate set with live stream", "rate", rate)
	return nil
}

// ChannelInfo returns the descriptor for one channel. The active flag
// reflects membership in the current buffer set.
func (d *Driver) ChannelInfo(index int, isInput bool) (asio.ChannelInfo, error) {
	if !d.state.initialized() {
		return asio.ChannelInfo{}, d.operationError(fmt.Errorf("%w: driver not initialized", asio.ErrNotPresent))
	}

	info, err := d.resolver.ChannelInfo(d.sel, index, isInput)
	if err != nil {
		return asio.ChannelInfo{}, d.operationError(err)
	}
	info.IsActive = d.channelActive(index, isInput)
	return info, nil
}

// BufferView hands the host direct references to one activated channel's
// double buffer. The halves alias driver-owned memory: they stay valid and
// address-stable from CreateBuffers until DisposeBuffers, across any number
// of Start/Stop cycles.
type BufferView struct {
	Channel int
	IsInput bool
	Halves  [2][]float32
}

// CreateBuffers allocates the buffer set for the requested channels, opens
// the backend stream bound to the host callbacks, and negotiates time-info
// delivery. Audio does not flow until Start. The returned views are in
// request order.
func (d *Driver) CreateBuffers(requests []asio.BufferRequest, frames int, cb asio.Callbacks) ([]BufferView, error) {
	switch d.state {
	case StateInitialized, StateBuffersDisposed:
	default:
		return nil, d.operationError(fmt.Errorf("%w: CreateBuffers from %s", asio.ErrInvalidMode, d.state))
	}

	infos, err := d.validateRequests(requests)
	if err != nil {
		return nil, d.operationError(err)
	}
	if err := d.resolver.ValidateBufferSize(frames); err != nil {
		return nil, d.operationError(err)
	}

	set, err := buffers.Allocate(infos, frames)
	if err != nil {
		return nil, d.operationError(err)
	}

	inMap, outMap := d.buildChannelMaps(set)

	rate := d.currentSampleRate()
	params := d.resolver.StreamParams(d.sel, rate, frames)
	d.log.Info("opening stream", "parameters", diag.DescribeStreamParameters(params))

	stream, err := d.backend.OpenStream(params, backend.StreamCallbacks{
		Process:     d.process,
		RateChanged: d.onBackendRateChange,
	})
	if err != nil {
		// Never a partial commit: the set is dropped and the state is
		// untouched.
		set.Release()
		return nil, d.operationError(fmt.Errorf("%w: opening stream: %w", translate.ToASIO(err), err))
	}

	d.set = set
	d.stream = stream
	d.callbacks = cb
	d.timeInfoMode = cb.SupportsTimeInfoQuery()
	d.frames = frames
	d.inMap = inMap
	d.outMap = outMap
	d.bufferIndex = 0
	d.samplePosition.Store(0)
	d.outputPrimed.Store(false)

	d.metrics.BufferSizeFrames.Set(float64(frames))
	d.transition(StateBuffersCreated, events.EventBuffersCreated)
	d.log.Info("buffers created",
		"channels", set.Len(),
		"frames", frames,
		"time_info", d.timeInfoMode,
		"stream", diag.DescribeStreamInfo(stream.Info()),
	)

	views := make([]BufferView, set.Len())
	for i := range views {
		ch := set.Channel(i)
		views[i] = BufferView{
			Channel: ch.Info.Channel,
			IsInput: ch.Info.IsInput,
			Halves:  ch.Halves,
		}
	}
	return views, nil
}

// Start begins audio flow.
func (d *Driver) Start() error {
	switch d.state {
	case StateBuffersCreated, StateStopped:
	default:
		return d.operationError(fmt.Errorf("%w: Start from %s", asio.ErrInvalidMode, d.state))
	}

	// Prime with silence so the first periods are defined even if the host
	// has not written output yet.
	d.set.ZeroOutputs()
	d.bufferIndex = 0
	d.samplePosition.Store(0)

	// The flag must be up before the backend starts: the first callback can
	// arrive before Start returns.
	d.running.Store(true)
	if err := d.stream.Start(); err != nil {
		d.running.Store(false)
		return d.operationError(fmt.Errorf("%w: starting stream: %w", translate.ToASIO(err), err))
	}

	d.transition(StateRunning, events.EventStarted)
	d.log.Info("stream started")
	return nil
}

// Stop halts audio flow. It blocks until the backend confirms the audio
// thread has quiesced: after Stop returns, no further host notification
// occurs for this stream.
func (d *Driver) Stop() error {
	if d.state != StateRunning {
		return d.operationError(fmt.Errorf("%w: Stop from %s", asio.ErrInvalidMode, d.state))
	}

	d.running.Store(false)
	if err := d.stream.Stop(); err != nil {
		// The backend did not confirm quiescence; the stream must be
		// treated as still running.
		d.running.Store(true)
		return d.operationError(fmt.Errorf("%w: stopping stream: %w", translate.ToASIO(err), err))
	}

	d.transition(StateStopped, events.EventStopped)
	d.log.Info("stream stopped", "periods_dropped", d.dropped.Load())
	return nil
}

// DisposeBuffers closes the stream and releases the buffer set. The set is
// released strictly after the stream handle is closed, so no in-flight
// callback can observe freed memory.
func (d *Driver) DisposeBuffers() error {
	switch d.state {
	case StateBuffersCreated, StateStopped:
	default:
		return d.operationError(fmt.Errorf("%w: DisposeBuffers from %s", asio.ErrInvalidMode, d.state))
	}

	if err := d.stream.Close(); err != nil {
		return d.operationError(fmt.Errorf("%w: closing stream: %w", translate.ToASIO(err), err))
	}
	d.set.Release()
	d.set = nil
	d.stream = nil
	d.callbacks = asio.Callbacks{}
	d.inMap = nil
	d.outMap = nil

	d.transition(StateBuffersDisposed, events.EventBuffersDisposed)
	d.log.Info("buffers disposed")
	return nil
}

// OutputReady is the advisory host signal that at least one output buffer
// has been primed. It always reports success; backends that cannot exploit
// it simply ignore the hint.
func (d *Driver) OutputReady() error {
	if !d.state.buffersLive() {
		return d.operationError(fmt.Errorf("%w: OutputReady from %s", asio.ErrInvalidMode, d.state))
	}
	d.outputPrimed.Store(true)
	return nil
}

// Latencies reports the stream's input and output latencies in frames at
// the current rate. When the host drives the OutputReady optimization, one
// buffer period is shaved off the reported output latency.
func (d *Driver) Latencies() (asio.Latencies, error) {
	if !d.state.buffersLive() {
		return asio.Latencies{}, d.operationError(fmt.Errorf("%w: no open stream", asio.ErrInvalidMode))
	}

	rate := d.currentSampleRate()
	info := d.stream.Info()
	toFrames := func(latency time.Duration) int {
		return int(latency.Seconds() * rate)
	}

	lat := asio.Latencies{
		Input:  toFrames(info.InputLatency),
		Output: toFrames(info.OutputLatency) + d.frames,
	}
	if d.outputPrimed.Load() {
		lat.Output -= d.frames
	}
	return lat, nil
}

// SamplePosition returns the frames streamed since Start and the backend
// clock reading of the most recent period.
func (d *Driver) SamplePosition() (uint64, time.Duration, error) {
	if !d.state.buffersLive() {
		return 0, 0, d.operationError(fmt.Errorf("%w: no open stream", asio.ErrInvalidMode))
	}
	return d.samplePosition.Load(), time.Duration(d.lastPeriodTime.Load()), nil
}

// Release tears the driver down: closes any open stream, releases buffers,
// terminates the backend and frees the process slot. Illegal while Running.
func (d *Driver) Release() error {
	if d.state == StateRunning {
		return d.operationError(fmt.Errorf("%w: Release while Running", asio.ErrInvalidMode))
	}

	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			d.log.Warn("closing stream during release", "error", err)
		}
		d.stream = nil
	}
	d.set.Release()
	d.set = nil
	d.callbacks = asio.Callbacks{}
	d.inMap = nil
	d.outMap = nil
	d.resolver = nil
	d.sel = nil

	if err := d.backend.Terminate(); err != nil {
		d.log.Warn("terminating backend during release", "error", err)
	}

	d.transition(StateUninitialized, events.EventReleased)

	instanceMu.Lock()
	if instance == d {
		instance = nil
	}
	instanceMu.Unlock()

	d.log.Info("driver released")
	return nil
}

func (d *Driver) validateRequests(requests []asio.BufferRequest) ([]asio.ChannelInfo, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: empty channel request", asio.ErrInvalidParameter)
	}

	seen := make(map[asio.BufferRequest]bool, len(requests))
	infos := make([]asio.ChannelInfo, 0, len(requests))
	for _, req := range requests {
		if seen[req] {
			return nil, fmt.Errorf("%w: duplicate request for channel %d (input: %t)",
				asio.ErrInvalidParameter, req.Channel, req.IsInput)
		}
		seen[req] = true

		info, err := d.resolver.ChannelInfo(d.sel, req.Channel, req.IsInput)
		if err != nil {
			return nil, err
		}
		info.IsActive = true
		infos = append(infos, info)
	}
	return infos, nil
}

func (d *Driver) buildChannelMaps(set *buffers.BufferSet) (inMap, outMap []int) {
	inMap = make([]int, d.sel.InputChannels)
	outMap = make([]int, d.sel.OutputChannels)
	for i := range inMap {
		inMap[i] = -1
	}
	for i := range outMap {
		outMap[i] = -1
	}
	for i := 0; i < set.Len(); i++ {
		info := set.Channel(i).Info
		if info.IsInput {
			inMap[info.Channel] = i
		} else {
			outMap[info.Channel] = i
		}
	}
	return inMap, outMap
}

func (d *Driver) channelActive(index int, isInput bool) bool {
	if !d.state.buffersLive() {
		return false
	}
	channelMap := d.outMap
	if isInput {
		channelMap = d.inMap
	}
	return index >= 0 && index < len(channelMap) && channelMap[index] >= 0
}

// reopenStream replaces the open stream with one at the new rate, keeping
// the buffer set (and therefore the host-visible buffer addresses) intact.
func (d *Driver) reopenStream(rate float64) error {
	wasRunning := d.state == StateRunning
	oldRate := d.currentSampleRate()

	if wasRunning {
		d.running.Store(false)
		if err := d.stream.Stop(); err != nil {
			d.running.Store(true)
			return fmt.Errorf("%w: stopping stream for rate change: %w", asio.ErrInvalidMode, err)
		}
	}
	if err := d.stream.Close(); err != nil {
		return fmt.Errorf("%w: closing stream for rate change: %w", asio.ErrInvalidMode, err)
	}
	d.stream = nil

	open := func(r float64) (backend.Stream, error) {
		params := d.resolver.StreamParams(d.sel, r, d.frames)
		return d.backend.OpenStream(params, backend.StreamCallbacks{
			Process:     d.process,
			RateChanged: d.onBackendRateChange,
		})
	}

	stream, err := open(rate)
	if err != nil {
		// Best effort restore of the previous stream so the session stays
		// usable at the prior rate.
		restored, restoreErr := open(oldRate)
		if restoreErr != nil {
			d.transition(StateBuffersDisposed, events.EventBuffersDisposed)
			d.set.Release()
			d.set = nil
			return fmt.Errorf("%w: stream lost during rate change: %w", asio.ErrHardwareMalfunction, restoreErr)
		}
		d.stream = restored
		if wasRunning {
			if startErr := d.restartRestored(); startErr != nil {
				return startErr
			}
		}
		return fmt.Errorf("%w: backend refused rate %g: %w", asio.ErrInvalidMode, rate, err)
	}

	d.stream = stream
	if wasRunning {
		d.running.Store(true)
		if startErr := d.stream.Start(); startErr != nil {
			// The new stream holds the requested rate but the rate was
			// never committed; keeping it would have audio and the
			// reported rate disagree. Roll back to the prior rate.
			d.running.Store(false)
			d.stream.Close()
			d.stream = nil

			restored, restoreErr := open(oldRate)
			if restoreErr != nil {
				d.transition(StateBuffersDisposed, events.EventBuffersDisposed)
				d.set.Release()
				d.set = nil
				return fmt.Errorf("%w: stream lost during rate change: %w", asio.ErrHardwareMalfunction, restoreErr)
			}
			d.stream = restored
			if err := d.restartRestored(); err != nil {
				return err
			}
			return fmt.Errorf("%w: restarting stream after rate change: %w", translate.ToASIO(startErr), startErr)
		}
	}
	return nil
}

func (d *Driver) restartRestored() error {
	d.running.Store(true)
	if err := d.stream.Start(); err != nil {
		d.running.Store(false)
		d.transition(StateStopped, events.EventStopped)
		return fmt.Errorf("%w: restarting restored stream: %w", translate.ToASIO(err), err)
	}
	return nil
}

// onBackendRateChange reconciles a rate change initiated by the backend
// (external device reconfiguration). The host is notified asynchronously,
// never from the real-time context.
func (d *Driver) onBackendRateChange(rate float64) {
	d.setSampleRate(rate)
	d.metrics.BackendRateChanges.Inc()
	d.events.Publish(events.LifecycleEvent{
		Type:       events.EventRateChanged,
		State:      d.state.String(),
		SampleRate: rate,
	})

	if cb := d.callbacks.SampleRateDidChange; cb != nil {
		go cb(rate)
	}
}

func (d *Driver) setSampleRate(rate float64) {
	d.sampleRateBits.Store(math.Float64bits(rate))
	d.metrics.SampleRate.Set(rate)
}

func (d *Driver) currentSampleRate() float64 {
	return math.Float64frombits(d.sampleRateBits.Load())
}

func (d *Driver) transition(next State, event events.EventType) {
	d.state = next
	d.metrics.StateTransitions.WithLabelValues(next.String()).Inc()
	d.events.Publish(events.LifecycleEvent{
		Type:         event,
		State:        next.String(),
		SampleRate:   d.currentSampleRate(),
		BufferFrames: d.frames,
		Device:       d.deviceName(),
	})
}

func (d *Driver) deviceName() string {
	switch {
	case d.sel == nil:
		return ""
	case d.sel.HasOutput:
		return d.sel.Output.Name
	case d.sel.HasInput:
		return d.sel.Input.Name
	}
	return ""
}

// operationError records a failed control operation and returns the error
// unchanged. State is never modified here.
func (d *Driver) operationError(err error) error {
	d.metrics.OperationErrors.WithLabelValues(translate.ToASIO(err).String()).Inc()
	d.log.Warn("operation failed", "state", d.state.String(), "error", err)
	return err
}
