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

package asio

import "time"

// Driver identification reported to the host on initialization.
const (
	DriverName    = "ASIO Bridge"
	DriverVersion = 1
	ASIOVersion   = 2
)

// ChannelInfo describes one input or output channel of the resolved device.
// The descriptor set for an open session is fixed: once reported, a channel's
// sample type, name and position never change until the session is torn down.
type ChannelInfo struct {
	Channel    int
	IsInput    bool
	IsActive   bool
	Group      int
	SampleType SampleType
	Name       string
}

// BufferRequest names one channel the host wants activated in CreateBuffers.
type BufferRequest struct {
	Channel int
	IsInput bool
}

// BufferSizeRange describes the legal per-callback frame counts.
//
// Granularity 0 means only Preferred is legal (fixed size). Granularity -1
// means any power of two between Min and Max is legal. Any positive value
// means Min plus a multiple of Granularity, up to Max.
type BufferSizeRange struct {
	Min         int
	Max         int
	Preferred   int
	Granularity int
}

// Latencies reports the input and output latencies of the open stream, in
// frames at the current sample rate.
type Latencies struct {
	Input  int
	Output int
}

// TimeInfo is the timing snapshot passed to the host on each time-stamped
// buffer switch.
type TimeInfo struct {
	// SamplePosition is the number of frames streamed since Start.
	SamplePosition uint64
	// SystemTime is the backend clock reading when the period began.
	SystemTime time.Duration
	// SampleRate is the rate the stream is currently running at.
	SampleRate float64
	// InputADCTime is the backend-reported capture time of the first input
	// frame of this period.
	InputADCTime time.Duration
	// OutputDACTime is the backend-reported presentation time of the first
	// output frame of this period.
	OutputDACTime time.Duration
}
