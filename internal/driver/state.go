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

package driver

import "fmt"

// State is the driver lifecycle state. Transitions happen only through the
// Driver's public operations; an operation invoked outside its legal source
// states fails with InvalidMode and leaves the state unchanged.
type State int

const (
	// StateCreated is the state of a freshly opened driver, before Init.
	StateCreated State = iota
	// StateInitialized means the backend device has been resolved.
	StateInitialized
	// StateBuffersCreated means the buffer set is allocated and the stream
	// is open but not started.
	StateBuffersCreated
	// StateRunning means the backend is delivering callback periods.
	StateRunning
	// StateStopped means the stream was running and has been stopped; the
	// buffer set is still allocated.
	StateStopped
	// StateBuffersDisposed means the stream is closed and the buffer set
	// released; queries remain legal as in StateInitialized.
	StateBuffersDisposed
	// StateUninitialized means the driver has been released; only Init is
	// legal.
	StateUninitialized
)

var stateNames = map[State]string{
	StateCreated:         "Created",
	StateInitialized:     "Initialized",
	StateBuffersCreated:  "BuffersCreated",
	StateRunning:         "Running",
	StateStopped:         "Stopped",
	StateBuffersDisposed: "BuffersDisposed",
	StateUninitialized:   "Uninitialized",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// initialized reports whether the backend device has been resolved and not
// released, i.e. capability queries are legal.
func (s State) initialized() bool {
	switch s {
	case StateInitialized, StateBuffersCreated, StateRunning, StateStopped, StateBuffersDisposed:
		return true
	}
	return false
}

// buffersLive reports whether a buffer set and stream handle exist.
func (s State) buffersLive() bool {
	switch s {
	case StateBuffersCreated, StateRunning, StateStopped:
		return true
	}
	return false
}
