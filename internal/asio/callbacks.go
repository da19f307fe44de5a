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

import "fmt"

// MessageSelector identifies a host message exchanged through the Message
// callback. Values match the kAsio* selector constants from the ASIO SDK.
type MessageSelector int

const (
	SelectorSupported MessageSelector = 1 + iota
	EngineVersion
	ResetRequest
	BufferSizeChange
	ResyncRequest
	LatenciesChanged
	SupportsTimeInfo
	SupportsTimeCode
)

var selectorNames = map[MessageSelector]string{
	SelectorSupported: "SelectorSupported",
	EngineVersion:     "EngineVersion",
	ResetRequest:      "ResetRequest",
	BufferSizeChange:  "BufferSizeChange",
	ResyncRequest:     "ResyncRequest",
	LatenciesChanged:  "LatenciesChanged",
	SupportsTimeInfo:  "SupportsTimeInfo",
	SupportsTimeCode:  "SupportsTimeCode",
}

// String returns the symbolic name of the selector.
func (s MessageSelector) String() string {
	if name, ok := selectorNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MessageSelector(%d)", int(s))
}

// Callbacks is the set of host entry points registered with CreateBuffers.
// All of them are invoked from the driver; BufferSwitch and
// BufferSwitchTimeInfo run on the backend's real-time thread and must obey
// real-time constraints on the host side as well.
type Callbacks struct {
	// BufferSwitch tells the host that buffer half index is ready: captured
	// input can be read from it and output for the next period must be
	// written to it before returning.
	BufferSwitch func(index int, directProcess bool)

	// SampleRateDidChange tells the host the stream rate changed outside of
	// its control (external device reconfiguration).
	SampleRateDidChange func(rate float64)

	// Message is the generic capability-negotiation and notification slot.
	// The returned value's meaning depends on the selector; for
	// SelectorSupported and SupportsTimeInfo a non-zero result means "yes".
	Message func(selector MessageSelector, value int64) int64

	// BufferSwitchTimeInfo is the time-stamped variant of BufferSwitch, used
	// when the host answered SupportsTimeInfo. The host may return an
	// adjusted TimeInfo; ok reports whether the returned value is meaningful.
	BufferSwitchTimeInfo func(info TimeInfo, index int, directProcess bool) (adjusted TimeInfo, ok bool)
}

// SupportsTimeInfoQuery asks the host, via the Message slot, whether it wants
// time-stamped buffer switches. A host with no Message callback gets plain
// BufferSwitch notifications.
func (c *Callbacks) SupportsTimeInfoQuery() bool {
	if c == nil || c.Message == nil || c.BufferSwitchTimeInfo == nil {
		return false
	}
	if c.Message(SelectorSupported, int64(SupportsTimeInfo)) == 0 {
		return false
	}
	return c.Message(SupportsTimeInfo, 0) != 0
}
