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

// Error is an ASIO driver status code. The numeric values match the ASE_*
// constants from the ASIO SDK so that logs and traces line up with what an
// ASIO host expects to see.
type Error int

const (
	// ErrNotPresent indicates the hardware (or the backend device) is absent
	// or the driver has not been initialized.
	ErrNotPresent Error = -1000 + iota
	// ErrHardwareMalfunction indicates the backend reported a device fault.
	ErrHardwareMalfunction
	// ErrInvalidParameter indicates a caller-supplied value is out of range.
	ErrInvalidParameter
	// ErrInvalidMode indicates an operation was attempted in a state where it
	// is not legal, or a mode the hardware cannot honor was requested.
	ErrInvalidMode
	// ErrSampleRateNotAdvancing indicates the hardware clock is stalled.
	ErrSampleRateNotAdvancing
	// ErrNoClock indicates no clock source is available.
	ErrNoClock
	// ErrNoMemory indicates a buffer allocation could not be satisfied.
	ErrNoMemory
)

var errorNames = map[Error]string{
	ErrNotPresent:             "NotPresent",
	ErrHardwareMalfunction:    "HardwareMalfunction",
	ErrInvalidParameter:       "InvalidParameter",
	ErrInvalidMode:            "InvalidMode",
	ErrSampleRateNotAdvancing: "SampleRateNotAdvancing",
	ErrNoClock:                "NoClock",
	ErrNoMemory:               "NoMemory",
}

// String returns the symbolic name of the status code.
func (e Error) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Error(%d)", int(e))
}

// Error implements the error interface.
func (e Error) Error() string {
	return "asio: " + e.String()
}
