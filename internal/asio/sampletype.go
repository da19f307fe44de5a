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

// SampleType identifies the in-memory layout of one audio sample as reported
// to the host per channel. Values match the ASIOST* constants from the ASIO
// SDK.
type SampleType int

const (
	Int16MSB   SampleType = 0
	Int24MSB   SampleType = 1
	Int32MSB   SampleType = 2
	Float32MSB SampleType = 3
	Float64MSB SampleType = 4

	Int16LSB   SampleType = 16
	Int24LSB   SampleType = 17
	Int32LSB   SampleType = 18
	Float32LSB SampleType = 19
	Float64LSB SampleType = 20
)

var sampleTypeNames = map[SampleType]string{
	Int16MSB:   "Int16MSB",
	Int24MSB:   "Int24MSB",
	Int32MSB:   "Int32MSB",
	Float32MSB: "Float32MSB",
	Float64MSB: "Float64MSB",
	Int16LSB:   "Int16LSB",
	Int24LSB:   "Int24LSB",
	Int32LSB:   "Int32LSB",
	Float32LSB: "Float32LSB",
	Float64LSB: "Float64LSB",
}

// String returns the symbolic name of the sample type.
func (t SampleType) String() string {
	if name, ok := sampleTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SampleType(%d)", int(t))
}

// Bytes returns the width of one sample of this type in bytes, or 0 for an
// unknown type.
func (t SampleType) Bytes() int {
	switch t {
	case Int16MSB, Int16LSB:
		return 2
	case Int24MSB, Int24LSB:
		return 3
	case Int32MSB, Int32LSB, Float32MSB, Float32LSB:
		return 4
	case Float64MSB, Float64LSB:
		return 8
	}
	return 0
}

// IsFloat reports whether samples of this type are floating point.
func (t SampleType) IsFloat() bool {
	switch t {
	case Float32MSB, Float32LSB, Float64MSB, Float64LSB:
		return true
	}
	return false
}

// IsLittleEndian reports whether samples of this type are little-endian.
func (t SampleType) IsLittleEndian() bool {
	return t >= Int16LSB
}
