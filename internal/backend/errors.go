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

import "fmt"

// Code classifies a backend failure independently of the underlying audio
// library's error numbering.
type Code int

const (
	CodeUnknown Code = iota
	CodeNotInitialized
	CodeInvalidChannelCount
	CodeInvalidSampleRate
	CodeInvalidDevice
	CodeInvalidFlag
	CodeSampleFormatNotSupported
	CodeBadIODeviceCombination
	CodeInsufficientMemory
	CodeBufferTooBig
	CodeBufferTooSmall
	CodeDeviceUnavailable
	CodeIncompatibleExtension
	CodeStreamIsStopped
	CodeStreamIsNotStopped
	CodeInputOverflowed
	CodeOutputUnderflowed
	CodeHostAPINotFound
	CodeInvalidHostAPI
	CodeTimedOut
	CodeInternalError
	CodeUnanticipatedHostError
)

var codeNames = map[Code]string{
	CodeUnknown:                  "unknown",
	CodeNotInitialized:           "not initialized",
	CodeInvalidChannelCount:      "invalid channel count",
	CodeInvalidSampleRate:        "invalid sample rate",
	CodeInvalidDevice:            "invalid device",
	CodeInvalidFlag:              "invalid flag",
	CodeSampleFormatNotSupported: "sample format not supported",
	CodeBadIODeviceCombination:   "bad I/O device combination",
	CodeInsufficientMemory:       "insufficient memory",
	CodeBufferTooBig:             "buffer too big",
	CodeBufferTooSmall:           "buffer too small",
	CodeDeviceUnavailable:        "device unavailable",
	CodeIncompatibleExtension:    "incompatible host API specific stream info",
	CodeStreamIsStopped:          "stream is stopped",
	CodeStreamIsNotStopped:       "stream is not stopped",
	CodeInputOverflowed:          "input overflowed",
	CodeOutputUnderflowed:        "output underflowed",
	CodeHostAPINotFound:          "host API not found",
	CodeInvalidHostAPI:           "invalid host API",
	CodeTimedOut:                 "timed out",
	CodeInternalError:            "internal error",
	CodeUnanticipatedHostError:   "unanticipated host error",
}

// String returns a short description of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is a backend failure with its classification and the underlying
// library's message.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return "backend: " + e.Code.String()
	}
	return fmt.Sprintf("backend: %s: %s", e.Code, e.Message)
}

// Errorf builds a backend error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
