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

// Package translate maps backend failures to the fixed ASIO error
// vocabulary. The mapping is total and deterministic: every backend code has
// a defined image, the same code always maps to the same ASIO error, and an
// error that is already an ASIO error passes through unchanged.
package translate

import (
	"errors"

	"github.com/openasio/asio-bridge-go/internal/asio"
	"github.com/openasio/asio-bridge-go/internal/backend"
)

var codeMap = map[backend.Code]asio.Error{
	backend.CodeUnknown:                  asio.ErrHardwareMalfunction,
	backend.CodeNotInitialized:           asio.ErrNotPresent,
	backend.CodeInvalidChannelCount:      asio.ErrInvalidParameter,
	backend.CodeInvalidSampleRate:        asio.ErrInvalidMode,
	backend.CodeInvalidDevice:            asio.ErrInvalidParameter,
	backend.CodeInvalidFlag:              asio.ErrInvalidParameter,
	backend.CodeSampleFormatNotSupported: asio.ErrInvalidMode,
	backend.CodeBadIODeviceCombination:   asio.ErrInvalidParameter,
	backend.CodeInsufficientMemory:       asio.ErrNoMemory,
	backend.CodeBufferTooBig:             asio.ErrNoMemory,
	backend.CodeBufferTooSmall:           asio.ErrInvalidParameter,
	backend.CodeDeviceUnavailable:        asio.ErrNotPresent,
	backend.CodeIncompatibleExtension:    asio.ErrInvalidMode,
	backend.CodeStreamIsStopped:          asio.ErrInvalidMode,
	backend.CodeStreamIsNotStopped:       asio.ErrInvalidMode,
	backend.CodeInputOverflowed:          asio.ErrSampleRateNotAdvancing,
	backend.CodeOutputUnderflowed:        asio.ErrSampleRateNotAdvancing,
	backend.CodeHostAPINotFound:          asio.ErrNotPresent,
	backend.CodeInvalidHostAPI:           asio.ErrNotPresent,
	backend.CodeTimedOut:                 asio.ErrNoClock,
	backend.CodeInternalError:            asio.ErrHardwareMalfunction,
	backend.CodeUnanticipatedHostError:   asio.ErrHardwareMalfunction,
}

// ToASIO converts an error into an ASIO status code. nil maps to 0 (OK).
func ToASIO(err error) asio.Error {
	if err == nil {
		return 0
	}

	var asioErr asio.Error
	if errors.As(err, &asioErr) {
		return asioErr
	}

	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		if mapped, ok := codeMap[backendErr.Code]; ok {
			return mapped
		}
	}
	return asio.ErrHardwareMalfunction
}
