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

package translate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openasio/asio-bridge-go/internal/asio"
	"github.com/openasio/asio-bridge-go/internal/backend"
)

func TestToASIO(t *testing.T) {
	t.Run("nil_is_ok", func(t *testing.T) {
		assert.Equal(t, asio.Error(0), ToASIO(nil))
	})

	t.Run("asio_error_passes_through", func(t *testing.T) {
		assert.Equal(t, asio.ErrNoClock, ToASIO(asio.ErrNoClock))
		wrapped := fmt.Errorf("context: %w", asio.ErrInvalidParameter)
		assert.Equal(t, asio.ErrInvalidParameter, ToASIO(wrapped))
	})

	t.Run("backend_codes", func(t *testing.T) {
		tests := []struct {
			code backend.Code
			want asio.Error
		}{
			{backend.CodeNotInitialized, asio.ErrNotPresent},
			{backend.CodeDeviceUnavailable, asio.ErrNotPresent},
			{backend.CodeHostAPINotFound, asio.ErrNotPresent},
			{backend.CodeInvalidSampleRate, asio.ErrInvalidMode},
			{backend.CodeSampleFormatNotSupported, asio.ErrInvalidMode},
			{backend.CodeIncompatibleExtension, asio.ErrInvalidMode},
			{backend.CodeInvalidChannelCount, asio.ErrInvalidParameter},
			{backend.CodeInvalidDevice, asio.ErrInvalidParameter},
			{backend.CodeBadIODeviceCombination, asio.ErrInvalidParameter},
			{backend.CodeInsufficientMemory, asio.ErrNoMemory},
			{backend.CodeBufferTooBig, asio.ErrNoMemory},
			{backend.CodeInputOverflowed, asio.ErrSampleRateNotAdvancing},
			{backend.CodeOutputUnderflowed, asio.ErrSampleRateNotAdvancing},
			{backend.CodeTimedOut, asio.ErrNoClock},
			{backend.CodeInternalError, asio.ErrHardwareMalfunction},
			{backend.CodeUnanticipatedHostError, asio.ErrHardwareMalfunction},
			{backend.CodeUnknown, asio.ErrHardwareMalfunction},
		}
		for _, tt := range tests {
			t.Run(tt.code.String(), func(t *testing.T) {
				err := backend.Errorf(tt.code, "probe")
				assert.Equal(t, tt.want, ToASIO(err))
				wrapped := fmt.Errorf("opening stream: %w", err)
				assert.Equal(t, tt.want, ToASIO(wrapped), "wrapping must not change the mapping")
			})
		}
	})

	t.Run("mapping_is_total", func(t *testing.T) {
		// Every defined backend code must have an explicit image; a code
		// falling through to the default would silently reclassify failures.
		for code := backend.CodeUnknown; code <= backend.CodeUnanticipatedHostError; code++ {
			_, ok := codeMap[code]
			require.True(t, ok, "backend code %q has no ASIO mapping", code)
		}
	})

	t.Run("unclassified_error", func(t *testing.T) {
		assert.Equal(t, asio.ErrHardwareMalfunction, ToASIO(fmt.Errorf("something unexpected")))
	})
}
