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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorValues pins the numeric codes to the values ASIO hosts expect.
func TestErrorValues(t *testing.T) {
	assert.Equal(t, -1000, int(ErrNotPresent))
	assert.Equal(t, -999, int(ErrHardwareMalfunction))
	assert.Equal(t, -998, int(ErrInvalidParameter))
	assert.Equal(t, -997, int(ErrInvalidMode))
	assert.Equal(t, -996, int(ErrSampleRateNotAdvancing))
	assert.Equal(t, -995, int(ErrNoClock))
	assert.Equal(t, -994, int(ErrNoMemory))
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "NotPresent", ErrNotPresent.String())
	assert.Equal(t, "NoMemory", ErrNoMemory.String())
	assert.Equal(t, "asio: InvalidMode", ErrInvalidMode.Error())
	assert.Equal(t, "Error(-42)", Error(-42).String(), "unknown codes stay numeric")
}

func TestSampleTypeProperties(t *testing.T) {
	tests := []struct {
		sampleType   SampleType
		bytes        int
		float        bool
		littleEndian bool
	}{
		{Int16MSB, 2, false, false},
		{Int24MSB, 3, false, false},
		{Int32MSB, 4, false, false},
		{Float32MSB, 4, true, false},
		{Float64MSB, 8, true, false},
		{Int16LSB, 2, false, true},
		{Int24LSB, 3, false, true},
		{Int32LSB, 4, false, true},
		{Float32LSB, 4, true, true},
		{Float64LSB, 8, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.sampleType.String(), func(t *testing.T) {
			assert.Equal(t, tt.bytes, tt.sampleType.Bytes())
			assert.Equal(t, tt.float, tt.sampleType.IsFloat())
			assert.Equal(t, tt.littleEndian, tt.sampleType.IsLittleEndian())
		})
	}
}

func TestMessageSelectorString(t *testing.T) {
	assert.Equal(t, "SelectorSupported", SelectorSupported.String())
	assert.Equal(t, "SupportsTimeInfo", SupportsTimeInfo.String())
	assert.Equal(t, "MessageSelector(99)", MessageSelector(99).String())
}

func TestSupportsTimeInfoQuery(t *testing.T) {
	yes := func(selector MessageSelector, value int64) int64 { return 1 }
	no := func(selector MessageSelector, value int64) int64 { return 0 }
	timeInfoSwitch := func(info TimeInfo, index int, directProcess bool) (TimeInfo, bool) {
		return info, false
	}

	t.Run("nil_callbacks", func(t *testing.T) {
		var c *Callbacks
		require.False(t, c.SupportsTimeInfoQuery())
	})

	t.Run("no_message_slot", func(t *testing.T) {
		c := &Callbacks{BufferSwitchTimeInfo: timeInfoSwitch}
		require.False(t, c.SupportsTimeInfoQuery())
	})

	t.Run("no_time_info_callback", func(t *testing.T) {
		c := &Callbacks{Message: yes}
		require.False(t, c.SupportsTimeInfoQuery(),
			"a host without BufferSwitchTimeInfo cannot receive time info")
	})

	t.Run("host_declines", func(t *testing.T) {
		c := &Callbacks{Message: no, BufferSwitchTimeInfo: timeInfoSwitch}
		require.False(t, c.SupportsTimeInfoQuery())
	})

	t.Run("host_accepts", func(t *testing.T) {
		c := &Callbacks{Message: yes, BufferSwitchTimeInfo: timeInfoSwitch}
		require.True(t, c.SupportsTimeInfoQuery())
	})

	t.Run("selector_unsupported", func(t *testing.T) {
		// The host claims SupportsTimeInfo is not a known selector; the
		// follow-up question must not be asked.
		c := &Callbacks{
			Message: func(selector MessageSelector, value int64) int64 {
				if selector == SelectorSupported {
					return 0
				}
				return 1
			},
			BufferSwitchTimeInfo: timeInfoSwitch,
		}
		require.False(t, c.SupportsTimeInfoQuery())
	})
}
