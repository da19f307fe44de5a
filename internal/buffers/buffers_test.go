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

package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openasio/asio-bridge-go/internal/asio"
)

func testChannels() []asio.ChannelInfo {
	return []asio.ChannelInfo{
		{Channel: 0, IsInput: true, Name: "IN 1", SampleType: asio.Float32LSB},
		{Channel: 1, IsInput: true, Name: "IN 2", SampleType: asio.Float32LSB},
		{Channel: 0, IsInput: false, Name: "OUT 1", SampleType: asio.Float32LSB},
	}
}

func TestAllocate(t *testing.T) {
	set, err := Allocate(testChannels(), 256)
	require.NoError(t, err)

	assert.Equal(t, 256, set.Frames())
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []int{0, 1}, set.Inputs())
	assert.Equal(t, []int{2}, set.Outputs())

	for i := 0; i < set.Len(); i++ {
		ch := set.Channel(i)
		require.Len(t, ch.Halves[0], 256)
		require.Len(t, ch.Halves[1], 256)
		for h := 0; h < 2; h++ {
			for _, sample := range ch.Halves[h] {
				require.Equal(t, float32(0), sample, "buffers must start silent")
			}
		}
	}
}

func TestAllocateErrors(t *testing.T) {
	tests := []struct {
		name     string
		channels []asio.ChannelInfo
		frames   int
		wantErr  error
	}{
		{"zero_frames", testChannels(), 0, asio.ErrNoMemory},
		{"negative_frames", testChannels(), -512, asio.ErrNoMemory},
		{"oversized", testChannels(), MaxFrames + 1, asio.ErrNoMemory},
		{"no_channels", nil, 256, asio.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Allocate(tt.channels, tt.frames)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, set)
		})
	}
}

// TestHalfIndependence writes through one half and checks the other half and
// the neighboring channels are untouched.
func TestHalfIndependence(t *testing.T) {
	set, err := Allocate(testChannels(), 64)
	require.NoError(t, err)

	half := set.Half(0, 1)
	for i := range half {
		half[i] = 0.25
	}

	for _, sample := range set.Half(0, 0) {
		require.Equal(t, float32(0), sample, "the other half must stay clear")
	}
	for _, sample := range set.Half(1, 1) {
		require.Equal(t, float32(0), sample, "the neighboring channel must stay clear")
	}
	for _, sample := range set.Half(0, 1) {
		require.Equal(t, float32(0.25), sample)
	}
}

func TestZeroOutputs(t *testing.T) {
	set, err := Allocate(testChannels(), 32)
	require.NoError(t, err)

	for i := 0; i < set.Len(); i++ {
		for h := 0; h < 2; h++ {
			half := set.Half(i, h)
			for j := range half {
				half[j] = 1
			}
		}
	}

	set.ZeroOutputs()

	for _, pos := range set.Outputs() {
		for h := 0; h < 2; h++ {
			for _, sample := range set.Half(pos, h) {
				require.Equal(t, float32(0), sample, "output halves must be cleared")
			}
		}
	}
	for _, pos := range set.Inputs() {
		for h := 0; h < 2; h++ {
			for _, sample := range set.Half(pos, h) {
				require.Equal(t, float32(1), sample, "input halves must be untouched")
			}
		}
	}
}

// TestAddressStability pins the half addresses: writes through previously
// captured slices must stay visible, which is the property the host relies
// on between buffer creation and disposal.
func TestAddressStability(t *testing.T) {
	set, err := Allocate(testChannels(), 128)
	require.NoError(t, err)

	captured := set.Half(2, 0)
	capturedAddr := &captured[0]

	set.ZeroOutputs()
	set.Half(2, 0)[0] = 0.5

	assert.Same(t, capturedAddr, &set.Half(2, 0)[0], "halves must not be reallocated")
	assert.Equal(t, float32(0.5), captured[0], "captured slices must alias the live buffer")
}

func TestRelease(t *testing.T) {
	set, err := Allocate(testChannels(), 64)
	require.NoError(t, err)

	assert.False(t, set.Released())
	set.Release()
	assert.True(t, set.Released())
	assert.Equal(t, 0, set.Len())

	// Double release and nil release are harmless.
	set.Release()
	var nilSet *BufferSet
	assert.True(t, nilSet.Released())
	nilSet.Release()
}
