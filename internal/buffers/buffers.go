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

// Package buffers owns the double-buffered channel memory handed to the
// host. Allocation and release happen on the control path only; the
// real-time path borrows the halves and never resizes or frees them.
package buffers

import (
	"fmt"

	"github.com/openasio/asio-bridge-go/internal/asio"
)

// MaxFrames bounds a single allocation request. Anything larger is treated
// as a resource-exhaustion error rather than an attempt worth making.
const MaxFrames = 1 << 20

// ChannelBuffers is the double buffer pair for one activated channel.
type ChannelBuffers struct {
	Info asio.ChannelInfo

	// Halves are the two alternating buffers. Their backing arrays are
	// allocated once and stay address-stable until Release.
	Halves [2][]float32
}

// BufferSet is the full buffer allocation for one session.
type BufferSet struct {
	frames   int
	channels []ChannelBuffers
	inputs   []int
	outputs  []int
	released bool
}

// Allocate builds a zero-initialized buffer set with one double-buffer pair
// per requested channel. It fails with NoMemory for non-positive or
// oversized frame counts and never partially commits.
func Allocate(channels []asio.ChannelInfo, frames int) (*BufferSet, error) {
	if frames <= 0 || frames > MaxFrames {
		return nil, fmt.Errorf("%w: cannot allocate %d-frame buffers", asio.ErrNoMemory, frames)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels requested", asio.ErrInvalidParameter)
	}

	set := &BufferSet{
		frames:   frames,
		channels: make([]ChannelBuffers, len(channels)),
	}

	// One backing array per channel keeps both halves contiguous; the half
	// slices never move afterwards.
	for i, info := range channels {
		backing := make([]float32, 2*frames)
		set.channels[i] = ChannelBuffers{
			Info:   info,
			Halves: [2][]float32{backing[:frames:frames], backing[frames:]},
		}
		if info.IsInput {
			set.inputs = append(set.inputs, i)
		} else {
			set.outputs = append(set.outputs, i)
		}
	}
	return set, nil
}

// Frames returns the per-half frame count.
func (s *BufferSet) Frames() int {
	return s.frames
}

// Len returns the number of activated channels.
func (s *BufferSet) Len() int {
	return len(s.channels)
}

// Channel returns the buffer pair at position i in activation order.
func (s *BufferSet) Channel(i int) *ChannelBuffers {
	return &s.channels[i]
}

// Inputs returns the positions of input channels in activation order.
func (s *BufferSet) Inputs() []int {
	return s.inputs
}

// Outputs returns the positions of output channels in activation order.
func (s *BufferSet) Outputs() []int {
	return s.outputs
}

// Half returns one half of one channel's double buffer.
func (s *BufferSet) Half(channel, half int) []float32 {
	return s.channels[channel].Halves[half]
}

// ZeroOutputs clears both halves of every output channel. Start uses it to
// prime the stream with silence.
func (s *BufferSet) ZeroOutputs() {
	for _, i := range s.outputs {
		for h := range s.channels[i].Halves {
			clear(s.channels[i].Halves[h])
		}
	}
}

// Released reports whether Release has been called.
func (s *BufferSet) Released() bool {
	return s == nil || s.released
}

// Release drops the buffer memory. The caller must guarantee the stream is
// stopped and closed first; an in-flight callback must never observe a
// released set.
func (s *BufferSet) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	s.channels = nil
	s.inputs = nil
	s.outputs = nil
}
