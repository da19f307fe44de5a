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

package main

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/openasio/asio-bridge-go/internal/asio"
	"github.com/openasio/asio-bridge-go/internal/driver"
)

// captureLimitSeconds bounds the preallocated capture memory so the buffer
// switch callback never grows a slice.
const captureLimitSeconds = 30

// session is the exerciser's host side: it owns the buffer views, plays a
// test tone on the outputs and records the captured input. The buffer switch
// callback allocates nothing.
type session struct {
	inputs  int
	outputs int
	rate    float64
	frames  int

	inViews  []driver.BufferView
	outViews []driver.BufferView

	phase       float64
	periodCount atomic.Uint64

	capture    [][]float32
	captureLen int
	captureCap int
}

func newSession(inputs, outputs int, rate float64, frames int) *session {
	s := &session{
		inputs:  inputs,
		outputs: outputs,
		rate:    rate,
		frames:  frames,
	}
	if inputs > 0 {
		s.captureCap = int(rate) * captureLimitSeconds
		s.capture = make([][]float32, inputs)
		for i := range s.capture {
			s.capture[i] = make([]float32, s.captureCap)
		}
	}
	return s
}

// requests activates every channel in both directions.
func (s *session) requests() []asio.BufferRequest {
	var reqs []asio.BufferRequest
	for i := 0; i < s.inputs; i++ {
		reqs = append(reqs, asio.BufferRequest{Channel: i, IsInput: true})
	}
	for i := 0; i < s.outputs; i++ {
		reqs = append(reqs, asio.BufferRequest{Channel: i, IsInput: false})
	}
	return reqs
}

// bind keeps the buffer views handed back by createBuffers, indexed by
// channel for the callback.
func (s *session) bind(views []driver.BufferView) {
	s.inViews = make([]driver.BufferView, s.inputs)
	s.outViews = make([]driver.BufferView, s.outputs)
	for _, view := range views {
		if view.IsInput {
			s.inViews[view.Channel] = view
		} else {
			s.outViews[view.Channel] = view
		}
	}
}

func (s *session) callbacks() asio.Callbacks {
	return asio.Callbacks{
		BufferSwitch: func(index int, directProcess bool) {
			s.onSwitch(index)
		},
		SampleRateDidChange: func(rate float64) {
			fmt.Printf("sample rate changed by the device: %g Hz\n", rate)
		},
		Message: func(selector asio.MessageSelector, value int64) int64 {
			switch selector {
			case asio.SelectorSupported:
				switch asio.MessageSelector(value) {
				case asio.EngineVersion, asio.ResetRequest, asio.SupportsTimeInfo:
					return 1
				}
				return 0
			case asio.EngineVersion:
				return asio.ASIOVersion
			case asio.SupportsTimeInfo:
				return 1
			}
			return 0
		},
		BufferSwitchTimeInfo: func(info asio.TimeInfo, index int, directProcess bool) (asio.TimeInfo, bool) {
			s.onSwitch(index)
			return info, false
		},
	}
}

// onSwitch is the per-period host work: record the captured input half and
// synthesize the next output half.
func (s *session) onSwitch(index int) {
	s.periodCount.Add(1)

	for ch, view := range s.inViews {
		half := view.Halves[index]
		n := copy(s.capture[ch][s.captureLen:], half)
		if ch == len(s.inViews)-1 {
			s.captureLen += n
		}
	}

	// 440 Hz sine on every output channel.
	step := 2 * math.Pi * 440 / s.rate
	phase := s.phase
	for _, view := range s.outViews {
		phase = s.phase
		half := view.Halves[index]
		for i := range half {
			half[i] = float32(0.2 * math.Sin(phase))
			phase += step
		}
	}
	s.phase = phase
}

func (s *session) periods() uint64 {
	return s.periodCount.Load()
}

// writeCapture interleaves the recorded input and writes it as 16-bit PCM.
func (s *session) writeCapture(path string) error {
	if s.inputs == 0 || s.captureLen == 0 {
		return fmt.Errorf("no input was captured")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, int(s.rate), 16, s.inputs, 1)
	data := make([]int, s.captureLen*s.inputs)
	for frame := 0; frame < s.captureLen; frame++ {
		for ch := 0; ch < s.inputs; ch++ {
			sample := s.capture[ch][frame]
			if sample > 1 {
				sample = 1
			} else if sample < -1 {
				sample = -1
			}
			data[frame*s.inputs+ch] = int(sample * math.MaxInt16)
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: s.inputs, SampleRate: int(s.rate)},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
