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

package driver

import (
	"github.com/openasio/asio-bridge-go/internal/asio"
	"github.com/openasio/asio-bridge-go/internal/backend"
)

// process is the backend stream callback: it runs on the backend's audio
// thread once per buffer period. It must not allocate, lock, log or let a
// panic escape; any internal failure turns into one silent period.
//
// Per period it copies the captured input into the active buffer half,
// notifies the host that the half is ready, and copies the host's output
// half to the backend before returning, since the backend consumes it
// immediately afterwards.
func (d *Driver) process(in, out [][]float32, t backend.TimeInfo, flags backend.StreamFlags) {
	defer func() {
		if recover() != nil {
			zeroAll(out)
			d.dropped.Add(1)
			d.metrics.DroppedPeriods.Inc()
		}
	}()

	// The running flag is the validity gate for the buffer set: Stop clears
	// it before the backend quiesces, so a late period must leave no trace.
	if !d.running.Load() {
		zeroAll(out)
		d.dropped.Add(1)
		d.metrics.DroppedPeriods.Inc()
		return
	}

	set := d.set
	idx := d.bufferIndex
	frames := set.Frames()

	for ch, pos := range d.inMap {
		if pos < 0 || ch >= len(in) {
			continue
		}
		copy(set.Half(pos, idx), in[ch])
	}

	notified := false
	if d.timeInfoMode {
		info := asio.TimeInfo{
			SamplePosition: d.samplePosition.Load(),
			SystemTime:     t.CurrentTime,
			SampleRate:     d.currentSampleRate(),
			InputADCTime:   t.InputBufferADCTime,
			OutputDACTime:  t.OutputBufferDACTime,
		}
		d.callbacks.BufferSwitchTimeInfo(info, idx, true)
		notified = true
	} else if d.callbacks.BufferSwitch != nil {
		d.callbacks.BufferSwitch(idx, true)
		notified = true
	}

	for ch, pos := range d.outMap {
		if ch >= len(out) {
			continue
		}
		if pos < 0 {
			// Stream channels the host did not activate play silence.
			clear(out[ch])
			continue
		}
		copy(out[ch], set.Half(pos, idx))
	}

	d.samplePosition.Add(uint64(frames))
	d.lastPeriodTime.Store(int64(t.CurrentTime))
	d.bufferIndex = 1 - idx

	d.metrics.CallbackPeriods.Inc()
	if notified {
		d.metrics.HostNotifications.Inc()
	}
	if flags&(backend.InputUnderflow|backend.OutputUnderflow) != 0 {
		d.metrics.Underruns.Inc()
	}
	if flags&(backend.InputOverflow|backend.OutputOverflow) != 0 {
		d.metrics.Overflows.Inc()
	}
}

func zeroAll(out [][]float32) {
	for i := range out {
		clear(out[i])
	}
}
