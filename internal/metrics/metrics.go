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

// Package metrics exposes driver instrumentation through Prometheus. Counter
// increments are the only instrumentation allowed on the real-time path:
// they are plain atomic adds and never block.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the driver bridge.
type Metrics struct {
	// Real-time path counters.
	CallbackPeriods   prometheus.Counter
	DroppedPeriods    prometheus.Counter
	Underruns         prometheus.Counter
	Overflows         prometheus.Counter
	HostNotifications prometheus.Counter

	// Control path metrics.
	StateTransitions   *prometheus.CounterVec
	OperationErrors    *prometheus.CounterVec
	BackendRateChanges prometheus.Counter
	SampleRate         prometheus.Gauge
	BufferSizeFrames   prometheus.Gauge
}

// New creates and registers all driver metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallbackPeriods: factory.NewCounter(prometheus.CounterOpts{
			Name: "asio_bridge_callback_periods_total",
			Help: "Total number of backend callback periods processed",
		}),
		DroppedPeriods: factory.NewCounter(prometheus.CounterOpts{
			Name: "asio_bridge_dropped_periods_total",
			Help: "Total number of callback periods dropped (stopped stream or internal error)",
		}),
		Underruns: factory.NewCounter(prometheus.CounterOpts{
			Name: "asio_bridge_underruns_total",
			Help: "Total number of periods flagged with an output underflow or input underflow",
		}),
		Overflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "asio_bridge_overflows_total",
			Help: "Total number of periods flagged with an input or output overflow",
		}),
		HostNotifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "asio_bridge_host_notifications_total",
			Help: "Total number of buffer-ready notifications delivered to the host",
		}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asio_bridge_state_transitions_total",
			Help: "Total number of driver state transitions, labelled by target state",
		}, []string{"state"}),
		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asio_bridge_operation_errors_total",
			Help: "Total number of control operations that returned an ASIO error, labelled by code",
		}, []string{"code"}),
		BackendRateChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "asio_bridge_backend_rate_changes_total",
			Help: "Total number of sample rate changes initiated by the backend",
		}),
		SampleRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "asio_bridge_sample_rate_hertz",
			Help: "Currently negotiated sample rate",
		}),
		BufferSizeFrames: factory.NewGauge(prometheus.GaugeOpts{
			Name: "asio_bridge_buffer_size_frames",
			Help: "Frames per callback period of the open buffer set",
		}),
	}
}
