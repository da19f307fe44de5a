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

// Package events publishes driver lifecycle events over NATS so that
// monitoring tooling can follow sessions without scraping logs. Publishing
// happens on the control path only; the real-time path never touches it.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventInitialized     EventType = "initialized"
	EventBuffersCreated  EventType = "buffers_created"
	EventStarted         EventType = "started"
	EventStopped         EventType = "stopped"
	EventBuffersDisposed EventType = "buffers_disposed"
	EventReleased        EventType = "released"
	EventRateChanged     EventType = "rate_changed"
)

// LifecycleEvent is the JSON payload published for each transition.
type LifecycleEvent struct {
	Type         EventType `json:"type"`
	State        string    `json:"state"`
	SampleRate   float64   `json:"sample_rate,omitempty"`
	BufferFrames int       `json:"buffer_frames,omitempty"`
	Device       string    `json:"device,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Conn is the subset of a NATS connection the publisher needs, for
// dependency injection.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSConnAdapter adapts *nats.Conn to the Conn interface.
type NATSConnAdapter struct {
	conn *nats.Conn
}

func NewNATSConnAdapter(conn *nats.Conn) *NATSConnAdapter {
	return &NATSConnAdapter{conn: conn}
}

func (a *NATSConnAdapter) Publish(subject string, data []byte) error {
	return a.conn.Publish(subject, data)
}

func (a *NATSConnAdapter) Close() {
	a.conn.Close()
}

// Publisher publishes lifecycle events on a subject prefix. A nil Publisher
// is valid and publishes nothing.
type Publisher struct {
	conn          Conn
	subjectPrefix string
	log           *slog.Logger
}

// Connect dials NATS and returns a publisher on the given subject prefix.
func Connect(url, subjectPrefix string, log *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewPublisher(NewNATSConnAdapter(nc), subjectPrefix, log), nil
}

// NewPublisher creates a publisher over an existing connection (used by
// tests to inject a fake).
func NewPublisher(conn Conn, subjectPrefix string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{conn: conn, subjectPrefix: subjectPrefix, log: log}
}

// Publish sends one lifecycle event. Failures are logged, not returned: a
// broken monitoring link must never fail a driver operation.
func (p *Publisher) Publish(event LifecycleEvent) {
	if p == nil || p.conn == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("failed to encode lifecycle event", "type", event.Type, "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("failed to publish lifecycle event", "subject", subject, "error", err)
	}
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
