// collector.go - Prometheus metrics for the Remote Profile Session
// subsystem.
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes the Remote Profile Session subsystem's
// Prometheus instrumentation: session phase gauges, frame and command
// counters, and denied/timeout counters for alerting.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "simplex"
	subsystem = "remote"
)

const (
	labelDeviceID = "device_id"
	labelRole     = "role"
	labelFromOp   = "from"
	labelToOp     = "to"
	labelKind     = "kind"
	labelTag      = "tag"
	labelReason   = "reason"
)

// Collector holds every Remote Profile Session Prometheus metric.
type Collector struct {
	// Sessions tracks the number of sessions currently in each phase,
	// per role.
	Sessions *prometheus.GaugeVec

	// Transitions counts every Session state machine transition.
	Transitions *prometheus.CounterVec

	// FramesSent/FramesReceived count wire frames by kind.
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec

	// ChannelBroken counts transport failures by error kind (Section 7).
	ChannelBroken *prometheus.CounterVec

	// CommandsForwarded/CommandsDenied count Host-side router verdicts.
	CommandsForwarded *prometheus.CounterVec
	CommandsDenied    *prometheus.CounterVec

	// CommandTimeouts counts Satellite-side pending commands that
	// resolved via timeout rather than a matched reply.
	CommandTimeouts prometheus.Counter

	// PairingAttempts/PairingReplaysRejected instrument C2.
	PairingAttempts         prometheus.Counter
	PairingReplaysRejected  prometheus.Counter
	EventsDroppedOnOverflow prometheus.Counter
}

// NewCollector creates a Collector and registers every metric against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := newMetrics()
	reg.MustRegister(
		c.Sessions,
		c.Transitions,
		c.FramesSent,
		c.FramesReceived,
		c.ChannelBroken,
		c.CommandsForwarded,
		c.CommandsDenied,
		c.CommandTimeouts,
		c.PairingAttempts,
		c.PairingReplaysRejected,
		c.EventsDroppedOnOverflow,
	)
	return c
}

func newMetrics() *Collector {
	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "sessions", Help: "Number of sessions currently in each phase.",
		}, []string{labelRole, "phase"}),

		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "transitions_total", Help: "Total session state machine transitions.",
		}, []string{labelRole, labelFromOp, labelToOp}),

		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "frames_sent_total", Help: "Total wire frames sent, by kind.",
		}, []string{labelKind}),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "frames_received_total", Help: "Total wire frames received, by kind.",
		}, []string{labelKind}),

		ChannelBroken: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "channel_broken_total", Help: "Total channel failures, by error kind.",
		}, []string{labelReason}),

		CommandsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "commands_forwarded_total", Help: "Total commands forwarded to the chat engine, by tag.",
		}, []string{labelTag}),

		CommandsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "commands_denied_total", Help: "Total commands rejected by the allowlist, by denial reason.",
		}, []string{labelTag, labelReason}),

		CommandTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "command_timeouts_total", Help: "Total pending commands resolved by timeout rather than reply.",
		}),

		PairingAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "pairing_attempts_total", Help: "Total pairing handshakes accepted for processing.",
		}),

		PairingReplaysRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "pairing_replays_rejected_total", Help: "Total pairing handshakes rejected as token replays.",
		}),

		EventsDroppedOnOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "events_dropped_total", Help: "Total buffered events dropped for exceeding the Suspended-session buffer capacity.",
		}),
	}
}

// ObserveTransition records one state machine transition and updates
// the phase gauges: the from-phase gauge decrements, the to-phase
// gauge increments.
func (c *Collector) ObserveTransition(role, from, to string) {
	c.Transitions.WithLabelValues(role, from, to).Inc()
	if from != to {
		c.Sessions.WithLabelValues(role, from).Dec()
		c.Sessions.WithLabelValues(role, to).Inc()
	}
}
