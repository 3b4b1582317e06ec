// Package metrics defines the Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Currently connected clients per room",
		},
		[]string{"room"},
	)

	// Routing metrics
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_relayed_total",
			Help: "Total inbound messages relayed per room",
		},
		[]string{"room"},
	)

	SendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_send_failures_total",
			Help: "Total outbound sends dropped per room",
		},
		[]string{"room"},
	)

	DirectMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_direct_messages_total",
			Help: "Total directed messages processed, by delivery outcome",
		},
		[]string{"outcome"}, // "delivered", "stored", "failed"
	)

	// Batch persistence metrics
	MessagesBuffered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_buffered_total",
			Help: "Total messages enqueued for batch persistence",
		},
	)

	BatchesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_batches_flushed_total",
			Help: "Total successful batch flushes",
		},
	)

	BatchesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_batches_dropped_total",
			Help: "Total batches dropped after a store failure",
		},
	)

	// Presence metrics
	PresenceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_presence_updates_total",
			Help: "Total voice presence operations",
		},
		[]string{"op"}, // "join", "leave"
	)
)
