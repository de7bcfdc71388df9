// Package metrics provides Prometheus metrics for the pinshare server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions tracks sessions currently held by the registry.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinshare_active_sessions",
			Help: "Number of sessions currently held in the registry",
		},
	)

	// SessionsCreated counts sessions created since start.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinshare_sessions_created_total",
			Help: "Total number of sharing sessions created",
		},
	)

	// SessionsRemoved counts removed sessions by reason (expired, deleted, replaced).
	SessionsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinshare_sessions_removed_total",
			Help: "Total number of sessions removed from the registry",
		},
		[]string{"reason"},
	)

	// PINCollisions counts PIN draws that hit a live session and were retried.
	PINCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinshare_pin_collisions_total",
			Help: "Total number of generated PINs that collided with a live session",
		},
	)

	// Joins counts join attempts by result (ok, not_found).
	Joins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinshare_joins_total",
			Help: "Total number of join requests",
		},
		[]string{"result"},
	)

	// Locations counts inbound location updates by result (broadcast, dropped).
	Locations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinshare_locations_total",
			Help: "Total number of inbound location updates",
		},
		[]string{"result"},
	)

	// Deliveries counts outbound location messages by result (sent, skipped).
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinshare_deliveries_total",
			Help: "Total number of location messages fanned out to viewers",
		},
		[]string{"result"},
	)

	// Connections tracks open websocket connections.
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinshare_connections",
			Help: "Number of open websocket connections",
		},
	)

	// MalformedMessages counts inbound frames dropped by the decoder.
	MalformedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinshare_malformed_messages_total",
			Help: "Total number of inbound messages dropped as malformed or unknown",
		},
	)
)

// RecordSessionCreated increments session creation metrics.
func RecordSessionCreated() {
	SessionsCreated.Inc()
	ActiveSessions.Inc()
}

// RecordSessionRemoved records a removal with its reason.
func RecordSessionRemoved(reason string) {
	SessionsRemoved.WithLabelValues(reason).Inc()
	ActiveSessions.Dec()
}

// RecordJoin records a join outcome.
func RecordJoin(ok bool) {
	if ok {
		Joins.WithLabelValues("ok").Inc()
		return
	}
	Joins.WithLabelValues("not_found").Inc()
}

// RecordFanout records one broadcast and how many viewers it reached.
func RecordFanout(sent, skipped int) {
	Locations.WithLabelValues("broadcast").Inc()
	Deliveries.WithLabelValues("sent").Add(float64(sent))
	Deliveries.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordLocationDropped records a location update for an unknown session.
func RecordLocationDropped() {
	Locations.WithLabelValues("dropped").Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
