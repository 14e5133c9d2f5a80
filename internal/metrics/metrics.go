// Package metrics exposes the Prometheus collectors shared across the
// server.  Collectors register on the default registry and are served by
// promhttp at GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tasktracker"

var (
	// Broadcasts counts snapshots fanned out to local subscribers, by event
	// name and origin ("local" or "relay").
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_total",
		Help:      "Snapshots pushed to local subscribers.",
	}, []string{"event", "source"})

	// BroadcastDrops counts per-subscriber deliveries skipped because the
	// subscriber queue was full or closing.
	BroadcastDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_drops_total",
		Help:      "Per-subscriber deliveries dropped under backpressure.",
	}, []string{"event"})

	// Subscribers is the number of connected push channel sessions.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_subscribers",
		Help:      "Connected push channel sessions.",
	})

	// AuthEvents counts session operations by outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Register, login and refresh outcomes.",
	}, []string{"op", "outcome"})
)
