// Package metrics holds the Prometheus collectors for the update coordinator
// and the event data service. They are registered on the default registry
// and served by the optional /metrics listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdateChecks counts poll ticks by outcome: "requested", "skipped"
	// (updates disabled) and "failed" (check rejected, swallowed).
	UpdateChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_update_checks_total",
			Help: "Update checks by outcome",
		},
		[]string{"outcome"},
	)

	// UpdatePrompts counts availability signals by whether a prompt was
	// shown or the signal was ignored because a prompt was already open.
	UpdatePrompts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_update_prompts_total",
			Help: "Update-available prompts by outcome",
		},
		[]string{"outcome"},
	)

	// UpdateDecisions counts user answers to the update prompt.
	UpdateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_update_decisions_total",
			Help: "User decisions on the update prompt",
		},
		[]string{"decision"},
	)

	// UpdateActivations counts activation signals seen by the coordinator.
	UpdateActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "responder_update_activations_total",
			Help: "Update activation signals received",
		},
	)

	// EventsReceived counts event responses streamed into the list.
	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "responder_events_received_total",
			Help: "Event responses received from the data service",
		},
	)

	// EventFetchDuration tracks data service request latency.
	EventFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "responder_event_fetch_duration_seconds",
			Help:    "Duration of data service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// Online is 1 while the data service is reachable.
	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "responder_online",
			Help: "Whether the event service is currently reachable",
		},
	)
)
