// Package metrics exposes Prometheus instrumentation for turns, persona
// outcomes and the external lookup and generation calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_turns_total",
			Help: "Turns processed, labelled by resolved intent",
		},
		[]string{"intent"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_turn_duration_seconds",
			Help:    "Wall time of a full turn including all lookups and generations",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	// outcome: replied, skipped
	PersonaOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_persona_outcomes_total",
			Help: "Per-persona turn outcomes",
		},
		[]string{"persona", "outcome"},
	)

	// result: ok, error, not_configured, rejected
	LookupRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_lookup_requests_total",
			Help: "Metadata lookup requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	// stage: candidates, reply
	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_generation_requests_total",
			Help: "Generation calls by persona, stage and result",
		},
		[]string{"persona", "stage", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_active_conversations",
			Help: "Conversations currently held in memory",
		},
	)

	// reason: idle, capacity
	EvictedConversations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_evicted_conversations_total",
			Help: "Conversations dropped by the store without a delete request",
		},
		[]string{"reason"},
	)
)
