package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks calls through venue breakers by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_circuit_breaker_requests_total",
			Help: "Total number of venue calls routed through circuit breakers",
		},
		[]string{"venue", "outcome"},
	)

	// StateTransitionsTotal tracks breaker state changes by venue.
	StateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"venue", "state"},
	)
)
