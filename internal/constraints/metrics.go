package constraints

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	minedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_constraints_mined_total",
			Help: "Total number of logical constraints mined from market titles, by kind",
		},
		[]string{"kind"},
	)

	violationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_constraint_violations_total",
			Help: "Total number of constraint violations detected, by kind",
		},
		[]string{"kind"},
	)
)
