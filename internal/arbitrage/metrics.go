package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_opportunities_detected_total",
			Help: "Total number of arbitrage opportunities detected, by type",
		},
		[]string{"type"},
	)

	rejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_opportunities_rejected_total",
			Help: "Total number of candidate opportunities rejected, by reason",
		},
		[]string{"reason"},
	)

	profitCents = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arb_opportunity_profit_cents",
			Help:    "Expected profit of detected opportunities in cents per contract",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50},
		},
	)
)
