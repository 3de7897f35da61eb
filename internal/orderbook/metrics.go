package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReductionsTotal tracks ladder reductions by venue.
	ReductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_orderbook_reductions_total",
			Help: "Total number of venue orderbooks reduced to normalized asks",
		},
		[]string{"venue"},
	)

	// EmptyBooksTotal tracks fetches that produced no usable price levels.
	EmptyBooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_orderbook_empty_total",
			Help: "Total number of orderbook fetches without usable levels",
		},
		[]string{"venue"},
	)
)
