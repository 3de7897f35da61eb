package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scan_ticks_total",
		Help: "Completed scan ticks.",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_scan_tick_duration_seconds",
		Help:    "Wall time of one full scan tick.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})

	tickErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_scan_errors_total",
		Help: "Tick-stage failures by stage.",
	}, []string{"stage"})

	marketsFetched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_scan_markets",
		Help: "Markets fetched in the latest tick by source.",
	}, []string{"source"})
)
