package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WaitsTotal tracks granted tokens by venue.
	WaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_ratelimit_waits_total",
			Help: "Total number of rate limiter tokens granted",
		},
		[]string{"venue"},
	)

	// WaitDuration tracks time spent waiting for tokens by venue.
	WaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_ratelimit_wait_duration_seconds",
			Help:    "Time spent waiting for a rate limiter token",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"venue"},
	)
)

func waitTimer(venue string) func() {
	start := time.Now()
	return func() {
		WaitDuration.WithLabelValues(venue).Observe(time.Since(start).Seconds())
	}
}
