package kalshi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_kalshi_requests_total",
		Help: "Kalshi API requests by response status",
	}, []string{"status"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_kalshi_retries_total",
		Help: "Kalshi requests retried after a rate-limit response",
	})
)
