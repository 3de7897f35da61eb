package polymarket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_polymarket_requests_total",
		Help: "Polymarket API requests by api (gamma, clob) and response status",
	}, []string{"api", "status"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_polymarket_retries_total",
		Help: "Polymarket requests retried after a rate-limit response",
	}, []string{"api"})
)
