package spot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_spot_requests_total",
		Help: "Spot price API requests by response status",
	}, []string{"status"})

	spotPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_spot_price_usd",
		Help: "Latest fetched spot price by symbol",
	}, []string{"symbol"})
)
