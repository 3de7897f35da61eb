package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_matcher_matches_total",
		Help: "New market matches by accepting cascade tier",
	}, []string{"tier"})

	rematchPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_matcher_rematch_promotions_total",
		Help: "Unmatched markets promoted to matched during sweeps",
	})
)
