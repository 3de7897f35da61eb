package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_cache_hits_total",
		Help: "Cache lookups that found a value",
	})

	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_cache_misses_total",
		Help: "Cache lookups that found nothing",
	})

	SetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_cache_sets_total",
		Help: "Values admitted into the cache",
	})
)
