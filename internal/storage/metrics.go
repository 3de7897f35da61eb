package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_storage_stored_total",
			Help: "Total number of opportunities written, by sink",
		},
		[]string{"sink"},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_storage_errors_total",
			Help: "Total number of failed writes, by sink",
		},
		[]string{"sink"},
	)
)
