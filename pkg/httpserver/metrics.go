package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var streamFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "arb_dashboard_sse_frames_total",
	Help: "State frames written to SSE stream clients",
})
