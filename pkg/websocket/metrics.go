package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_dashboard_ws_connections",
		Help: "Connected dashboard websocket clients",
	})

	messagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_dashboard_ws_messages_sent_total",
		Help: "State snapshots pushed to websocket clients",
	})

	pushErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_dashboard_ws_push_errors_total",
		Help: "State pushes that failed and dropped the client",
	})

	upgradeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_dashboard_ws_upgrade_failures_total",
		Help: "Requests that failed the websocket upgrade",
	})
)
