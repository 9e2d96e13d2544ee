// Package metrics holds the Prometheus collectors updated by the execution
// path. They are registered in init() and served at /metrics by the ops server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Brokerage gateway calls by outcome",
		},
		[]string{"outcome"}, // ok|error|rate_limited
	)

	GatewayRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_retries_total",
			Help: "Retries caused by broker rate limiting",
		},
	)

	GatewayQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_queue_depth",
			Help: "Calls waiting for the gateway worker",
		},
	)

	PriceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_lookups_total",
			Help: "Resolved prices split by the source that answered",
		},
		[]string{"source"},
	)

	PriceCacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "price_cache_entries",
			Help: "Cached prices split by freshness, sampled on every cleanup pass",
		},
		[]string{"state"}, // valid|expired
	)

	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executions_total",
			Help: "Execution attempts split by side and outcome",
		},
		[]string{"side", "outcome"},
	)

	SignalUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_updates_total",
			Help: "Signal status updates by status and match path",
		},
		[]string{"status", "path"}, // path: direct|window|none
	)

	ReconcileOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_orders_total",
			Help: "Orders visited by the reconciliation loop",
		},
		[]string{"outcome"}, // settled|updated|unchanged|missing|error
	)
)

func init() {
	prometheus.MustRegister(GatewayCalls, GatewayRetries, GatewayQueueDepth)
	prometheus.MustRegister(PriceLookups, PriceCacheEntries)
	prometheus.MustRegister(Executions, SignalUpdates, ReconcileOrders)
}
