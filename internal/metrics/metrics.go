// Package metrics exposes the engine's Prometheus counters and gauges:
// orders submitted/rejected (by reason), trades executed, per-client net
// position, and risk-event emissions by event type. Registered in
// init() and served by promhttp.Handler() from cmd/matchctl.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercury_orders_submitted_total",
			Help: "Orders submitted to the matching engine, by type and side.",
		},
		[]string{"type", "side"},
	)

	ordersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercury_orders_rejected_total",
			Help: "Orders rejected by the matching engine, by reject reason.",
		},
		[]string{"reason"},
	)

	tradesExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mercury_trades_executed_total",
			Help: "Trades executed by the matching engine.",
		},
	)

	tradeVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mercury_trade_volume_total",
			Help: "Aggregate quantity traded across all executed trades.",
		},
	)

	riskEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercury_risk_events_total",
			Help: "Risk gate decisions, by event type (Approved or a specific breach).",
		},
		[]string{"event_type"},
	)

	clientNetPosition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_client_net_position",
			Help: "Current net position (long minus short) per client.",
		},
		[]string{"client_id"},
	)
)

func init() {
	prometheus.MustRegister(ordersSubmitted, ordersRejected)
	prometheus.MustRegister(tradesExecuted, tradeVolume)
	prometheus.MustRegister(riskEvents)
	prometheus.MustRegister(clientNetPosition)
}

// OrderSubmitted records one order reaching the engine.
func OrderSubmitted(orderType, side string) {
	ordersSubmitted.WithLabelValues(orderType, side).Inc()
}

// OrderRejected records one order rejected with reason.
func OrderRejected(reason string) {
	ordersRejected.WithLabelValues(reason).Inc()
}

// TradeExecuted records one trade of the given quantity.
func TradeExecuted(quantity uint64) {
	tradesExecuted.Inc()
	tradeVolume.Add(float64(quantity))
}

// RiskEvent records one risk-gate decision.
func RiskEvent(eventType string) {
	riskEvents.WithLabelValues(eventType).Inc()
}

// SetClientNetPosition updates the net-position gauge for clientID.
func SetClientNetPosition(clientID string, net int64) {
	clientNetPosition.WithLabelValues(clientID).Set(float64(net))
}
