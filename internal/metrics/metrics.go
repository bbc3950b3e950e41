// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts successfully created orders per store and
	// payment method. The store label is the numeric store id, the same
	// key OrdersCancelled uses.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_orders_created_total",
		Help: "Orders successfully created.",
	}, []string{"store", "payment_method"})

	// OrdersCancelled counts orders entering the cancelled state.
	OrdersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_orders_cancelled_total",
		Help: "Orders transitioned to cancelled.",
	}, []string{"store"})

	// StockConflicts counts reservations rejected for insufficient stock.
	StockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_stock_conflicts_total",
		Help: "Order lines rejected because stock ran out.",
	})

	// GatewayCalls counts payment-provider calls by operation and result.
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_gateway_calls_total",
		Help: "Payment gateway calls by operation and result.",
	}, []string{"operation", "result"})
)

// ObserveGatewayCall records one provider call outcome.
func ObserveGatewayCall(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GatewayCalls.WithLabelValues(operation, result).Inc()
}
