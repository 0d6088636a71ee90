package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the storefront collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	OrdersPlaced     prometheus.Counter
	OrdersFailed     *prometheus.CounterVec
	PlacementSeconds prometheus.Histogram
	StockLowEvents   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_placed_total",
			Help:      "Orders committed by the placement workflow.",
		}),
		OrdersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_failed_total",
			Help:      "Order placements rolled back, by failing step.",
		}, []string{"step"}),
		PlacementSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "order_placement_seconds",
			Help:      "Wall time of the order placement workflow.",
			Buckets:   prometheus.DefBuckets,
		}),
		StockLowEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stock_low_events_total",
			Help:      "StockLow events published by the inventory watcher.",
		}),
	}
	reg.MustRegister(m.OrdersPlaced, m.OrdersFailed, m.PlacementSeconds, m.StockLowEvents)
	return m
}

func (m *Metrics) ObservePlaced(seconds float64) {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
	m.PlacementSeconds.Observe(seconds)
}

func (m *Metrics) ObserveFailed(step string) {
	if m == nil {
		return
	}
	m.OrdersFailed.WithLabelValues(step).Inc()
}

func (m *Metrics) ObserveStockLow() {
	if m == nil {
		return
	}
	m.StockLowEvents.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
