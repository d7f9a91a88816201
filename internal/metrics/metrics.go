// Package metrics exposes the matching core's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"fenrir/internal/matching"
)

// Collectors bundles the counters/histogram the market manager drives
// through matching.Metrics. A nil *Collectors is safe to use (every
// method becomes a no-op), so unit tests never need a registry.
// matching.Metrics has no latency method, so MatchLatency is registered
// but nothing observes into it.
type Collectors struct {
	OrdersAdded     prometheus.Counter
	OrdersRejected  prometheus.Counter
	ExecutionsTotal prometheus.Counter
	ExecutedVolume  prometheus.Counter
	MatchLatency    prometheus.Histogram
}

// New registers a fresh set of collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		OrdersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fenrir_orders_added_total",
			Help: "Orders admitted by the matching core.",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fenrir_orders_rejected_total",
			Help: "Orders rejected at admission.",
		}),
		ExecutionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fenrir_executions_total",
			Help: "Individual fill legs produced by the matching kernel.",
		}),
		ExecutedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fenrir_executed_quantity_total",
			Help: "Cumulative matched quantity across all symbols.",
		}),
		MatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fenrir_match_latency_seconds",
			Help:    "Wall-clock time spent inside one AddOrder sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.OrdersAdded, c.OrdersRejected, c.ExecutionsTotal, c.ExecutedVolume, c.MatchLatency)
	return c
}

// OrderAdded implements matching.Metrics.
func (c *Collectors) OrderAdded() {
	if c == nil {
		return
	}
	c.OrdersAdded.Inc()
}

// OrderRejected implements matching.Metrics.
func (c *Collectors) OrderRejected() {
	if c == nil {
		return
	}
	c.OrdersRejected.Inc()
}

// Executed implements matching.Metrics.
func (c *Collectors) Executed(qty matching.Quantity) {
	if c == nil {
		return
	}
	c.ExecutionsTotal.Inc()
	c.ExecutedVolume.Add(float64(qty))
}
