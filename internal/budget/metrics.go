package budget

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes Ledger state as Prometheus gauges. A nil *Metrics is safe
// to use everywhere (all methods become no-ops), so callers that don't wire
// a registry can leave it unset.
type Metrics struct {
	tokensRemaining prometheus.Gauge
	costRemaining   prometheus.Gauge
	depth           prometheus.Gauge
}

// NewMetrics registers the Ledger gauges on reg and returns a handle. Safe
// to call once per process; registering twice on the same registry panics,
// matching prometheus/client_golang's own contract.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tokensRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rce_budget_tokens_remaining",
			Help: "Tokens remaining in the active completion's budget ledger.",
		}),
		costRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rce_budget_cost_remaining_usd",
			Help: "Estimated cost budget remaining for the active completion.",
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rce_budget_depth",
			Help: "Current recursion depth of the active completion.",
		}),
	}
	reg.MustRegister(m.tokensRemaining, m.costRemaining, m.depth)
	return m
}

// Observe publishes l's current state to the gauges.
func (m *Metrics) Observe(l *Ledger) {
	if m == nil || l == nil {
		return
	}
	m.tokensRemaining.Set(float64(l.RemainingTokens()))
	m.costRemaining.Set(l.RemainingCost())
	m.depth.Set(float64(l.Depth()))
}
