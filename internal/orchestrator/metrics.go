package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/basilisk-ai/rce/internal/budget"
)

// Metrics exposes Orchestrator-level Prometheus counters alongside the
// Budget Ledger's own gauges (internal/budget.Metrics). A nil *Metrics is
// safe everywhere.
type Metrics struct {
	turns      prometheus.Counter
	ledgerObs  *budget.Metrics
}

// NewMetrics registers the turn counter on reg and wraps ledgerMetrics
// (which may be nil) for per-turn ledger gauge updates.
func NewMetrics(reg prometheus.Registerer, ledgerMetrics *budget.Metrics) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rce_orchestrator_turns_total",
			Help: "Total number of LLM turns driven by the orchestrator.",
		}),
		ledgerObs: ledgerMetrics,
	}
	reg.MustRegister(m.turns)
	return m
}

// CountTurn increments the turn counter.
func (m *Metrics) CountTurn() {
	if m == nil {
		return
	}
	m.turns.Inc()
}

// ObserveLedger publishes the current ledger state via the wrapped
// budget.Metrics, if any.
func (m *Metrics) ObserveLedger(l *budget.Ledger) {
	if m == nil {
		return
	}
	m.ledgerObs.Observe(l)
}
