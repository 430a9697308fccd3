package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgw_decisions_total",
			Help: "Credit decisions by kind, outcome and reason",
		},
		[]string{"kind", "outcome", "reason"}, // eligibility|create_loan , approved|rejected , reason code
	)

	CreditScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creditgw_credit_score",
			Help:    "Distribution of computed credit scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	ProjectorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgw_projector_events_total",
			Help: "Decision events handled by the projection worker, by stage",
		},
		[]string{"stage"}, // consumed|flushed|poison|failed
	)
)

var once sync.Once

// MustRegister registers the collectors once per process; serve and the
// workers may both call it.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			DecisionsTotal,
			CreditScore,
			ProjectorEvents,
		)
	})
}

// Outcome labels a decision.
func Outcome(approved bool) string {
	if approved {
		return "approved"
	}
	return "rejected"
}
