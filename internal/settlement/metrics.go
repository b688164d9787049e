package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's prometheus instruments.
type Metrics struct {
	Settlements   *prometheus.CounterVec
	FeesRouted    *prometheus.CounterVec
	BatchesMinted prometheus.Counter
}

// NewMetrics registers the engine metrics on reg. Pass a fresh
// registry in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comexledger",
			Name:      "settlements_total",
			Help:      "Settlement attempts by outcome (ok or error kind).",
		}, []string{"outcome"}),
		FeesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comexledger",
			Name:      "fees_routed_total",
			Help:      "Fee value routed to fee owners and originators, by charge label.",
		}, []string{"label"}),
		BatchesMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comexledger",
			Name:      "batches_minted_total",
			Help:      "Token batches minted.",
		}),
	}
	reg.MustRegister(m.Settlements, m.FeesRouted, m.BatchesMinted)
	return m
}
