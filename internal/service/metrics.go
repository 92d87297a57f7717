package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts mutation outcomes. A nil *Metrics records nothing.
type Metrics struct {
	mutations *prometheus.CounterVec
}

// NewMetrics creates and registers the service collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "file_mutations_total",
				Help: "File delete, download and upload attempts by outcome.",
			},
			[]string{"operation", "outcome"},
		),
	}
	if err := reg.Register(m.mutations); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(op string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}
