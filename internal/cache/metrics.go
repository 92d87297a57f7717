package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        prometheus.Counter
	invalidations prometheus.Counter
}

// NewMetrics creates and registers the cache collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "file_list_cache_hits_total",
				Help: "File list reads served without a backend request, by source.",
			},
			[]string{"source"},
		),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "file_list_cache_misses_total",
			Help: "File list reads that required a backend request.",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "file_list_cache_invalidations_total",
			Help: "Times every cached file list was invalidated.",
		}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.invalidations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) hit(source string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(source).Inc()
}

func (m *Metrics) miss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

func (m *Metrics) invalidated() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}
