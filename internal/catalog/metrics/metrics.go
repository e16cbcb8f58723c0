package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for catalog administration.
type Metrics struct {
	// Catalog writes by entity ("course", "offering") and operation
	// ("created", "updated", "deleted")
	Writes *prometheus.CounterVec

	// Guard rejections by rule ("cross_department", "duplicate", "integrity")
	Rejections *prometheus.CounterVec
}

// New creates a Metrics instance with all catalog metrics registered.
func New() *Metrics {
	return &Metrics{
		Writes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_catalog_writes_total",
			Help: "Total catalog writes by entity and operation",
		}, []string{"entity", "op"}),

		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_catalog_rejections_total",
			Help: "Total catalog writes rejected by guard rule",
		}, []string{"rule"}),
	}
}

// IncrementWrite records a committed catalog write.
func (m *Metrics) IncrementWrite(entity, op string) {
	if m != nil {
		m.Writes.WithLabelValues(entity, op).Inc()
	}
}

// IncrementRejection records a guard rejection.
func (m *Metrics) IncrementRejection(rule string) {
	if m != nil {
		m.Rejections.WithLabelValues(rule).Inc()
	}
}
