package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the enrollment engine.
type Metrics struct {
	// Enrollment outcomes by result ("committed", "denied", "dropped")
	// and denial reason (empty for commits and drops)
	Outcomes *prometheus.CounterVec

	// Full Enroll latency including the eligibility transaction
	EnrollLatency prometheus.Histogram
}

// New creates a Metrics instance with all enrollment metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_enrollment_outcomes_total",
			Help: "Total enrollment outcomes by result and denial reason",
		}, []string{"result", "reason"}),

		EnrollLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_enrollment_enroll_duration_seconds",
			Help:    "Duration of enrollment requests including the eligibility transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementOutcome records an enrollment outcome.
func (m *Metrics) IncrementOutcome(result, reason string) {
	if m != nil {
		m.Outcomes.WithLabelValues(result, reason).Inc()
	}
}

// ObserveEnrollLatency records the duration of one Enroll call.
func (m *Metrics) ObserveEnrollLatency(d time.Duration) {
	if m != nil {
		m.EnrollLatency.Observe(d.Seconds())
	}
}
