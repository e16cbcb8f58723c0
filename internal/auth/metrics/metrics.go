package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for authentication.
type Metrics struct {
	// Login attempts by outcome ("success", "failure")
	LoginAttempts *prometheus.CounterVec

	// Live sessions created
	SessionsCreated prometheus.Counter
}

// New creates a Metrics instance with all auth metrics registered.
func New() *Metrics {
	return &Metrics{
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_auth_login_attempts_total",
			Help: "Total login attempts by outcome",
		}, []string{"outcome"}),

		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_auth_sessions_created_total",
			Help: "Total sessions created by successful logins",
		}),
	}
}

// IncrementLogin records a login attempt outcome.
func (m *Metrics) IncrementLogin(outcome string) {
	if m != nil {
		m.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}

// IncrementSessions records a created session.
func (m *Metrics) IncrementSessions() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}
