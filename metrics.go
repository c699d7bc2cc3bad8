package sessionx

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session lifecycle events. A nil *Metrics records nothing.
type Metrics struct {
	attempts    *prometheus.CounterVec
	logouts     *prometheus.CounterVec
	unavailable prometheus.Counter
}

// NewMetrics registers the session counters on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionx",
			Name:      "auth_attempts_total",
			Help:      "Login, signup and user fetch attempts by outcome.",
		}, []string{"operation", "outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionx",
			Name:      "logouts_total",
			Help:      "Sessions ended, by reason.",
		}, []string{"reason"}),
		unavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessionx",
			Name:      "storage_unavailable_total",
			Help:      "Store operations skipped because the backend was unavailable.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.attempts, m.logouts, m.unavailable} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register session metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) attempt(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.attempts.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) logout(reason string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(reason).Inc()
}

func (m *Metrics) storageUnavailable() {
	if m == nil {
		return
	}
	m.unavailable.Inc()
}
