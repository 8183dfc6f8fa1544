package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "farmadmin"

// Metrics holds the counters shared by the session components. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Operations   *prometheus.CounterVec
	Rejections   prometheus.Counter
	ForcedClears *prometheus.CounterVec
	Redirects    *prometheus.CounterVec
}

// New creates the counters and registers them with reg. A nil reg leaves them
// unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Terminal outcomes of login, register and resume operations.",
		}, []string{"op", "outcome"}),
		Rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Responses that rejected the session credential.",
		}),
		ForcedClears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_forced_clears_total",
			Help:      "Sessions torn down, by reason.",
		}, []string{"reason"}),
		Redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigation_redirects_total",
			Help:      "Guard redirects issued, by target path.",
		}, []string{"target"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Operations, m.Rejections, m.ForcedClears, m.Redirects} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) Rejection() {
	if m == nil {
		return
	}
	m.Rejections.Inc()
}

func (m *Metrics) ForcedClear(reason string) {
	if m == nil {
		return
	}
	m.ForcedClears.WithLabelValues(reason).Inc()
}

func (m *Metrics) Redirect(target string) {
	if m == nil {
		return
	}
	m.Redirects.WithLabelValues(target).Inc()
}
