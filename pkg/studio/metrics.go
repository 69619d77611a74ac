package studio

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records turn and task counters. A nil *Metrics records nothing.
type Metrics struct {
	turns        *prometheus.CounterVec
	turnDuration prometheus.Histogram
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	degraded     prometheus.Counter
}

// NewMetrics registers the studio metrics with reg. A nil reg uses a fresh
// private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_turns_total",
			Help: "Turns run, by outcome.",
		}, []string{"outcome"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_turn_duration_seconds",
			Help:    "Wall time of a full turn.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_tasks_total",
			Help: "Tasks executed, by capability and outcome.",
		}, []string{"capability", "outcome"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studio_task_duration_seconds",
			Help:    "Wall time of a single task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"capability"}),
		degraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_dispatch_degraded_total",
			Help: "Classifications that fell back to chat.",
		}),
	}
}

func (m *Metrics) observeTask(c Capability, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = kindOf(err).String()
		if e, ok := AsError(err); ok {
			outcome = e.Kind.String()
		}
	}
	label := string(c)
	if !c.Valid() {
		label = "unknown"
	}
	m.tasks.WithLabelValues(label, outcome).Inc()
	m.taskDuration.WithLabelValues(label).Observe(d.Seconds())
}

func (m *Metrics) observeTurn(res TurnResult, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case res.CredentialInvalid:
		outcome = "credential_invalid"
	case res.Err != nil:
		outcome = "error"
	case len(res.Tasks) == 0:
		outcome = "empty"
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

func (m *Metrics) observeDegraded() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}
