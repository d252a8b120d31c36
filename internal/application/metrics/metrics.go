package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the application lifecycle.
type Metrics struct {
	Submissions         *prometheus.CounterVec
	Decisions           *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	TransitionConflicts prometheus.Counter
	EvaluationSeconds   prometheus.Histogram
}

// New creates a new Metrics instance with all application metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_application_submissions_total",
			Help: "Total submitted applications by jurisdiction",
		}, []string{"jurisdiction"}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_application_decisions_total",
			Help: "Submission decisions by outcome (pending, in_review, rejected)",
		}, []string{"outcome"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_application_transitions_total",
			Help: "Successful lifecycle transitions by target status",
		}, []string{"to"}),
		TransitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_application_transition_conflicts_total",
			Help: "Transitions rejected by the optimistic version guard",
		}),
		EvaluationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditgate_application_evaluation_seconds",
			Help:    "Rule evaluation duration for submissions",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordSubmission records an accepted submission and its decision outcome.
func (m *Metrics) RecordSubmission(jurisdiction, outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(jurisdiction).Inc()
		m.Decisions.WithLabelValues(outcome).Inc()
	}
}

// RecordRejection records a submission blocked by validation.
func (m *Metrics) RecordRejection(jurisdiction string) {
	if m != nil {
		m.Submissions.WithLabelValues(jurisdiction).Inc()
		m.Decisions.WithLabelValues("rejected").Inc()
	}
}

// RecordTransition records a successful lifecycle transition.
func (m *Metrics) RecordTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// RecordConflict records an optimistic concurrency failure.
func (m *Metrics) RecordConflict() {
	if m != nil {
		m.TransitionConflicts.Inc()
	}
}

// ObserveEvaluation records how long a submission evaluation took.
func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m != nil {
		m.EvaluationSeconds.Observe(d.Seconds())
	}
}
