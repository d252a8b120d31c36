package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rule registry.
type Metrics struct {
	Activations       *prometheus.CounterVec
	Retirements       prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	BootstrapInstalls prometheus.Counter
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		Activations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_rules_activations_total",
			Help: "Total rule set activations by jurisdiction",
		}, []string{"jurisdiction"}),
		Retirements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_rules_retirements_total",
			Help: "Total rule set retirements",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_rules_cache_hits_total",
			Help: "Active rule set cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_rules_cache_misses_total",
			Help: "Active rule set cache misses",
		}),
		BootstrapInstalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_rules_bootstrap_installs_total",
			Help: "Default rule sets installed at bootstrap",
		}),
	}
}

// IncrementActivations records a successful activation.
func (m *Metrics) IncrementActivations(jurisdiction string) {
	if m != nil {
		m.Activations.WithLabelValues(jurisdiction).Inc()
	}
}

// IncrementRetirements records a soft delete.
func (m *Metrics) IncrementRetirements() {
	if m != nil {
		m.Retirements.Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// IncrementBootstrapInstalls records a default set installation.
func (m *Metrics) IncrementBootstrapInstalls() {
	if m != nil {
		m.BootstrapInstalls.Inc()
	}
}
