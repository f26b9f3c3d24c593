// Package metrics exposes Prometheus collectors for reconciliation runs.
//
// Every recording method is safe to call on a nil *Registry so that library
// code can be used without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "configurator"

// Registry holds all collectors of the configurator.
type Registry struct {
	ReadsTotal        *prometheus.CounterVec
	ResolutionsTotal  *prometheus.CounterVec
	LoadDuration      *prometheus.HistogramVec
	ActionsTotal      *prometheus.CounterVec
	MismatchedEntries *prometheus.GaugeVec
	RunsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every collector initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.ReadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Live state reads by kind and result",
		},
		[]string{"kind", "result"}, // ok, error, cached
	)

	r.ResolutionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_resolutions_total",
			Help:      "Endpoint handle resolutions by result",
		},
		[]string{"result"},
	)

	r.LoadDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of live state loading per domain",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	r.ActionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposed_actions_total",
			Help:      "Actions proposed by domain",
		},
		[]string{"domain"},
	)

	r.MismatchedEntries = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mismatched_entries",
			Help:      "Nodes and edges whose live state differs from the desired state in the last run",
		},
		[]string{"domain"},
	)

	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reconciliation runs by result",
		},
		[]string{"result"},
	)

	return r
}

// Gatherer returns the underlying Prometheus registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordRead counts one live state read.
func (r *Registry) RecordRead(kind string, err error) {
	if r == nil {
		return
	}
	r.ReadsTotal.WithLabelValues(kind, result(err)).Inc()
}

// RecordCachedRead counts a read served from the run cache.
func (r *Registry) RecordCachedRead(kind string) {
	if r == nil {
		return
	}
	r.ReadsTotal.WithLabelValues(kind, "cached").Inc()
}

// RecordResolution counts one endpoint handle resolution.
func (r *Registry) RecordResolution(err error) {
	if r == nil {
		return
	}
	r.ResolutionsTotal.WithLabelValues(result(err)).Inc()
}

// ObserveLoad records how long loading live state for a domain took.
func (r *Registry) ObserveLoad(domain string, duration time.Duration) {
	if r == nil {
		return
	}
	r.LoadDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordActions adds n proposed actions for a domain.
func (r *Registry) RecordActions(domain string, n int) {
	if r == nil {
		return
	}
	r.ActionsTotal.WithLabelValues(domain).Add(float64(n))
}

// SetMismatched sets the number of mismatched entries for a domain.
func (r *Registry) SetMismatched(domain string, n int) {
	if r == nil {
		return
	}
	r.MismatchedEntries.WithLabelValues(domain).Set(float64(n))
}

// RecordRun counts one reconciliation run.
func (r *Registry) RecordRun(err error) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(result(err)).Inc()
}
